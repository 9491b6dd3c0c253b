package fusion

import (
	"encoding/json"
	"strings"
	"time"
)

// Identity holds the four fields used for similarity matching and import deduplication.
type Identity struct {
	Name        string
	BirthDate   string
	Gender      string
	Nationality string
}

// IsComplete reports whether every identity field carries a non-blank value.
func (i Identity) IsComplete() bool {
	return strings.TrimSpace(i.Name) != "" &&
		strings.TrimSpace(i.BirthDate) != "" &&
		strings.TrimSpace(i.Gender) != "" &&
		strings.TrimSpace(i.Nationality) != ""
}

// ExtractedFields is the person shape requested from the extraction model.
type ExtractedFields struct {
	ChineseName    string   `json:"chinese_name,omitempty"`
	EnglishName    string   `json:"english_name,omitempty"`
	OriginalName   string   `json:"original_name,omitempty"`
	AliasNames     []string `json:"alias_names,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	BirthDate      string   `json:"birth_date,omitempty"`
	DeathDate      string   `json:"death_date,omitempty"`
	Nationality    string   `json:"nationality,omitempty"`
	BirthPlace     string   `json:"birth_place,omitempty"`
	IDCardNumber   string   `json:"id_card_number,omitempty"`
	PassportNumber string   `json:"passport_number,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	Address        string   `json:"address,omitempty"`
	Organization   string   `json:"organization,omitempty"`
	Position       string   `json:"position,omitempty"`
	Education      string   `json:"education,omitempty"`
	WorkExperience string   `json:"work_experience,omitempty"`
	Remark         string   `json:"remark,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Placeholder    bool     `json:"placeholder,omitempty"`
}

// PrimaryName picks the first populated name variant.
func (f ExtractedFields) PrimaryName() string {
	for _, name := range []string{f.ChineseName, f.OriginalName, f.EnglishName} {
		if s := strings.TrimSpace(name); s != "" {
			return s
		}
	}
	return ""
}

func (f ExtractedFields) Identity() Identity {
	return Identity{
		Name:        f.PrimaryName(),
		BirthDate:   strings.TrimSpace(f.BirthDate),
		Gender:      strings.TrimSpace(f.Gender),
		Nationality: strings.TrimSpace(f.Nationality),
	}
}

// Extraction is one record produced by the extractor together with the payload it was decoded from.
type Extraction struct {
	Fields ExtractedFields
	Raw    json.RawMessage
}

type ExtractResult struct {
	ID               string
	TaskID           string
	Index            int
	Identity         Identity
	SourceText       string
	RawPayload       json.RawMessage
	ImagePaths       []string
	Confirmed        bool
	Imported         bool
	ImportedPersonID *string
	CreatedAt        time.Time
}

type SimilarMatch struct {
	ID        string
	TaskID    string
	ResultID  string
	PersonID  string
	CreatedAt time.Time
}
