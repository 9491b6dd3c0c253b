package fusion

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func ParseVisibility(raw string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	default:
		return "", ErrInvalidVisibility
	}
}

type Tag struct {
	Name     string
	Category string
}

// Person is a permanent record in the person store.
type Person struct {
	ID             string
	Name           string
	ChineseName    string
	EnglishName    string
	OriginalName   string
	AliasNames     []string
	Gender         string
	BirthDate      string
	DeathDate      string
	Nationality    string
	BirthPlace     string
	IDCardNumber   string
	PassportNumber string
	Phone          string
	Email          string
	Address        string
	Organization   string
	Position       string
	Education      string
	WorkExperience string
	Remark         string
	Tags           []string
	ImagePaths     []string
	IsPublic       bool
	OwnerID        string
	OwnerName      string
	SourceTaskID   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p Person) Identity() Identity {
	return Identity{Name: p.Name, BirthDate: p.BirthDate, Gender: p.Gender, Nationality: p.Nationality}
}

// VisibleTo reports whether userID may see the record.
func (p Person) VisibleTo(userID string) bool {
	if p.IsPublic {
		return true
	}
	return userID != "" && p.OwnerID == userID
}

// personNamespace seeds the name-based UUIDs derived from identity tuples.
var personNamespace = uuid.MustParse("6f1c8a52-3d0e-5b7a-9a41-0c2f5e8d7b13")

var birthDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"2006年1月2日",
	"2006-1-2",
	"2006/1/2",
}

// NormalizeBirthDate rewrites common date spellings to YYYY-MM-DD; unknown spellings pass through trimmed.
func NormalizeBirthDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// NormalizeToken trims, collapses inner whitespace to single spaces and lower-cases raw.
// Identity lookups and PersonID both compare tokens in this form.
func NormalizeToken(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// PersonID derives the permanent record id from the identity tuple, so the same logical
// person converges on one id across documents. Incomplete identities get a random id.
func PersonID(identity Identity) string {
	if !identity.IsComplete() {
		return uuid.NewString()
	}
	key := strings.Join([]string{
		NormalizeToken(identity.Name),
		NormalizeBirthDate(identity.BirthDate),
		NormalizeToken(identity.Gender),
		NormalizeToken(identity.Nationality),
	}, "|")
	return uuid.NewSHA1(personNamespace, []byte(key)).String()
}

// MergeTags appends extra to base, dropping blanks and duplicates while keeping first-seen order.
func MergeTags(base []string, extra ...string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// NewPersonFromFields builds the permanent-record shape for an extracted candidate.
func NewPersonFromFields(fields ExtractedFields, owner *Creator, visibility Visibility, batchTags []string) Person {
	identity := fields.Identity()
	identity.BirthDate = NormalizeBirthDate(identity.BirthDate)

	p := Person{
		ID:             PersonID(identity),
		Name:           identity.Name,
		ChineseName:    strings.TrimSpace(fields.ChineseName),
		EnglishName:    strings.TrimSpace(fields.EnglishName),
		OriginalName:   strings.TrimSpace(fields.OriginalName),
		AliasNames:     MergeTags(nil, fields.AliasNames...),
		Gender:         identity.Gender,
		BirthDate:      identity.BirthDate,
		DeathDate:      NormalizeBirthDate(fields.DeathDate),
		Nationality:    identity.Nationality,
		BirthPlace:     strings.TrimSpace(fields.BirthPlace),
		IDCardNumber:   strings.TrimSpace(fields.IDCardNumber),
		PassportNumber: strings.TrimSpace(fields.PassportNumber),
		Phone:          strings.TrimSpace(fields.Phone),
		Email:          strings.TrimSpace(fields.Email),
		Address:        strings.TrimSpace(fields.Address),
		Organization:   strings.TrimSpace(fields.Organization),
		Position:       strings.TrimSpace(fields.Position),
		Education:      strings.TrimSpace(fields.Education),
		WorkExperience: strings.TrimSpace(fields.WorkExperience),
		Remark:         strings.TrimSpace(fields.Remark),
		Tags:           MergeTags(fields.Tags, batchTags...),
		IsPublic:       visibility == VisibilityPublic,
	}
	if owner != nil {
		p.OwnerID = owner.UserID
		p.OwnerName = owner.Username
	}
	return p
}
