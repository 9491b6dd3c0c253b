package models

import (
	"time"

	"gorm.io/datatypes"
)

type ExtractResult struct {
	ID               string         `gorm:"type:uuid;primaryKey"`
	TaskID           string         `gorm:"type:uuid;not null;index:idx_extract_results_task,priority:1"`
	ItemIndex        int            `gorm:"not null;index:idx_extract_results_task,priority:2"`
	Name             string         `gorm:"type:text;not null;default:''"`
	BirthDate        string         `gorm:"type:text;not null;default:''"`
	Gender           string         `gorm:"type:text;not null;default:''"`
	Nationality      string         `gorm:"type:text;not null;default:''"`
	SourceText       string         `gorm:"type:text;not null;default:''"`
	RawPayload       datatypes.JSON `gorm:"type:jsonb;not null"`
	ImagePaths       datatypes.JSON `gorm:"type:jsonb;not null"`
	Confirmed        bool           `gorm:"not null;default:false"`
	Imported         bool           `gorm:"not null;default:false"`
	ImportedPersonID *string        `gorm:"type:uuid"`
	CreatedAt        time.Time
}

func (ExtractResult) TableName() string {
	return "extract_results"
}

// SimilarMatch is a dedup edge from an extract result to an existing person.
type SimilarMatch struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	TaskID    string `gorm:"type:uuid;not null;index"`
	ResultID  string `gorm:"type:uuid;not null;index"`
	PersonID  string `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

func (SimilarMatch) TableName() string {
	return "similar_matches"
}
