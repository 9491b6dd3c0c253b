package models

import (
	"time"

	"gorm.io/datatypes"
)

type Person struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	Name           string         `gorm:"type:text;not null;default:'';index:idx_persons_identity,priority:1"`
	ChineseName    string         `gorm:"type:text;not null;default:''"`
	EnglishName    string         `gorm:"type:text;not null;default:''"`
	OriginalName   string         `gorm:"type:text;not null;default:''"`
	AliasNames     datatypes.JSON `gorm:"type:jsonb"`
	Gender         string         `gorm:"type:text;not null;default:'';index:idx_persons_identity,priority:3"`
	BirthDate      string         `gorm:"type:text;not null;default:'';index:idx_persons_identity,priority:2"`
	DeathDate      string         `gorm:"type:text;not null;default:''"`
	Nationality    string         `gorm:"type:text;not null;default:'';index:idx_persons_identity,priority:4"`
	BirthPlace     string         `gorm:"type:text;not null;default:''"`
	IDCardNumber   string         `gorm:"type:text;not null;default:''"`
	PassportNumber string         `gorm:"type:text;not null;default:''"`
	Phone          string         `gorm:"type:text;not null;default:''"`
	Email          string         `gorm:"type:text;not null;default:''"`
	Address        string         `gorm:"type:text;not null;default:''"`
	Organization   string         `gorm:"type:text;not null;default:''"`
	Position       string         `gorm:"type:text;not null;default:''"`
	Education      string         `gorm:"type:text;not null;default:''"`
	WorkExperience string         `gorm:"type:text;not null;default:''"`
	Remark         string         `gorm:"type:text;not null;default:''"`
	Tags           datatypes.JSON `gorm:"type:jsonb"`
	ImagePaths     datatypes.JSON `gorm:"type:jsonb"`
	IsPublic       bool           `gorm:"not null;default:false;index"`
	OwnerID        *string        `gorm:"type:text;index"`
	OwnerName      *string        `gorm:"type:text"`
	SourceTaskID   *string        `gorm:"type:uuid"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Person) TableName() string {
	return "persons"
}

type Tag struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:120;not null;uniqueIndex"`
	Category  string `gorm:"size:120;not null;default:''"`
	CreatedAt time.Time
}

func (Tag) TableName() string {
	return "tags"
}

// All lists every table the service owns, in dependency order.
func All() []any {
	return []any{&ImportTask{}, &ExtractResult{}, &SimilarMatch{}, &Person{}, &Tag{}}
}
