package models

import "time"

type ImportTask struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	FileName     string  `gorm:"type:text;not null"`
	FileType     string  `gorm:"size:16;not null"`
	StoragePath  string  `gorm:"type:text;not null;default:''"`
	Status       string  `gorm:"size:16;not null;index"`
	CreatorID    *string `gorm:"type:text;index"`
	CreatorName  *string `gorm:"type:text"`
	ExtractCount int     `gorm:"not null;default:0"`
	OriginalText string  `gorm:"type:text;not null;default:''"`
	ErrorMessage *string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ImportTask) TableName() string {
	return "import_tasks"
}
