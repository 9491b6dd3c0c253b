package repository

import (
	"fmt"

	"github.com/mohammadpnp/person-fusion/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

// personIdentityIndex serves FindByIdentity, which compares normalised name tokens.
var personIdentityIndex = "CREATE INDEX IF NOT EXISTS idx_persons_identity_norm ON persons (" +
	normalizedColumn("name") + ", birth_date)"

// AutoMigrate creates or updates the tables backing the import pipeline.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(personIdentityIndex).Error; err != nil {
		return fmt.Errorf("create person identity index: %w", err)
	}
	return nil
}
