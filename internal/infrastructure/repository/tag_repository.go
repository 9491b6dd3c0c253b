package repository

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	var rows []models.Tag
	if err := r.db.WithContext(ctx).Order("category ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	tags := make([]domain.Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, domain.Tag{Name: row.Name, Category: row.Category})
	}
	return tags, nil
}
