package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type ImportTaskRepository struct {
	db *gorm.DB
}

func NewImportTaskRepository(db *gorm.DB) *ImportTaskRepository {
	return &ImportTaskRepository{db: db}
}

func (r *ImportTaskRepository) Create(ctx context.Context, task domain.ImportTask) error {
	row := models.ImportTask{
		ID:           task.ID,
		FileName:     task.FileName,
		FileType:     string(task.FileType),
		StoragePath:  task.StoragePath,
		Status:       string(task.Status),
		ExtractCount: task.ExtractCount,
		OriginalText: task.OriginalText,
		ErrorMessage: task.ErrorMessage,
	}
	if task.Creator != nil {
		row.CreatorID = nullableText(task.Creator.UserID)
		row.CreatorName = nullableText(task.Creator.Username)
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create import task: %w", err)
	}
	return nil
}

func (r *ImportTaskRepository) GetByID(ctx context.Context, taskID string) (*domain.ImportTask, error) {
	var row models.ImportTask
	err := r.db.WithContext(ctx).First(&row, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get import task: %w", err)
	}
	task := toDomainTask(row)
	return &task, nil
}

// List pages through tasks newest first. An empty creatorID lists every task.
func (r *ImportTaskRepository) List(ctx context.Context, creatorID string, page, size int) (domain.TaskPage, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportTask{})
	if creatorID != "" {
		query = query.Where("creator_id = ?", creatorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return domain.TaskPage{}, fmt.Errorf("count import tasks: %w", err)
	}

	var rows []models.ImportTask
	if err := query.
		Omit("original_text").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&rows).Error; err != nil {
		return domain.TaskPage{}, fmt.Errorf("list import tasks: %w", err)
	}

	items := make([]domain.ImportTask, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDomainTask(row))
	}
	return domain.TaskPage{Items: items, Total: total, Page: page, Size: size}, nil
}

func (r *ImportTaskRepository) ListRecoverable(ctx context.Context, limit int) ([]domain.ImportTask, error) {
	statuses := []string{
		string(domain.TaskStatusPending),
		string(domain.TaskStatusExtracting),
		string(domain.TaskStatusMatching),
	}
	var rows []models.ImportTask
	if err := r.db.WithContext(ctx).
		Omit("original_text").
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list recoverable import tasks: %w", err)
	}

	tasks := make([]domain.ImportTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, toDomainTask(row))
	}
	return tasks, nil
}

// Transition is a compare-and-set on status: the row only changes when its current
// status is an allowed predecessor of next.
func (r *ImportTaskRepository) Transition(ctx context.Context, taskID string, next domain.TaskStatus) error {
	return r.guardedUpdate(ctx, taskID, next, map[string]any{
		"status":     string(next),
		"updated_at": time.Now().UTC(),
	})
}

func (r *ImportTaskRepository) SaveOriginalText(ctx context.Context, taskID string, text string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ImportTask{}).
		Where("id = ?", taskID).
		Updates(map[string]any{
			"original_text": text,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("save original text: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *ImportTaskRepository) Complete(ctx context.Context, taskID string, extractCount int) error {
	return r.guardedUpdate(ctx, taskID, domain.TaskStatusSuccess, map[string]any{
		"status":        string(domain.TaskStatusSuccess),
		"extract_count": extractCount,
		"error_message": nil,
		"updated_at":    time.Now().UTC(),
	})
}

func (r *ImportTaskRepository) Fail(ctx context.Context, taskID string, reason string) error {
	return r.guardedUpdate(ctx, taskID, domain.TaskStatusFailed, map[string]any{
		"status":        string(domain.TaskStatusFailed),
		"error_message": reason,
		"updated_at":    time.Now().UTC(),
	})
}

func (r *ImportTaskRepository) guardedUpdate(ctx context.Context, taskID string, next domain.TaskStatus, updates map[string]any) error {
	from := domain.AllowedPredecessors(next)
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	result := r.db.WithContext(ctx).
		Model(&models.ImportTask{}).
		Where("id = ? AND status IN ?", taskID, allowed).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update import task status to %s: %w", next, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current models.ImportTask
	err := r.db.WithContext(ctx).Select("id", "status").First(&current, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("load import task status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next)
}

func toDomainTask(row models.ImportTask) domain.ImportTask {
	task := domain.ImportTask{
		ID:           row.ID,
		FileName:     row.FileName,
		FileType:     domain.FileType(row.FileType),
		StoragePath:  row.StoragePath,
		Status:       domain.TaskStatus(row.Status),
		ExtractCount: row.ExtractCount,
		OriginalText: row.OriginalText,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.CreatorID != nil {
		task.Creator = &domain.Creator{UserID: *row.CreatorID}
		if row.CreatorName != nil {
			task.Creator.Username = *row.CreatorName
		}
	}
	return task
}

func nullableText(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func textValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
