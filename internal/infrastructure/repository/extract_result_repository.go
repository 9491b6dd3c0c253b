package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExtractResultRepository writes a task's results in bulk through pgx and serves reads
// and confirmations through gorm.
type ExtractResultRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

func NewExtractResultRepository(db *gorm.DB, pool *pgxpool.Pool) *ExtractResultRepository {
	return &ExtractResultRepository{db: db, pool: pool}
}

func (r *ExtractResultRepository) SaveExtraction(ctx context.Context, taskID string, results []domain.ExtractResult, matches []domain.SimilarMatch) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	taskUUID, err := uuid.Parse(taskID)
	if err != nil {
		return fmt.Errorf("parse task id: %w", err)
	}

	now := time.Now().UTC()
	resultRows := make([][]any, 0, len(results))
	for _, result := range results {
		resultUUID, err := uuid.Parse(result.ID)
		if err != nil {
			return fmt.Errorf("parse result id: %w", err)
		}
		payload := []byte(result.RawPayload)
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		images, err := encodeStrings(result.ImagePaths)
		if err != nil {
			return fmt.Errorf("encode image paths: %w", err)
		}
		resultRows = append(resultRows, []any{
			resultUUID,
			taskUUID,
			int64(result.Index),
			result.Identity.Name,
			result.Identity.BirthDate,
			result.Identity.Gender,
			result.Identity.Nationality,
			result.SourceText,
			payload,
			[]byte(images),
			false,
			false,
			now,
		})
	}

	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"extract_results"},
		[]string{"id", "task_id", "item_index", "name", "birth_date", "gender", "nationality", "source_text", "raw_payload", "image_paths", "confirmed", "imported", "created_at"},
		pgx.CopyFromRows(resultRows),
	); err != nil {
		return fmt.Errorf("copy extract results: %w", err)
	}

	if len(matches) > 0 {
		matchRows := make([][]any, 0, len(matches))
		for _, match := range matches {
			row, err := matchRow(match, taskUUID, now)
			if err != nil {
				return err
			}
			matchRows = append(matchRows, row)
		}
		if _, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"similar_matches"},
			[]string{"id", "task_id", "result_id", "person_id", "created_at"},
			pgx.CopyFromRows(matchRows),
		); err != nil {
			return fmt.Errorf("copy similar matches: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit extraction: %w", err)
	}
	return nil
}

// matchRow binds uuid columns as uuid.UUID, which pgx encodes natively in COPY's binary format.
func matchRow(match domain.SimilarMatch, taskID uuid.UUID, now time.Time) ([]any, error) {
	id, err := uuid.Parse(match.ID)
	if err != nil {
		return nil, fmt.Errorf("parse similar match id: %w", err)
	}
	resultID, err := uuid.Parse(match.ResultID)
	if err != nil {
		return nil, fmt.Errorf("parse similar match result id: %w", err)
	}
	personID, err := uuid.Parse(match.PersonID)
	if err != nil {
		return nil, fmt.Errorf("parse similar match person id: %w", err)
	}
	return []any{id, taskID, resultID, personID, now}, nil
}

func (r *ExtractResultRepository) ListByTask(ctx context.Context, taskID string) ([]domain.ExtractResult, error) {
	var rows []models.ExtractResult
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("item_index ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list extract results: %w", err)
	}
	return toDomainResults(rows), nil
}

func (r *ExtractResultRepository) ListMatchesByTask(ctx context.Context, taskID string) ([]domain.SimilarMatch, error) {
	var rows []models.SimilarMatch
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list similar matches: %w", err)
	}

	matches := make([]domain.SimilarMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, domain.SimilarMatch{
			ID:        row.ID,
			TaskID:    row.TaskID,
			ResultID:  row.ResultID,
			PersonID:  row.PersonID,
			CreatedAt: row.CreatedAt,
		})
	}
	return matches, nil
}

func (r *ExtractResultRepository) GetByIDs(ctx context.Context, resultIDs []string) ([]domain.ExtractResult, error) {
	if len(resultIDs) == 0 {
		return nil, nil
	}
	var rows []models.ExtractResult
	if err := r.db.WithContext(ctx).
		Where("id IN ?", resultIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get extract results: %w", err)
	}
	return toDomainResults(rows), nil
}

// ImportPerson claims the result and upserts the person in one transaction.
func (r *ExtractResultRepository) ImportPerson(ctx context.Context, resultID string, person domain.Person) error {
	row, err := toModelPerson(person)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed := tx.Model(&models.ExtractResult{}).
			Where("id = ? AND imported = ?", resultID, false).
			Updates(map[string]any{
				"confirmed":          true,
				"imported":           true,
				"imported_person_id": row.ID,
			})
		if claimed.Error != nil {
			return fmt.Errorf("mark extract result imported: %w", claimed.Error)
		}
		if claimed.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ExtractResult{}).Where("id = ?", resultID).Count(&count).Error; err != nil {
				return fmt.Errorf("check extract result: %w", err)
			}
			if count == 0 {
				return domain.ErrResultNotFound
			}
			return domain.ErrAlreadyImported
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(personUpsertColumns),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert person: %w", err)
		}
		return nil
	})
}

var personUpsertColumns = []string{
	"name", "chinese_name", "english_name", "original_name", "alias_names",
	"gender", "birth_date", "death_date", "nationality", "birth_place",
	"id_card_number", "passport_number", "phone", "email", "address",
	"organization", "position", "education", "work_experience", "remark",
	"tags", "image_paths", "is_public", "owner_id", "owner_name", "source_task_id",
	"updated_at",
}

func toDomainResults(rows []models.ExtractResult) []domain.ExtractResult {
	out := make([]domain.ExtractResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ExtractResult{
			ID:     row.ID,
			TaskID: row.TaskID,
			Index:  row.ItemIndex,
			Identity: domain.Identity{
				Name:        row.Name,
				BirthDate:   row.BirthDate,
				Gender:      row.Gender,
				Nationality: row.Nationality,
			},
			SourceText:       row.SourceText,
			RawPayload:       json.RawMessage(row.RawPayload),
			ImagePaths:       decodeStrings(row.ImagePaths),
			Confirmed:        row.Confirmed,
			Imported:         row.Imported,
			ImportedPersonID: row.ImportedPersonID,
			CreatedAt:        row.CreatedAt,
		})
	}
	return out
}

func encodeStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
