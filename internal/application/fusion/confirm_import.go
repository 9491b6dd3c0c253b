package fusion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

type ConfirmImportInput struct {
	TaskID     string
	ResultIDs  []string
	Tags       []string
	Visibility string
}

type ConfirmImportOutput struct {
	PersonIDs []string `json:"person_ids"`
}

type ConfirmImport interface {
	Execute(ctx context.Context, in ConfirmImportInput) (ConfirmImportOutput, error)
}

type confirmImport struct {
	tasks   domain.ImportTaskRepository
	results domain.ExtractResultRepository
	log     *logger.Logger
}

func NewConfirmImport(tasks domain.ImportTaskRepository, results domain.ExtractResultRepository, log *logger.Logger) ConfirmImport {
	return &confirmImport{tasks: tasks, results: results, log: log.With("component", "ConfirmImport")}
}

// Execute promotes the selected results of a task into persons. Results that are unknown, belong
// to another task or were already imported are skipped; per-item failures are logged and skipped.
func (uc *confirmImport) Execute(ctx context.Context, in ConfirmImportInput) (ConfirmImportOutput, error) {
	if !taskIDPattern.MatchString(in.TaskID) {
		return ConfirmImportOutput{}, ErrInvalidTaskID
	}

	visibility := domain.VisibilityPrivate
	if strings.TrimSpace(in.Visibility) != "" {
		parsed, err := domain.ParseVisibility(in.Visibility)
		if err != nil {
			return ConfirmImportOutput{}, ErrInvalidVisibility
		}
		visibility = parsed
	}

	task, err := uc.tasks.GetByID(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return ConfirmImportOutput{}, ErrTaskNotFound
		}
		return ConfirmImportOutput{}, fmt.Errorf("%w: %v", ErrConfirmImport, err)
	}

	resultIDs := uniqueIDs(in.ResultIDs)
	out := ConfirmImportOutput{PersonIDs: []string{}}
	if len(resultIDs) == 0 {
		return out, nil
	}

	found, err := uc.results.GetByIDs(ctx, resultIDs)
	if err != nil {
		return ConfirmImportOutput{}, fmt.Errorf("%w: %v", ErrConfirmImport, err)
	}
	byID := make(map[string]domain.ExtractResult, len(found))
	for _, result := range found {
		byID[result.ID] = result
	}

	created := make(map[string]struct{}, len(resultIDs))
	for _, resultID := range resultIDs {
		result, ok := byID[resultID]
		if !ok || result.TaskID != task.ID || result.Imported {
			continue
		}

		var fields domain.ExtractedFields
		if err := json.Unmarshal(result.RawPayload, &fields); err != nil {
			uc.log.Warn("skip result with malformed payload", "task_id", task.ID, "result_id", resultID, "error", err)
			continue
		}

		person := domain.NewPersonFromFields(fields, task.Creator, visibility, in.Tags)
		person.ImagePaths = result.ImagePaths
		person.SourceTaskID = task.ID

		if err := uc.results.ImportPerson(ctx, resultID, person); err != nil {
			if errors.Is(err, domain.ErrAlreadyImported) || errors.Is(err, domain.ErrResultNotFound) {
				continue
			}
			uc.log.Warn("import person failed", "task_id", task.ID, "result_id", resultID, "error", err)
			continue
		}

		if _, dup := created[person.ID]; dup {
			continue
		}
		created[person.ID] = struct{}{}
		out.PersonIDs = append(out.PersonIDs, person.ID)
	}

	uc.log.Info("import confirmed", "task_id", task.ID, "requested", len(resultIDs), "imported", len(out.PersonIDs))
	return out, nil
}

// uniqueIDs drops blanks, malformed ids and repeats while keeping order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if !taskIDPattern.MatchString(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
