package fusion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

type GetImportTaskDetailInput struct {
	TaskID   string
	ViewerID string
}

type PersonOutput struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ChineseName  string   `json:"chinese_name,omitempty"`
	EnglishName  string   `json:"english_name,omitempty"`
	OriginalName string   `json:"original_name,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	BirthDate    string   `json:"birth_date,omitempty"`
	Nationality  string   `json:"nationality,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Position     string   `json:"position,omitempty"`
	Tags         []string `json:"tags"`
	ImagePaths   []string `json:"image_paths"`
	IsPublic     bool     `json:"is_public"`
	OwnerName    string   `json:"owner_name,omitempty"`
}

type ResultOutput struct {
	ID               string          `json:"id"`
	Index            int             `json:"index"`
	Name             string          `json:"name"`
	BirthDate        string          `json:"birth_date"`
	Gender           string          `json:"gender"`
	Nationality      string          `json:"nationality"`
	SourceText       string          `json:"source_text"`
	Payload          json.RawMessage `json:"payload"`
	ImagePaths       []string        `json:"image_paths"`
	Confirmed        bool            `json:"confirmed"`
	Imported         bool            `json:"imported"`
	ImportedPersonID *string         `json:"imported_person_id,omitempty"`
	Similar          []PersonOutput  `json:"similar"`
}

type GetImportTaskDetailOutput struct {
	Task         TaskOutput     `json:"task"`
	OriginalText string         `json:"original_text"`
	Results      []ResultOutput `json:"results"`
}

type GetImportTaskDetail interface {
	Execute(ctx context.Context, in GetImportTaskDetailInput) (GetImportTaskDetailOutput, error)
}

type getImportTaskDetail struct {
	tasks   domain.ImportTaskRepository
	results domain.ExtractResultRepository
	persons domain.PersonRepository
}

func NewGetImportTaskDetail(tasks domain.ImportTaskRepository, results domain.ExtractResultRepository, persons domain.PersonRepository) GetImportTaskDetail {
	return &getImportTaskDetail{tasks: tasks, results: results, persons: persons}
}

// Execute returns the task with every result and the matched persons the viewer may see.
func (uc *getImportTaskDetail) Execute(ctx context.Context, in GetImportTaskDetailInput) (GetImportTaskDetailOutput, error) {
	if !taskIDPattern.MatchString(in.TaskID) {
		return GetImportTaskDetailOutput{}, ErrInvalidTaskID
	}

	task, err := uc.tasks.GetByID(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return GetImportTaskDetailOutput{}, ErrTaskNotFound
		}
		return GetImportTaskDetailOutput{}, fmt.Errorf("%w: %v", ErrGetTask, err)
	}

	results, err := uc.results.ListByTask(ctx, task.ID)
	if err != nil {
		return GetImportTaskDetailOutput{}, fmt.Errorf("%w: %v", ErrGetTask, err)
	}
	matches, err := uc.results.ListMatchesByTask(ctx, task.ID)
	if err != nil {
		return GetImportTaskDetailOutput{}, fmt.Errorf("%w: %v", ErrGetTask, err)
	}

	personIDs := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		if _, ok := seen[match.PersonID]; ok {
			continue
		}
		seen[match.PersonID] = struct{}{}
		personIDs = append(personIDs, match.PersonID)
	}

	visible := make(map[string]domain.Person, len(personIDs))
	if len(personIDs) > 0 {
		persons, err := uc.persons.GetVisibleByIDs(ctx, personIDs, in.ViewerID)
		if err != nil {
			return GetImportTaskDetailOutput{}, fmt.Errorf("%w: %v", ErrGetTask, err)
		}
		for _, p := range persons {
			if p.VisibleTo(in.ViewerID) {
				visible[p.ID] = p
			}
		}
	}

	similarByResult := make(map[string][]PersonOutput, len(results))
	for _, match := range matches {
		if p, ok := visible[match.PersonID]; ok {
			similarByResult[match.ResultID] = append(similarByResult[match.ResultID], toPersonOutput(p))
		}
	}

	out := GetImportTaskDetailOutput{
		Task:         toTaskOutput(*task),
		OriginalText: task.OriginalText,
		Results:      make([]ResultOutput, 0, len(results)),
	}
	for _, result := range results {
		similar := similarByResult[result.ID]
		if similar == nil {
			similar = []PersonOutput{}
		}
		payload := result.RawPayload
		if len(payload) == 0 {
			payload = json.RawMessage(`{}`)
		}
		out.Results = append(out.Results, ResultOutput{
			ID:               result.ID,
			Index:            result.Index,
			Name:             result.Identity.Name,
			BirthDate:        result.Identity.BirthDate,
			Gender:           result.Identity.Gender,
			Nationality:      result.Identity.Nationality,
			SourceText:       result.SourceText,
			Payload:          payload,
			ImagePaths:       nonNil(result.ImagePaths),
			Confirmed:        result.Confirmed,
			Imported:         result.Imported,
			ImportedPersonID: result.ImportedPersonID,
			Similar:          similar,
		})
	}
	return out, nil
}

func toPersonOutput(p domain.Person) PersonOutput {
	return PersonOutput{
		ID:           p.ID,
		Name:         p.Name,
		ChineseName:  p.ChineseName,
		EnglishName:  p.EnglishName,
		OriginalName: p.OriginalName,
		Gender:       p.Gender,
		BirthDate:    p.BirthDate,
		Nationality:  p.Nationality,
		Organization: p.Organization,
		Position:     p.Position,
		Tags:         nonNil(p.Tags),
		ImagePaths:   nonNil(p.ImagePaths),
		IsPublic:     p.IsPublic,
		OwnerName:    p.OwnerName,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
