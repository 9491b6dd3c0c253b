package fusion

import (
	"context"

	"golang.org/x/sync/errgroup"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

type UploadFile struct {
	FileName string
	Content  []byte
}

type BatchCreateImportTasksInput struct {
	Files   []UploadFile
	Creator *domain.Creator
}

type BatchFailure struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

type BatchCreateImportTasksOutput struct {
	Successes []TaskOutput   `json:"successes"`
	Failures  []BatchFailure `json:"failures"`
}

type BatchCreateImportTasks interface {
	Execute(ctx context.Context, in BatchCreateImportTasksInput) (BatchCreateImportTasksOutput, error)
}

type batchCreateImportTasks struct {
	create      CreateImportTask
	concurrency int
}

func NewBatchCreateImportTasks(create CreateImportTask, concurrency int) BatchCreateImportTasks {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &batchCreateImportTasks{create: create, concurrency: concurrency}
}

// Execute creates one independent task per file. Each file's outcome is reported on its own,
// in input order.
func (uc *batchCreateImportTasks) Execute(ctx context.Context, in BatchCreateImportTasksInput) (BatchCreateImportTasksOutput, error) {
	if len(in.Files) == 0 {
		return BatchCreateImportTasksOutput{}, ErrInvalidUpload
	}

	tasks := make([]*TaskOutput, len(in.Files))
	errs := make([]error, len(in.Files))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, file := range in.Files {
		i, file := i, file
		g.Go(func() error {
			out, err := uc.create.Execute(ctx, CreateImportTaskInput{
				FileName: file.FileName,
				Content:  file.Content,
				Creator:  in.Creator,
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			tasks[i] = &out
			return nil
		})
	}
	_ = g.Wait()

	out := BatchCreateImportTasksOutput{
		Successes: make([]TaskOutput, 0, len(in.Files)),
		Failures:  make([]BatchFailure, 0),
	}
	for i, file := range in.Files {
		if errs[i] != nil {
			out.Failures = append(out.Failures, BatchFailure{FileName: file.FileName, Error: errs[i].Error()})
			continue
		}
		out.Successes = append(out.Successes, *tasks[i])
	}
	return out, nil
}
