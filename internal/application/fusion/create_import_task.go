package fusion

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

type CreateImportTaskInput struct {
	FileName string
	Content  []byte
	Creator  *domain.Creator
}

type CreateImportTask interface {
	Execute(ctx context.Context, in CreateImportTaskInput) (TaskOutput, error)
}

type createImportTask struct {
	tasks domain.ImportTaskRepository
	blobs domain.BlobStore
	queue domain.TaskQueue
	log   *logger.Logger
}

func NewCreateImportTask(tasks domain.ImportTaskRepository, blobs domain.BlobStore, queue domain.TaskQueue, log *logger.Logger) CreateImportTask {
	return &createImportTask{tasks: tasks, blobs: blobs, queue: queue, log: log.With("component", "CreateImportTask")}
}

// Execute stores the file, records the task as PENDING and hands it to the worker queue.
// A failed dispatch is logged only; the recovery sweep picks the task up later.
func (uc *createImportTask) Execute(ctx context.Context, in CreateImportTaskInput) (TaskOutput, error) {
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" || len(in.Content) == 0 {
		return TaskOutput{}, ErrInvalidUpload
	}

	taskID := uuid.NewString()
	storagePath, err := uc.blobs.Put(ctx, taskID+"/"+SanitizeFileName(fileName), in.Content)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("%w: %v", ErrStoreUpload, err)
	}

	task := domain.ImportTask{
		ID:          taskID,
		FileName:    fileName,
		FileType:    domain.DetectFileType(fileName),
		StoragePath: storagePath,
		Status:      domain.TaskStatusPending,
		Creator:     in.Creator,
	}
	if err := uc.tasks.Create(ctx, task); err != nil {
		return TaskOutput{}, fmt.Errorf("%w: %v", ErrCreateTask, err)
	}

	if err := uc.queue.Dispatch(ctx, taskID); err != nil {
		uc.log.Warn("dispatch import task failed", "task_id", taskID, "error", err)
	}

	created, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return toTaskOutput(task), nil
	}
	return toTaskOutput(*created), nil
}
