package fusion

import "errors"

var (
	ErrInvalidUpload     = errors.New("invalid upload")
	ErrStoreUpload       = errors.New("failed to store uploaded file")
	ErrCreateTask        = errors.New("failed to create import task")
	ErrInvalidTaskID     = errors.New("invalid import task id")
	ErrTaskNotFound      = errors.New("import task not found")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrGetTask           = errors.New("failed to get import task")
	ErrListTasks         = errors.New("failed to list import tasks")
	ErrConfirmImport     = errors.New("failed to confirm import")
)
