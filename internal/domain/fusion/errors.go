package fusion

import "errors"

var (
	ErrTaskNotFound        = errors.New("import task not found")
	ErrResultNotFound      = errors.New("extract result not found")
	ErrInvalidTransition   = errors.New("invalid task status transition")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDocument       = errors.New("document parsing produced no text")
	ErrNoStoredFile        = errors.New("task has no stored file")
	ErrBlobNotFound        = errors.New("blob not found")
	ErrAlreadyImported     = errors.New("extract result already imported")
	ErrInvalidVisibility   = errors.New("visibility must be public or private")
	ErrQueueClosed         = errors.New("task queue closed")
)
