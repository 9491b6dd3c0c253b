package fusion

import "context"

type ImportTaskRepository interface {
	Create(ctx context.Context, task ImportTask) error
	GetByID(ctx context.Context, taskID string) (*ImportTask, error)
	List(ctx context.Context, creatorID string, page, size int) (TaskPage, error)
	// ListRecoverable returns non-terminal tasks, oldest first.
	ListRecoverable(ctx context.Context, limit int) ([]ImportTask, error)
	// Transition moves the task to next only if its current status is an allowed predecessor.
	Transition(ctx context.Context, taskID string, next TaskStatus) error
	SaveOriginalText(ctx context.Context, taskID string, text string) error
	Complete(ctx context.Context, taskID string, extractCount int) error
	Fail(ctx context.Context, taskID string, reason string) error
}

type ExtractResultRepository interface {
	// SaveExtraction persists the task's results and their similarity edges atomically.
	SaveExtraction(ctx context.Context, taskID string, results []ExtractResult, matches []SimilarMatch) error
	ListByTask(ctx context.Context, taskID string) ([]ExtractResult, error)
	ListMatchesByTask(ctx context.Context, taskID string) ([]SimilarMatch, error)
	GetByIDs(ctx context.Context, resultIDs []string) ([]ExtractResult, error)
	// ImportPerson upserts person and marks the result confirmed and imported in one transaction.
	// It returns ErrAlreadyImported when the result was imported concurrently.
	ImportPerson(ctx context.Context, resultID string, person Person) error
}

type PersonRepository interface {
	FindByIdentity(ctx context.Context, identity Identity, viewerID string) ([]Person, error)
	GetVisibleByIDs(ctx context.Context, personIDs []string, viewerID string) ([]Person, error)
}

type TagRepository interface {
	List(ctx context.Context) ([]Tag, error)
}

type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}

type DocumentParser interface {
	Parse(ctx context.Context, data []byte, fileType FileType) (ParsedDocument, error)
}

// RecordExtractor yields at most one record per unit of text. A nil extraction with a nil
// error means the model produced nothing usable.
type RecordExtractor interface {
	ExtractOne(ctx context.Context, text, sourceFileName string, vocabulary []Tag) (*Extraction, error)
}

type TaskQueue interface {
	Dispatch(ctx context.Context, taskID string) error
	Receive(ctx context.Context) (string, error)
}
