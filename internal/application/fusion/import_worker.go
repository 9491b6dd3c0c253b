package fusion

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

const interruptedMessage = "processing was interrupted before results were saved; please upload the file again"

type ImportWorkerConfig struct {
	Workers        int
	RecoverOnStart bool
	RecoveryBatch  int
	PollInterval   time.Duration
}

// ImportWorkerDeps are the collaborators the orchestrator drives a task through.
type ImportWorkerDeps struct {
	Tasks     domain.ImportTaskRepository
	Results   domain.ExtractResultRepository
	Tags      domain.TagRepository
	Blobs     domain.BlobStore
	Parser    domain.DocumentParser
	Extractor domain.RecordExtractor
	Matcher   *SimilarityMatcher
	Queue     domain.TaskQueue
}

// ImportWorker runs the PENDING -> EXTRACTING -> MATCHING -> SUCCESS pipeline for dispatched tasks.
type ImportWorker struct {
	deps ImportWorkerDeps
	cfg  ImportWorkerConfig
	log  *logger.Logger

	once sync.Once
	wg   sync.WaitGroup
}

func NewImportWorker(deps ImportWorkerDeps, cfg ImportWorkerConfig, log *logger.Logger) *ImportWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RecoveryBatch <= 0 {
		cfg.RecoveryBatch = 500
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return &ImportWorker{
		deps: deps,
		cfg:  cfg,
		log:  log.With("component", "ImportWorker"),
	}
}

func (w *ImportWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.workerLoop(ctx)
			}()
		}
		if w.cfg.RecoverOnStart {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if err := w.Recover(ctx); err != nil {
					w.log.Error("recover import tasks failed", "error", err)
				}
			}()
		}
	})
}

// Wait blocks until every goroutine started by Start has returned.
func (w *ImportWorker) Wait() {
	w.wg.Wait()
}

func (w *ImportWorker) workerLoop(ctx context.Context) {
	for {
		taskID, err := w.deps.Queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domain.ErrQueueClosed) {
				return
			}
			w.log.Warn("receive import task failed", "error", err)
			if !sleepWithContext(ctx, w.cfg.PollInterval) {
				return
			}
			continue
		}

		if err := w.ProcessTask(ctx, taskID); err != nil {
			w.log.Error("process import task failed", "task_id", taskID, "error", err)
		}
	}
}

// Recover re-dispatches tasks left PENDING or EXTRACTING and settles tasks left in MATCHING:
// their bulk write is atomic, so persisted results mean only the final status update was lost.
func (w *ImportWorker) Recover(ctx context.Context) error {
	tasks, err := w.deps.Tasks.ListRecoverable(ctx, w.cfg.RecoveryBatch)
	if err != nil {
		return fmt.Errorf("list recoverable tasks: %w", err)
	}

	for _, task := range tasks {
		switch task.Status {
		case domain.TaskStatusPending, domain.TaskStatusExtracting:
			if err := w.deps.Queue.Dispatch(ctx, task.ID); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Warn("re-dispatch import task failed", "task_id", task.ID, "error", err)
			}
		case domain.TaskStatusMatching:
			w.settleMatching(ctx, task.ID)
		}
	}

	if len(tasks) > 0 {
		w.log.Info("recovered import tasks", "count", len(tasks))
	}
	return nil
}

func (w *ImportWorker) settleMatching(ctx context.Context, taskID string) {
	results, err := w.deps.Results.ListByTask(ctx, taskID)
	if err != nil {
		w.log.Warn("load results of interrupted task failed", "task_id", taskID, "error", err)
		return
	}
	if len(results) > 0 {
		if err := w.deps.Tasks.Complete(ctx, taskID, len(results)); err != nil {
			w.log.Warn("complete interrupted task failed", "task_id", taskID, "error", err)
		}
		return
	}
	if err := w.deps.Tasks.Fail(ctx, taskID, interruptedMessage); err != nil {
		w.log.Warn("fail interrupted task failed", "task_id", taskID, "error", err)
	}
}

// ProcessTask drives one task to a terminal status. Tasks outside PENDING/EXTRACTING are ignored,
// so a duplicate dispatch is harmless.
func (w *ImportWorker) ProcessTask(ctx context.Context, taskID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = w.fail(ctx, taskID, fmt.Errorf("panic while processing task: %v", r))
		}
	}()

	task, err := w.deps.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if !task.Status.AcceptsProcessing() {
		w.log.Debug("skip import task", "task_id", task.ID, "status", task.Status)
		return nil
	}
	if strings.TrimSpace(task.StoragePath) == "" {
		return w.fail(ctx, task.ID, domain.ErrNoStoredFile)
	}

	if err := w.deps.Tasks.Transition(ctx, task.ID, domain.TaskStatusExtracting); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			w.log.Debug("import task moved concurrently", "task_id", task.ID, "error", err)
			return nil
		}
		return fmt.Errorf("enter extracting: %w", err)
	}

	start := time.Now()
	count, err := w.run(ctx, *task)
	if err != nil {
		// Another worker advanced or settled the task first; it owns the outcome.
		if errors.Is(err, domain.ErrInvalidTransition) {
			w.log.Debug("import task moved concurrently", "task_id", task.ID, "error", err)
			return nil
		}
		return w.fail(ctx, task.ID, err)
	}

	w.log.Info("import task finished",
		"task_id", task.ID,
		"file", task.FileName,
		"extract_count", count,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *ImportWorker) run(ctx context.Context, task domain.ImportTask) (int, error) {
	data, err := w.deps.Blobs.Get(ctx, task.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("download source file: %w", err)
	}

	doc, err := w.deps.Parser.Parse(ctx, data, task.FileType)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", task.FileName, err)
	}
	if doc.IsEmpty() {
		return 0, fmt.Errorf("parse %s: %w", task.FileName, domain.ErrEmptyDocument)
	}
	if err := w.deps.Tasks.SaveOriginalText(ctx, task.ID, doc.OriginalText()); err != nil {
		return 0, fmt.Errorf("save original text: %w", err)
	}

	vocabulary, err := w.deps.Tags.List(ctx)
	if err != nil {
		w.log.Warn("load tag vocabulary failed; extracting without tags", "task_id", task.ID, "error", err)
		vocabulary = nil
	}

	var imagePaths []string
	if doc.Kind == domain.DocumentKindFullText {
		imagePaths = w.storeImages(ctx, task.ID, doc.Images)
	}

	results := w.extractUnits(ctx, task, doc, vocabulary, imagePaths)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := w.deps.Tasks.Transition(ctx, task.ID, domain.TaskStatusMatching); err != nil {
		return 0, fmt.Errorf("enter matching: %w", err)
	}

	matches := make([]domain.SimilarMatch, 0)
	for _, result := range results {
		similar, err := w.deps.Matcher.FindSimilar(ctx, result.Identity, task.CreatorID())
		if err != nil {
			return 0, fmt.Errorf("find similar persons: %w", err)
		}
		for _, person := range similar {
			matches = append(matches, domain.SimilarMatch{
				ID:       uuid.NewString(),
				TaskID:   task.ID,
				ResultID: result.ID,
				PersonID: person.ID,
			})
		}
	}

	if err := w.deps.Results.SaveExtraction(ctx, task.ID, results, matches); err != nil {
		return 0, fmt.Errorf("save extraction results: %w", err)
	}
	if err := w.deps.Tasks.Complete(ctx, task.ID, len(results)); err != nil {
		return 0, fmt.Errorf("complete task: %w", err)
	}
	return len(results), nil
}

// extractUnits runs the extractor over every unit in order. A failing unit is logged and skipped.
func (w *ImportWorker) extractUnits(ctx context.Context, task domain.ImportTask, doc domain.ParsedDocument, vocabulary []domain.Tag, imagePaths []string) []domain.ExtractResult {
	units := doc.Units()
	results := make([]domain.ExtractResult, 0, len(units))

	for i, unit := range units {
		if ctx.Err() != nil {
			return results
		}
		if strings.TrimSpace(unit) == "" {
			continue
		}

		index := i
		if doc.Kind == domain.DocumentKindRows {
			index = i + 1
		}

		extraction, err := w.deps.Extractor.ExtractOne(ctx, unit, task.FileName, vocabulary)
		if err != nil {
			w.log.Warn("extract unit failed", "task_id", task.ID, "unit", index, "error", err)
			continue
		}
		if extraction == nil {
			continue
		}

		identity := extraction.Fields.Identity()
		identity.BirthDate = domain.NormalizeBirthDate(identity.BirthDate)

		result := domain.ExtractResult{
			ID:         uuid.NewString(),
			TaskID:     task.ID,
			Index:      index,
			Identity:   identity,
			SourceText: unit,
			RawPayload: extraction.Raw,
		}
		if doc.Kind == domain.DocumentKindFullText {
			result.ImagePaths = imagePaths
		}
		results = append(results, result)
	}
	return results
}

func (w *ImportWorker) storeImages(ctx context.Context, taskID string, images []domain.Image) []string {
	paths := make([]string, 0, len(images))
	for n, img := range images {
		key := fmt.Sprintf("%s/images/%d%s", taskID, n+1, imageExt(img))
		stored, err := w.deps.Blobs.Put(ctx, key, img.Data)
		if err != nil {
			w.log.Warn("store document image failed", "task_id", taskID, "image", img.Name, "error", err)
			continue
		}
		paths = append(paths, stored)
	}
	return paths
}

func imageExt(img domain.Image) string {
	if ext := strings.ToLower(filepath.Ext(img.Name)); ext != "" {
		return ext
	}
	if img.ContentType != "" {
		if exts, err := mime.ExtensionsByType(img.ContentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ".bin"
}

// fail records err on the task. Cancellation leaves the task as-is for the recovery sweep.
func (w *ImportWorker) fail(ctx context.Context, taskID string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	reason := truncateReason(err.Error())
	if failErr := w.deps.Tasks.Fail(ctx, taskID, reason); failErr != nil {
		return fmt.Errorf("%v; fail update failed: %w", err, failErr)
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
