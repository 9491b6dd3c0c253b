package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	app "github.com/mohammadpnp/person-fusion/internal/application/fusion"
	"github.com/mohammadpnp/person-fusion/internal/config"
	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/blob"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/extractor"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/parser"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/queue"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/repository"
	httpecho "github.com/mohammadpnp/person-fusion/internal/interfaces/http/echo"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

// App holds the wired HTTP server, the import worker and the resources they own.
type App struct {
	Server *echo.Echo
	Worker *app.ImportWorker

	closers []func() error
}

type closableQueue interface {
	domain.TaskQueue
	Close() error
}

func NewApp(ctx context.Context, cfg config.Config, db *gorm.DB, pool *pgxpool.Pool, log *logger.Logger) (*App, error) {
	a := &App{}

	blobs, err := newBlobStore(ctx, cfg.Blob, log)
	if err != nil {
		return nil, err
	}
	if closer, ok := blobs.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	taskQueue, err := newTaskQueue(ctx, cfg.Queue, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, taskQueue.Close)

	records, err := extractor.New(extractor.Config{
		BaseURL:              cfg.LLM.BaseURL,
		APIKey:               cfg.LLM.APIKey,
		Model:                cfg.LLM.Model,
		FallbackModel:        cfg.LLM.FallbackModel,
		Timeout:              cfg.LLM.Timeout,
		MaxRetries:           cfg.LLM.MaxRetries,
		MaxInputChars:        cfg.LLM.MaxInputChars,
		PlaceholderOnFailure: cfg.LLM.PlaceholderOnFailure,
	}, log)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create extractor: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		log.Warn("llm api key is not set; uploads will finish with no extracted records")
	}

	taskRepo := repository.NewImportTaskRepository(db)
	resultRepo := repository.NewExtractResultRepository(db, pool)
	personRepo := repository.NewPersonRepository(db)
	tagRepo := repository.NewTagRepository(db)

	createTask := app.NewCreateImportTask(taskRepo, blobs, taskQueue, log)
	importHandler := httpecho.NewImportHandler(
		createTask,
		app.NewBatchCreateImportTasks(createTask, cfg.Batch.Concurrency),
		app.NewConfirmImport(taskRepo, resultRepo, log),
	)
	taskHandler := httpecho.NewTaskHandler(
		app.NewListImportTasks(taskRepo),
		app.NewGetImportTaskDetail(taskRepo, resultRepo, personRepo),
	)
	a.Server = NewHTTPServer(cfg.HTTP.BodyLimit, log, importHandler, taskHandler)

	a.Worker = app.NewImportWorker(app.ImportWorkerDeps{
		Tasks:     taskRepo,
		Results:   resultRepo,
		Tags:      tagRepo,
		Blobs:     blobs,
		Parser:    parser.New(log),
		Extractor: records,
		Matcher:   app.NewSimilarityMatcher(personRepo),
		Queue:     taskQueue,
	}, app.ImportWorkerConfig{
		Workers:        cfg.Worker.Count,
		RecoverOnStart: cfg.Worker.RecoverOnStart,
	}, log)

	return a, nil
}

// Close releases the queue and blob clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newBlobStore(ctx context.Context, cfg config.BlobConfig, log *logger.Logger) (domain.BlobStore, error) {
	switch cfg.Driver {
	case "gcs":
		store, err := blob.NewGCSStore(ctx, cfg.Bucket, log)
		if err != nil {
			return nil, fmt.Errorf("create gcs blob store: %w", err)
		}
		return store, nil
	default:
		return blob.NewLocalStore(cfg.BaseDir), nil
	}
}

func newTaskQueue(ctx context.Context, cfg config.QueueConfig, log *logger.Logger) (closableQueue, error) {
	switch cfg.Driver {
	case "redis":
		q, err := queue.NewRedisQueue(ctx, cfg.RedisAddr, cfg.RedisKey, log)
		if err != nil {
			return nil, fmt.Errorf("create redis queue: %w", err)
		}
		return q, nil
	default:
		return queue.NewChannelQueue(cfg.Buffer), nil
	}
}
