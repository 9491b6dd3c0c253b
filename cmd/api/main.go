package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mohammadpnp/person-fusion/internal/bootstrap"
	"github.com/mohammadpnp/person-fusion/internal/config"
	"github.com/mohammadpnp/person-fusion/internal/infrastructure/repository"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer lg.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{})
	if err != nil {
		lg.Fatal("failed to connect database", "error", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		lg.Fatal("failed to migrate database", "error", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		lg.Fatal("failed to create pgx pool", "error", err)
	}
	defer pool.Close()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	application, err := bootstrap.NewApp(workerCtx, cfg, db, pool, lg)
	if err != nil {
		lg.Fatal("failed to build application", "error", err)
	}
	application.Worker.Start(workerCtx)

	go func() {
		lg.Info("http server listening", "port", cfg.HTTP.Port)
		if err := application.Server.Start(":" + cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Server.Shutdown(ctx); err != nil {
		lg.Error("graceful shutdown failed", "error", err)
	}

	stopWorkers()
	application.Worker.Wait()

	if err := application.Close(); err != nil {
		lg.Warn("release resources failed", "error", err)
	}
}
