// Package app wires configuration to adapters and owns the process
// lifecycle: one-shot runs and scheduled mode.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsPipeline/internal/canonical"
	"NewsPipeline/internal/config"
	"NewsPipeline/internal/infrastructure/enrich"
	"NewsPipeline/internal/infrastructure/feed"
	"NewsPipeline/internal/infrastructure/images"
	"NewsPipeline/internal/infrastructure/llm"
	"NewsPipeline/internal/infrastructure/scheduler"
	"NewsPipeline/internal/infrastructure/storage"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/newsroom"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/ranker"
	"NewsPipeline/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance. It fails fast on an
// unreachable database or an empty feed list.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if len(cfg.Feeds.Endpoints) == 0 {
		return nil, fmt.Errorf("no feed endpoints configured")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := storage.New(db, baseLogger.With("component", "storage"))
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	source := feed.NewClient(nil, cfg.Feeds, baseLogger.With("component", "feed"))

	canonicalizer := canonical.New(
		&http.Client{Timeout: time.Duration(cfg.Canonical.TimeoutSeconds) * time.Second},
		cfg.Canonical.RedirectHosts,
		baseLogger.With("component", "canonical"),
	)

	var finder ports.ImageFinder
	if pexels := images.NewPexelsClient(cfg.Images.PexelsEndpoint, cfg.Images.PexelsKey, nil,
		baseLogger.With("component", "images")); pexels != nil {
		finder = pexels
	}

	enricher := enrich.New(nil, cfg.Feeds.UserAgent, finder, images.DefaultPool(),
		baseLogger.With("component", "enrich"))

	rotation := llm.NewRotation(cfg.Providers, nil, baseLogger.With("component", "llm"))
	if !rotation.Available() {
		baseLogger.Warn("no text providers configured, using fallback templates")
	}
	room := newsroom.New(rotation, cfg.Newsroom, baseLogger.With("component", "newsroom"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:        source,
		Canonicalizer: canonicalizer,
		Ranker:        ranker.New(cfg.Ranking),
		Newsroom:      room,
		Enricher:      enricher,
		Store:         store,
		Selection:     cfg.Selection,
		Logger:        baseLogger,
	})

	return &Application{cfg: cfg, logger: baseLogger, db: db, pipeline: pipeline}, nil
}

// Run executes the pipeline: once when no cron expression is configured,
// otherwise on the schedule until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.db.Close()

	if a.cfg.Scheduler.CronExpression == "" {
		return a.runOnce(ctx)
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression)
	sched := usecase.NewScheduler(driver, a.pipeline, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

func (a *Application) runOnce(ctx context.Context) error {
	if a.cfg.Selection.RunTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.Selection.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}
	return a.pipeline.Run(ctx, time.Now())
}
