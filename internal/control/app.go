// Package control wires the application together: storage backend,
// checkpoint store, resume coordinator, analysis collaborator and the
// monitoring surface.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/batcher/internal/analysis"
	"github.com/vietddude/batcher/internal/batch"
	"github.com/vietddude/batcher/internal/checkpoint"
	"github.com/vietddude/batcher/internal/core/config"
	"github.com/vietddude/batcher/internal/core/domain"
	"github.com/vietddude/batcher/internal/core/worker"
	"github.com/vietddude/batcher/internal/health"
	"github.com/vietddude/batcher/internal/infra/storage"
	"github.com/vietddude/batcher/internal/infra/storage/local"
	"github.com/vietddude/batcher/internal/infra/storage/memory"
	"github.com/vietddude/batcher/internal/infra/storage/postgres"
	redisbackend "github.com/vietddude/batcher/internal/infra/storage/redis"
	"github.com/vietddude/batcher/internal/retry"
)

// StrategyAnalyze is the blog-post analysis collaborator, currently the
// only member of the strategy set. Recorded on each run so resume picks
// the same work function.
const StrategyAnalyze = "analyze"

// App is the assembled application.
type App struct {
	cfg      *config.AppConfig
	backend  storage.Backend
	store    *checkpoint.Store
	coord    *checkpoint.Coordinator
	analyzer *analysis.Analyzer
	sweeper  *worker.Sweeper
	health   *health.Server
	log      *slog.Logger

	closeBackend func() error
}

// NewApp builds the application from config.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	app := &App{
		cfg: cfg,
		log: slog.With("component", "app"),
	}

	if err := app.initBackend(ctx); err != nil {
		return nil, err
	}

	app.store = checkpoint.NewStore(app.backend)
	app.coord = checkpoint.NewCoordinator(app.store, batch.Config{
		Concurrency:     cfg.Batch.Concurrency,
		CheckpointEvery: cfg.Batch.CheckpointEvery,
		Retry: retry.Config{
			MaxAttempts: cfg.Batch.MaxAttempts,
			BaseDelay:   config.ParseDuration(cfg.Batch.BaseDelay, retry.DefaultConfig.BaseDelay),
			MaxDelay:    config.ParseDuration(cfg.Batch.MaxDelay, retry.DefaultConfig.MaxDelay),
			Jitter:      true,
		},
	})

	app.sweeper = worker.NewSweeper(app.store, cfg.RetentionPeriod())

	if cfg.Server.Port > 0 {
		app.health = health.NewServer(cfg.Server.Port)
	}

	return app, nil
}

func (a *App) initBackend(ctx context.Context) error {
	switch a.cfg.Storage.Type {
	case "", "local":
		backend, err := local.New(a.cfg.Storage.Local)
		if err != nil {
			return fmt.Errorf("failed to init local storage: %w", err)
		}
		a.backend = backend
		a.log.Info("Using local storage", "dir", a.cfg.Storage.Local.Dir)

	case "redis":
		backend, err := redisbackend.New(a.cfg.Storage.Redis)
		if err != nil {
			return fmt.Errorf("failed to init redis storage: %w", err)
		}
		a.backend = backend
		a.closeBackend = backend.Close
		a.log.Info("Using Redis storage")

	case "postgres":
		backend, err := postgres.New(ctx, a.cfg.Storage.Postgres)
		if err != nil {
			return fmt.Errorf("failed to init postgres storage: %w", err)
		}
		if err := backend.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		a.backend = backend
		a.closeBackend = backend.Close
		a.log.Info("Using PostgreSQL storage")

	case "memory":
		a.backend = memory.New()
		a.log.Info("Using in-memory storage")

	default:
		return fmt.Errorf("unknown storage type %q", a.cfg.Storage.Type)
	}
	return nil
}

// Run scrapes the listing page and processes every extracted post as a
// fresh batch run, then exports the result summary.
func (a *App) Run(ctx context.Context, listingURL string) (*domain.RunState, error) {
	work, err := a.workFor(StrategyAnalyze)
	if err != nil {
		return nil, err
	}

	items, err := analysis.ExtractLinks(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to collect work items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no blog posts found at %s", listingURL)
	}
	a.log.Info("Collected work items", "source", listingURL, "count", len(items))

	stop := a.startServices(ctx)
	defer stop()

	state, runErr := a.coord.Start(ctx, listingURL, StrategyAnalyze, items, work, a.progressFunc())
	a.finishRun(ctx, state, runErr)
	return state, runErr
}

// workFor resolves a recorded strategy to its work function. The
// analysis client is built on first use so commands that never invoke
// the work function (runs, purge) need no API credential.
func (a *App) workFor(strategy string) (batch.WorkFunc, error) {
	switch strategy {
	case StrategyAnalyze, "":
		analyzer, err := a.ensureAnalyzer()
		if err != nil {
			return nil, err
		}
		return analyzer.WorkFunc(), nil
	default:
		return nil, fmt.Errorf("unknown work strategy %q", strategy)
	}
}

func (a *App) ensureAnalyzer() (*analysis.Analyzer, error) {
	if a.analyzer != nil {
		return a.analyzer, nil
	}
	client, err := analysis.NewClient(analysis.Config{
		Model:           a.cfg.Analysis.Model,
		APIKey:          a.cfg.Analysis.APIKey,
		BaseURL:         a.cfg.Analysis.BaseURL,
		MaxContentChars: a.cfg.Analysis.MaxContentChars,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init analysis client: %w", err)
	}
	a.analyzer = analysis.NewAnalyzer(client)
	return a.analyzer, nil
}

// Resume continues the stored run, dispatching only items without a
// recorded result.
func (a *App) Resume(ctx context.Context, runID string) (*domain.RunState, error) {
	stop := a.startServices(ctx)
	defer stop()

	state, runErr := a.coord.Resume(ctx, runID, a.workFor, a.progressFunc())
	if state != nil {
		a.finishRun(ctx, state, runErr)
	}
	return state, runErr
}

// ListRuns returns all stored incomplete runs, newest first.
func (a *App) ListRuns(ctx context.Context) ([]checkpoint.Summary, error) {
	return a.coord.ListResumable(ctx)
}

// Purge deletes completed checkpoints older than the retention window.
func (a *App) Purge(ctx context.Context) (int, error) {
	return a.sweeper.SweepOnce(ctx)
}

// Close releases backend resources.
func (a *App) Close() {
	if a.closeBackend != nil {
		if err := a.closeBackend(); err != nil {
			a.log.Warn("Failed to close storage backend", "error", err)
		}
	}
}

// startServices brings up the run-scoped monitoring server and the
// retention sweeper. The returned stop function shuts them down.
func (a *App) startServices(ctx context.Context) func() {
	svcCtx, cancel := context.WithCancel(ctx)
	go a.sweeper.Start(svcCtx)

	if a.health != nil {
		go func() {
			if err := a.health.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("Health server exited", "error", err)
			}
		}()
		a.log.Info("Health server listening", "port", a.cfg.Server.Port)
	}

	return func() {
		cancel()
		if a.health != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer shutdownCancel()
			_ = a.health.Stop(shutdownCtx)
		}
	}
}

func (a *App) progressFunc() batch.ProgressFunc {
	return func(completed, total int) {
		if a.health != nil {
			a.health.Track(completed, total)
		}
	}
}

// finishRun exports the run summary. Interrupted runs are left as
// checkpoints only; the export happens when the run finishes.
func (a *App) finishRun(ctx context.Context, state *domain.RunState, runErr error) {
	if runErr != nil && !errors.Is(runErr, batch.ErrCheckpointSave) {
		return
	}
	if err := a.exportResults(context.WithoutCancel(ctx), state); err != nil {
		a.log.Warn("Failed to export results", "run_id", state.RunID, "error", err)
	}
}

type runExport struct {
	RunID     string              `json:"run_id"`
	SourceURL string              `json:"source_url"`
	Status    domain.RunStatus    `json:"status"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []domain.TaskResult `json:"results"`
}

func (a *App) exportResults(ctx context.Context, state *domain.RunState) error {
	failed := state.FailedCount()
	export := runExport{
		RunID:     state.RunID,
		SourceURL: state.SourceURL,
		Status:    state.Status,
		Total:     len(state.Items),
		Succeeded: len(state.Results) - failed,
		Failed:    failed,
		Results:   state.ResultSlice(),
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	key := fmt.Sprintf("results_%s.json", state.RunID)
	if err := a.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}
	a.log.Info("Exported run results", "key", key, "succeeded", export.Succeeded, "failed", failed)
	return nil
}
