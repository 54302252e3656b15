package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/kunoai/kuno-engine/internal/config"
	"github.com/kunoai/kuno-engine/internal/events"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/platform/filestore"
	"github.com/kunoai/kuno-engine/internal/platform/pipeline"
	"github.com/kunoai/kuno-engine/internal/platform/postgres"
	"github.com/kunoai/kuno-engine/internal/platform/sysstats"
	"github.com/kunoai/kuno-engine/internal/projectstate"
	"github.com/kunoai/kuno-engine/internal/redact"
	"github.com/kunoai/kuno-engine/internal/service"
	"github.com/kunoai/kuno-engine/internal/task"
)

// collaborators bundles the pipeline implementations selected by configuration.
type collaborators struct {
	generator generation.Generator
	enhancer  generation.Enhancer
	releaser  generation.Releaser
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB // nil unless the postgres backend is selected

	// Task handling
	taskStore  *task.MemoryStore
	taskRunner *task.TaskRunner
	resource   *generation.Resource
	settings   *generation.SettingsStore

	// Event system
	eventBus *events.Bus

	// Service interfaces
	generationService service.GenerationService
	systemService     service.SystemService
}

// newApplication creates a new application instance with all dependencies
// initialized. The task runner is started: interrupted tasks from a previous
// process are failed before the first request is served.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	backend, err := app.setupTaskBackend(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.taskStore = task.OpenMemoryStore(ctx, backend, logger)

	app.settings, err = generation.NewSettingsStore(generation.Settings{
		Device:         cfg.Pipeline.Settings.Device,
		UseGPU:         cfg.Pipeline.Settings.UseGPU,
		UseCPUDecoding: cfg.Pipeline.Settings.UseCPUDecoding,
		ModelID:        cfg.Pipeline.Settings.ModelID,
		VRAMTarget:     cfg.Pipeline.Settings.VRAMTarget,
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to load pipeline settings: %w", err)
	}

	pipe, err := setupPipeline(cfg.Pipeline, app.settings, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to set up pipeline: %w", err)
	}
	app.resource = generation.NewResource(pipe.releaser, logger)

	executor, err := task.NewExecutor(
		app.taskStore,
		pipe.generator,
		pipe.enhancer,
		app.resource,
		task.ExecutorConfig{
			OutputDir:        cfg.Pipeline.OutputDir,
			LogFlushInterval: cfg.Task.LogFlushInterval,
			Console:          os.Stderr,
		},
		logger,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task executor: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(app.taskStore, executor, task.TaskRunnerConfig{
		LongRunningAge:           cfg.Task.LongRunningAge,
		LongRunningCheckInterval: cfg.Task.LongRunningCheckInterval,
	}, logger)
	app.taskRunner.SetErrorHandler(jobFailureHandler(logger))
	if err := app.taskRunner.Start(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	projectStore, err := projectstate.NewStore(cfg.Project.StatePath, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create project state store: %w", err)
	}

	// The project slot is saved whenever a submission is accepted
	app.eventBus = events.NewBus(logger)
	app.eventBus.Subscribe(projectStore, events.TypeSubmissionAccepted)

	app.generationService, err = service.NewGenerationService(service.GenerationDeps{
		Runner:    app.taskRunner,
		Tasks:     app.taskStore,
		Emitter:   app.eventBus,
		Project:   projectStore,
		Resetter:  app.resource,
		OutputDir: cfg.Pipeline.OutputDir,
		UploadDir: cfg.Project.UploadDir,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}

	app.systemService, err = service.NewSystemService(service.SystemDeps{
		Collector: sysstats.NewCollector(logger),
		Pipeline:  app.resource,
		Settings:  app.settings,
		GPUName:   cfg.Pipeline.Settings.GPUName,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create system service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupTaskBackend opens the configured durable backend for task records.
func (app *application) setupTaskBackend(ctx context.Context) (task.Backend, error) {
	switch app.config.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := postgres.Open(ctx, app.config.Store.DatabaseURL, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.db = db

		if err := postgres.Migrate(ctx, db, app.logger); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		backend, err := postgres.NewTaskBackend(db, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres task backend: %w", err)
		}
		app.logger.Info("Using postgres task backend")
		return backend, nil

	default:
		backend, err := filestore.NewBackend(app.config.Store.Path, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file task backend: %w", err)
		}
		app.logger.Info("Using file task backend", "path", backend.Path())
		return backend, nil
	}
}

// jobFailureHandler reports jobs that ended in failure. The task record already
// carries the user-facing message.
func jobFailureHandler(logger *slog.Logger) func(job task.Job, err error) {
	return func(job task.Job, err error) {
		logger.Error("generation job failed",
			"task_id", job.TaskID,
			"title", job.Request.Title,
			"error", redact.Error(err))
	}
}

// setupPipeline builds the generation collaborators for the configured mode.
// Command generators receive the live settings with every request.
func setupPipeline(
	cfg config.PipelineConfig,
	settings generation.SettingsProvider,
	logger *slog.Logger,
) (collaborators, error) {
	if cfg.Mode == config.PipelineModeSimulate {
		sim := pipeline.NewSimulator(pipeline.SimulatorConfig{
			Frames:    cfg.Simulator.Frames,
			StepDelay: cfg.Simulator.StepDelay,
			Seconds:   cfg.Simulator.Seconds,
		}, logger)
		logger.Warn("Using simulated pipeline; generated audio is silent")
		return collaborators{generator: sim, enhancer: sim, releaser: sim}, nil
	}

	generator, err := pipeline.NewCommandGenerator(pipeline.Command(cfg.Generator), logger)
	if err != nil {
		return collaborators{}, fmt.Errorf("generator: %w", err)
	}
	generator.UseSettings(settings)
	enhancer, err := pipeline.NewCommandEnhancer(pipeline.Command(cfg.Enhancer), logger)
	if err != nil {
		return collaborators{}, fmt.Errorf("enhancer: %w", err)
	}
	releaser := pipeline.NewCommandReleaser(pipeline.Command(cfg.Releaser), logger)

	logger.Info("Using command pipeline",
		"generator", cfg.Generator.Path,
		"enhancer", cfg.Enhancer.Path,
		"releaser_configured", cfg.Releaser.Path != "")
	return collaborators{generator: generator, enhancer: enhancer, releaser: releaser}, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. Jobs still
// waiting for the pipeline are abandoned; the running job gets until the
// shutdown timeout to finish.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		if err := app.taskRunner.Stop(ctx); err != nil {
			app.logger.Error("Task runner did not stop cleanly", "error", err)
		}
		cancel()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
