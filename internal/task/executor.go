package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
)

// Common errors
var (
	ErrNilStore     = errors.New("task store cannot be nil")
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilEnhancer  = errors.New("enhancer cannot be nil")
	ErrNilResource  = errors.New("pipeline resource cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)

// Status messages shown to pollers at each checkpoint
const (
	msgInitializing = "Initializing..."
	msgLoading      = "Initializing HeartMuLa pipeline..."
	msgGenerated    = "Generation complete."
	msgEnhancing    = "Enhancing audio (Studio Mode)..."
	msgReady        = "Ready to play."
)

// Job is one unit of work handed from submission to the runner.
type Job struct {
	TaskID  string
	Request domain.SongRequest
}

// ExecutorConfig holds the knobs of a job execution.
type ExecutorConfig struct {
	// OutputDir receives the raw and mastered audio files
	OutputDir string

	// LogFlushInterval throttles log persistence per task
	LogFlushInterval time.Duration

	// Console receives raw pipeline output untouched. Nil disables mirroring.
	Console io.Writer
}

// Executor runs one job end to end: generation, then enhancement, with output
// and progress flowing into the task record.
type Executor struct {
	store     Store
	generator generation.Generator
	enhancer  generation.Enhancer
	resource  *generation.Resource
	config    ExecutorConfig
	logger    *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(
	store Store,
	generator generation.Generator,
	enhancer generation.Enhancer,
	resource *generation.Resource,
	config ExecutorConfig,
	logger *slog.Logger,
) (*Executor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if enhancer == nil {
		return nil, ErrNilEnhancer
	}
	if resource == nil {
		return nil, ErrNilResource
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.OutputDir == "" {
		config.OutputDir = "generated_songs"
	}

	return &Executor{
		store:     store,
		generator: generator,
		enhancer:  enhancer,
		resource:  resource,
		config:    config,
		logger:    logger.With("component", "task_executor"),
	}, nil
}

// Execute waits for the pipeline, runs the job and finalizes the record.
// The returned error mirrors what was recorded on the task; it is informational
// only, since the record is the channel that reports failures to clients.
//
// ctx bounds only the wait for the pipeline. Once the job holds the pipeline it
// runs to completion.
func (e *Executor) Execute(ctx context.Context, job Job) error {
	logger := e.logger.With("task_id", job.TaskID)

	lease, err := e.resource.Acquire(ctx)
	if err != nil {
		logger.Warn("job abandoned while waiting for pipeline", "error", err)
		e.finalize(context.WithoutCancel(ctx), job.TaskID, nil, "", err, logger)
		return err
	}

	runCtx := context.WithoutCancel(ctx)
	// Release is the last thing every execution does.
	defer lease.Release(runCtx)

	sink := NewLogSink(runCtx, e.store, job.TaskID, e.config.Console, e.config.LogFlushInterval, logger)
	progress := NewProgressReporter(e.store, job.TaskID, logger)

	started := time.Now()
	logger.Info("job started", "title", job.Request.Title)

	output, err := e.run(runCtx, job, sink, progress)
	e.finalize(runCtx, job.TaskID, sink, output, err, logger)

	logger.Info("job finished",
		"duration_ms", time.Since(started).Milliseconds(),
		"failed", err != nil)
	return err
}

// run executes the pipeline phases. Panics from collaborators are converted to
// errors so they land on the record like any other failure.
func (e *Executor) run(
	ctx context.Context,
	job Job,
	sink *LogSink,
	progress *ProgressReporter,
) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	id := job.TaskID
	req := job.Request

	if err := e.store.Update(ctx, id, Patch{}.WithStatus(TaskStatusProcessing)); err != nil {
		return "", fmt.Errorf("failed to mark task processing: %w", err)
	}
	e.checkpoint(ctx, sink, progress, id, 5, msgInitializing)
	fmt.Fprintf(sink, "Processing task for song: %s\n", req.Title)

	if err := os.MkdirAll(e.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	rawPath := filepath.Join(e.config.OutputDir, id+"_raw.wav")
	finalPath := filepath.Join(e.config.OutputDir, id+"_"+req.FileStem()+".wav")

	e.checkpoint(ctx, sink, progress, id, PhaseLoad.Lower, msgLoading)
	fmt.Fprintln(sink, "Starting generation sequence...")

	raw, err := e.generator.Generate(ctx, req, rawPath, sink, progress.GenerationStep(ctx))
	if err != nil {
		return "", wrapPhaseError(generation.ErrGenerationFailed, err)
	}
	fmt.Fprintln(sink, "Generation sequence completed.")

	generated := Patch{}.
		WithStatus(TaskStatusGenerating).
		WithMessage(msgGenerated).
		WithProgress(PhaseGeneration.Upper)
	if err := e.store.Update(ctx, id, generated); err != nil {
		return "", fmt.Errorf("failed to record generation result: %w", err)
	}

	e.checkpoint(ctx, sink, progress, id, PhaseEnhancement.Lower, msgEnhancing)
	final, err := e.enhancer.Enhance(ctx, raw, finalPath, sink)
	if err != nil {
		return "", wrapPhaseError(generation.ErrEnhancementFailed, err)
	}

	fmt.Fprintf(sink, "Task completed successfully. Final output: %s\n", final)
	return final, nil
}

// finalize writes the terminal status. The captured logs travel in the same
// patch so the final output is persisted together with the status.
func (e *Executor) finalize(
	ctx context.Context,
	id string,
	sink *LogSink,
	output string,
	runErr error,
	logger *slog.Logger,
) {
	patch := Patch{}
	if runErr != nil {
		if sink != nil {
			fmt.Fprintf(sink, "Task %s failed: %v\n", id, runErr)
		}
		patch = patch.
			WithStatus(TaskStatusFailed).
			WithMessage(runErr.Error()).
			WithProgress(0)
	} else {
		patch = patch.
			WithStatus(TaskStatusCompleted).
			WithMessage(msgReady).
			WithProgress(100).
			WithOutput(filepath.Base(output))
	}
	if sink != nil {
		patch = patch.WithLogs(sink.Lines())
	}

	if err := e.store.Update(ctx, id, patch); err != nil {
		logger.Error("failed to finalize task", "error", err)
	}
}

func (e *Executor) checkpoint(
	ctx context.Context,
	sink io.Writer,
	progress *ProgressReporter,
	id string,
	value int,
	message string,
) {
	progress.Checkpoint(ctx, value, message)
	fmt.Fprintf(sink, "[%s] %s\n", id, message)
}

// wrapPhaseError tags err with the phase sentinel unless it already carries it.
func wrapPhaseError(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
