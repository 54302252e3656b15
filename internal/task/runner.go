package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// JobExecutor runs a single job to completion.
type JobExecutor interface {
	Execute(ctx context.Context, job Job) error
}

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// LongRunningAge defines how long a task may go without a record update
	// before the monitor warns about it. Tasks are never reset: there is no
	// mid-flight cancellation, only an operator restart.
	LongRunningAge time.Duration

	// LongRunningCheckInterval defines how often to look for long-running tasks.
	// If zero, defaults to 5 minutes.
	LongRunningCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		LongRunningAge:           30 * time.Minute,
		LongRunningCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner accepts jobs and executes each on its own background goroutine.
// There is no bounded queue: jobs line up at the pipeline resource inside the
// executor, in submission order.
type TaskRunner struct {
	store      Store
	executor   JobExecutor
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(job Job, err error)

	mu      sync.Mutex
	stopped bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store Store, executor JobExecutor, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	// Apply default check interval if not specified
	if config.LongRunningCheckInterval == 0 {
		config.LongRunningCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	return &TaskRunner{
		store:      store,
		executor:   executor,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(job Job, err error) {
			// Default error handler just logs the error
			logger.Warn("task execution failed",
				"task_id", job.TaskID,
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(job Job, err error)) {
	r.errHandler = handler
}

// Submit creates the task record and starts its execution in the background.
// It never waits for the job itself.
func (r *TaskRunner) Submit(ctx context.Context, job Job) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return Record{}, ErrRunnerStopped
	}

	// Save the record first so pollers can see it immediately
	rec, err := r.store.Create(ctx, job.TaskID)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save task: %w", err)
	}

	r.wg.Add(1)
	go r.processJob(job)

	r.logger.Debug("task submitted", "task_id", job.TaskID)
	return rec, nil
}

// Start recovers records left behind by a previous process and starts the
// long-running task monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	if r.config.LongRunningAge > 0 {
		r.wg.Add(1)
		go r.longRunningMonitor()
	}

	return nil
}

// Stop refuses new jobs, abandons jobs still waiting for the pipeline, and waits
// for the running job until ctx expires.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("stopped waiting for running tasks", "error", ctx.Err())
		return ctx.Err()
	}
}

// Recover marks records that a previous process left in a non-terminal state
// as failed. Their requests were never persisted, so they cannot be re-run, and
// leaving them active would keep pollers waiting forever.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	records, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	interrupted := 0
	for _, rec := range records {
		if rec.Status.IsTerminal() {
			continue
		}
		patch := Patch{}.
			WithStatus(TaskStatusFailed).
			WithMessage("Interrupted by restart").
			WithProgress(0)
		if err := r.store.Update(ctx, rec.ID, patch); err != nil {
			r.logger.Error("failed to mark interrupted task",
				"task_id", rec.ID,
				"previous_status", rec.Status,
				"error", err)
			continue
		}
		interrupted++
	}

	r.logger.Info("recovered unfinished tasks",
		"task_count", len(records),
		"interrupted_count", interrupted)
	return nil
}

// processJob handles execution of a single job
func (r *TaskRunner) processJob(job Job) {
	defer r.wg.Done()

	if err := r.executor.Execute(r.ctx, job); err != nil {
		r.errHandler(job, err)
	}
}

// longRunningMonitor periodically warns about tasks that have not been updated
// for longer than LongRunningAge while still active.
func (r *TaskRunner) longRunningMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.LongRunningCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			records, err := r.store.List(context.Background())
			if err != nil {
				r.logger.Error("failed to check for long-running tasks", "error", err)
				continue
			}

			cutoff := time.Now().Add(-r.config.LongRunningAge)
			for _, rec := range records {
				if rec.Status != TaskStatusProcessing && rec.Status != TaskStatusGenerating {
					continue
				}
				if rec.UpdatedAt.Before(cutoff) {
					r.logger.Warn("task has not reported progress recently",
						"task_id", rec.ID,
						"status", rec.Status,
						"progress", rec.Progress,
						"last_update", rec.UpdatedAt)
				}
			}
		}
	}
}
