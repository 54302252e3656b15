package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Phase is a fixed band of the 0-100 global progress scale.
type Phase struct {
	Name  string
	Lower int
	Upper int
}

// Pipeline phases in execution order. Bands reflect pipeline position, not time.
var (
	PhaseInitialization = Phase{Name: "initialization", Lower: 0, Upper: 10}
	PhaseLoad           = Phase{Name: "load", Lower: 10, Upper: 20}
	PhaseGeneration     = Phase{Name: "generation", Lower: 20, Upper: 70}
	PhaseEnhancement    = Phase{Name: "enhancement", Lower: 70, Upper: 100}
)

// Scale maps a (current, total) step counter into the band.
// A non-positive total yields the lower bound.
func (p Phase) Scale(current, total int) int {
	if total <= 0 {
		return p.Lower
	}
	current = clamp(current, 0, total)
	width := p.Upper - p.Lower
	return clamp(p.Lower+(current*width)/total, p.Lower, p.Upper)
}

// ProgressReporter publishes phase checkpoints and generation steps for one task.
// Steps are staged on every call and persisted only when the integer progress moves,
// which bounds writes to the width of the band.
type ProgressReporter struct {
	store  Store
	taskID string
	logger *slog.Logger

	mu        sync.Mutex
	last      int
	persisted bool
}

// NewProgressReporter creates a reporter for the task.
func NewProgressReporter(store Store, taskID string, logger *slog.Logger) *ProgressReporter {
	return &ProgressReporter{
		store:  store,
		taskID: taskID,
		logger: logger,
		last:   -1,
	}
}

// Checkpoint records a fixed progress value with a message, persisted immediately.
func (r *ProgressReporter) Checkpoint(ctx context.Context, progress int, message string) {
	r.mu.Lock()
	r.last = progress
	r.mu.Unlock()

	patch := Patch{}.WithMessage(message).WithProgress(progress)
	if err := r.store.Update(ctx, r.taskID, patch); err != nil {
		r.logger.Warn("failed to record progress checkpoint",
			"progress", progress,
			"error", err)
	}
}

// Enter records the lower bound of the phase as a checkpoint.
func (r *ProgressReporter) Enter(ctx context.Context, phase Phase, message string) {
	r.Checkpoint(ctx, phase.Lower, message)
}

// GenerationStep returns a callback for the generation collaborator. Each call
// moves the task to generating and scales (current, total) into the generation band.
func (r *ProgressReporter) GenerationStep(ctx context.Context) func(current, total int) {
	return func(current, total int) {
		progress := PhaseGeneration.Scale(current, total)
		patch := Patch{}.
			WithStatus(TaskStatusGenerating).
			WithMessage(fmt.Sprintf("Generating audio tokens... %d/%d frames", current, total)).
			WithProgress(progress)

		r.mu.Lock()
		changed := progress != r.last || !r.persisted
		r.last = progress
		r.persisted = true
		r.mu.Unlock()

		var err error
		if changed {
			err = r.store.Update(ctx, r.taskID, patch)
		} else {
			err = r.store.Stage(ctx, r.taskID, patch)
		}
		if err != nil {
			r.logger.Warn("failed to record generation progress",
				"current", current,
				"total", total,
				"error", err)
		}
	}
}
