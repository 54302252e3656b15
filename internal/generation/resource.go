package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Resource is the handle on the single heavy pipeline instance. Only one lease
// may be held at a time; waiters are served in arrival order.
type Resource struct {
	sem      *semaphore.Weighted
	releaser Releaser
	logger   *slog.Logger
}

// NewResource creates a handle that unloads through releaser.
// A nil releaser makes release a no-op.
func NewResource(releaser Releaser, logger *slog.Logger) *Resource {
	if releaser == nil {
		releaser = ReleaserFunc(func(context.Context) error { return nil })
	}
	return &Resource{
		sem:      semaphore.NewWeighted(1),
		releaser: releaser,
		logger:   logger.With("component", "pipeline_resource"),
	}
}

// Acquire blocks until the pipeline is free or ctx is done.
func (r *Resource) Acquire(ctx context.Context) (*Lease, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire pipeline: %w", err)
	}
	return &Lease{resource: r}, nil
}

// Busy reports whether a job holds the pipeline or is waiting for it. It
// never unloads anything.
func (r *Resource) Busy() bool {
	if !r.sem.TryAcquire(1) {
		return true
	}
	r.sem.Release(1)
	return false
}

// Reset force-unloads the pipeline without touching lease ownership. It is the
// operator's escape hatch for a pipeline that leaked memory; a job still holding
// a lease keeps it.
func (r *Resource) Reset(ctx context.Context) error {
	if err := r.releaser.Release(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrReleaseFailed, err)
	}
	r.logger.Info("pipeline reset")
	return nil
}

// Lease is exclusive use of the pipeline for one job.
type Lease struct {
	resource *Resource
	once     sync.Once
}

// Release unloads the pipeline and frees the lease for the next job. Unload
// failures are logged only: the lease is freed regardless. Calling Release more
// than once is a no-op.
func (l *Lease) Release(ctx context.Context) {
	l.once.Do(func() {
		defer l.resource.sem.Release(1)
		if err := l.resource.releaser.Release(ctx); err != nil {
			l.resource.logger.Error("failed to release pipeline", "error", err)
			return
		}
		l.resource.logger.Debug("pipeline released")
	})
}
