package task

import (
	"context"
	"sync"
)

// MockBackend implements Backend for testing. It keeps the last persisted
// snapshot in memory and lets tests inject failures.
type MockBackend struct {
	mutex     sync.Mutex
	records   map[string]Record
	snapshots []Snapshot
	LoadFn    func(ctx context.Context) (map[string]Record, error)
	PersistFn func(ctx context.Context, snapshot Snapshot) error
}

// NewMockBackend creates a new MockBackend with default implementations
func NewMockBackend() *MockBackend {
	b := &MockBackend{
		records: make(map[string]Record),
	}

	// Default behavior for Load
	b.LoadFn = func(ctx context.Context) (map[string]Record, error) {
		b.mutex.Lock()
		defer b.mutex.Unlock()

		out := make(map[string]Record, len(b.records))
		for id, rec := range b.records {
			out[id] = rec.Clone()
		}
		return out, nil
	}

	// Default behavior for Persist
	b.PersistFn = func(ctx context.Context, snapshot Snapshot) error {
		b.mutex.Lock()
		defer b.mutex.Unlock()

		b.records = make(map[string]Record, len(snapshot.Records))
		for id, rec := range snapshot.Records {
			b.records[id] = rec.Clone()
		}
		return nil
	}

	return b
}

// Load implements Backend
func (b *MockBackend) Load(ctx context.Context) (map[string]Record, error) {
	return b.LoadFn(ctx)
}

// Persist implements Backend
func (b *MockBackend) Persist(ctx context.Context, snapshot Snapshot) error {
	b.mutex.Lock()
	b.snapshots = append(b.snapshots, snapshot)
	b.mutex.Unlock()

	return b.PersistFn(ctx, snapshot)
}

// PersistCount returns how many times Persist was called.
func (b *MockBackend) PersistCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.snapshots)
}

// Snapshots returns every snapshot handed to Persist, in order.
func (b *MockBackend) Snapshots() []Snapshot {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]Snapshot(nil), b.snapshots...)
}

// Persisted returns the last successfully persisted copy of a record.
func (b *MockBackend) Persisted(id string) (Record, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	rec, ok := b.records[id]
	return rec.Clone(), ok
}
