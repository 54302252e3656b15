package task

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an authoritative in-memory map. Every
// persisting call hands a snapshot to the configured Backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	dirty   map[string]struct{}

	// persistMu serializes backend writes so the newest snapshot always lands last
	persistMu sync.Mutex
	backend   Backend

	logger *slog.Logger
	now    func() time.Time
}

// OpenMemoryStore creates a MemoryStore and loads whatever the backend holds.
// A missing or unreadable snapshot yields an empty store; it is never fatal.
// A nil backend keeps records in memory only.
func OpenMemoryStore(ctx context.Context, backend Backend, logger *slog.Logger) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		dirty:   make(map[string]struct{}),
		backend: backend,
		logger:  logger.With("component", "task_store"),
		now:     func() time.Time { return time.Now().UTC() },
	}

	if backend == nil {
		return s
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load task snapshot, starting empty", "error", err)
		return s
	}

	for id, rec := range loaded {
		rec := rec.Clone()
		rec.ID = id
		if len(rec.Logs) == 0 {
			rec.Logs = []string{""}
		}
		s.records[id] = &rec
	}
	s.logger.Info("task snapshot loaded", "task_count", len(s.records))

	return s
}

// Create inserts a queued record with an empty open log line.
func (s *MemoryStore) Create(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	if _, exists := s.records[id]; exists {
		s.mu.Unlock()
		return Record{}, newStoreError("create", id, ErrDuplicateID)
	}
	rec := NewRecord(id, s.now())
	s.records[id] = &rec
	s.dirty[id] = struct{}{}
	out := rec.Clone()
	s.mu.Unlock()

	s.persist(ctx, "create", id)
	return out, nil
}

// Get returns a copy of the record.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, newStoreError("get", id, ErrNotFound)
	}
	return rec.Clone(), nil
}

// List returns copies of all records ordered by creation time.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update merges the patch and persists the snapshot.
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) error {
	if err := s.apply(id, patch, "update"); err != nil {
		return err
	}
	s.persist(ctx, "update", id)
	return nil
}

// Stage merges the patch without persisting it.
func (s *MemoryStore) Stage(ctx context.Context, id string, patch Patch) error {
	return s.apply(id, patch, "stage")
}

// Flush persists the current state of the record.
func (s *MemoryStore) Flush(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return newStoreError("flush", id, ErrNotFound)
	}

	s.persist(ctx, "flush", id)
	return nil
}

func (s *MemoryStore) apply(id string, patch Patch, op string) error {
	if patch.Status != nil && !patch.Status.IsValid() {
		return newStoreError(op, id, ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return newStoreError(op, id, ErrNotFound)
	}
	if rec.Status.IsTerminal() {
		return newStoreError(op, id, ErrTaskFinalized)
	}

	patch.Apply(rec, s.now())
	s.dirty[id] = struct{}{}
	return nil
}

// persist hands the current snapshot to the backend. Failures are logged and
// the changed ids stay dirty so the next successful write recovers them.
func (s *MemoryStore) persist(ctx context.Context, op, id string) {
	if s.backend == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := Snapshot{
		Records: make(map[string]Record, len(s.records)),
		Changed: make([]string, 0, len(s.dirty)),
	}
	for rid, rec := range s.records {
		snapshot.Records[rid] = rec.Clone()
	}
	for rid := range s.dirty {
		snapshot.Changed = append(snapshot.Changed, rid)
	}
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	sort.Strings(snapshot.Changed)

	if err := s.backend.Persist(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist task snapshot",
			"operation", op,
			"task_id", id,
			"changed_count", len(snapshot.Changed),
			"error", err)

		s.mu.Lock()
		for _, rid := range snapshot.Changed {
			s.dirty[rid] = struct{}{}
		}
		s.mu.Unlock()
	}
}
