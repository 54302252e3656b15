package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kunoai/kuno-engine/internal/task"
)

// DefaultPath is where the snapshot lives when no path is configured.
const DefaultPath = "tasks.json"

// ErrEmptyPath is returned when the backend is created without a path.
var ErrEmptyPath = errors.New("snapshot path cannot be empty")

// Backend implements task.Backend over one JSON file keyed by task id.
type Backend struct {
	path   string
	logger *slog.Logger
}

var _ task.Backend = (*Backend)(nil)

// NewBackend creates a file backend writing to path.
func NewBackend(path string, logger *slog.Logger) (*Backend, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &Backend{
		path:   path,
		logger: logger.With("component", "task_filestore", "path", path),
	}, nil
}

// Path returns the snapshot file location.
func (b *Backend) Path() string {
	return b.path
}

// Load reads the snapshot. A missing file is an empty store.
func (b *Backend) Load(ctx context.Context) (map[string]task.Record, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		b.logger.Debug("no task snapshot found")
		return map[string]task.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	records := map[string]task.Record{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return records, nil
}

// Persist rewrites the whole snapshot. Changed is ignored: the file is always
// a complete copy of the store.
func (b *Backend) Persist(ctx context.Context, snapshot task.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteJSONAtomic(b.path, snapshot.Records)
}

// WriteJSONAtomic writes v as indented JSON to path through a temp file and a
// rename, so readers see either the old or the new content.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
