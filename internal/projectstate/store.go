package projectstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/events"
	"github.com/kunoai/kuno-engine/internal/platform/filestore"
)

// DefaultPath is where the project lives when no path is configured.
const DefaultPath = "current_project.json"

// DefaultTitle names the placeholder project returned before any submission.
const DefaultTitle = "New Project"

// ErrEmptyPath is returned when the store is created without a path.
var ErrEmptyPath = errors.New("project state path cannot be empty")

// Default returns the placeholder project.
func Default() domain.SongRequest {
	return domain.SongRequest{
		Title:     DefaultTitle,
		Structure: []domain.SongSection{},
	}
}

// Store persists the current project as one JSON file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a Store writing to path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "project_state", "path", path),
	}, nil
}

// Save overwrites the current project.
func (s *Store) Save(ctx context.Context, req domain.SongRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := filestore.WriteJSONAtomic(s.path, req); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	s.logger.Debug("project saved", "title", req.Title)
	return nil
}

// Load returns the current project. A missing, empty or unreadable file yields
// the placeholder project.
func (s *Store) Load(ctx context.Context) domain.SongRequest {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read project", "error", err)
		}
		return Default()
	}
	if len(data) == 0 {
		return Default()
	}

	var req domain.SongRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("failed to parse project", "error", err)
		return Default()
	}
	if req.Structure == nil {
		req.Structure = []domain.SongSection{}
	}
	return req
}

// HandleEvent saves the request carried by a submission event. Other event
// types are ignored.
func (s *Store) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeSubmissionAccepted {
		return nil
	}

	var req domain.SongRequest
	if err := event.UnmarshalPayload(&req); err != nil {
		return fmt.Errorf("decode submission for task %s: %w", event.TaskID, err)
	}
	return s.Save(ctx, req)
}

var _ events.EventHandler = (*Store)(nil)
