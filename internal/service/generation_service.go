package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/events"
	"github.com/kunoai/kuno-engine/internal/task"
)

// SubmittedMessage is returned with every accepted submission.
const SubmittedMessage = "Started."

// DefaultUploadDir receives uploaded audio when no directory is configured.
const DefaultUploadDir = "uploads"

// TaskRunner starts background execution of a job
type TaskRunner interface {
	// Submit creates the task record and returns without waiting for the job
	Submit(ctx context.Context, job task.Job) (task.Record, error)
}

// TaskReader reads task records
type TaskReader interface {
	Get(ctx context.Context, id string) (task.Record, error)
}

// ProjectLoader returns the current project
type ProjectLoader interface {
	Load(ctx context.Context) domain.SongRequest
}

// PipelineResetter force-unloads the heavy pipeline
type PipelineResetter interface {
	Reset(ctx context.Context) error
}

// SubmitResult acknowledges an accepted submission.
type SubmitResult struct {
	TaskID  string          `json:"task_id"`
	Status  task.TaskStatus `json:"status"`
	Message string          `json:"message"`
}

// LibraryEntry describes one generated audio file.
type LibraryEntry struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// UploadResult describes a stored upload.
type UploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Path     string `json:"path"`
}

// GenerationService provides the generation use cases
type GenerationService interface {
	// Submit validates req, creates a queued task and starts it in the
	// background. It never waits for generation.
	//
	// Returns a *domain.ValidationError (wrapping domain.ErrValidation or
	// domain.ErrEmptyStructure) when the request is rejected; no task is
	// created in that case.
	Submit(ctx context.Context, req domain.SongRequest) (SubmitResult, error)

	// GetStatus returns the task record, or task.UnknownRecord for an id that
	// does not exist. It never mutates anything.
	GetStatus(ctx context.Context, taskID string) (task.Record, error)

	// Project returns the most recently submitted request
	Project(ctx context.Context) domain.SongRequest

	// Library lists the generated audio files
	Library(ctx context.Context) ([]LibraryEntry, error)

	// AudioPath resolves a library file name to its path on disk
	AudioPath(ctx context.Context, filename string) (string, error)

	// Reset force-unloads the pipeline. It is idempotent.
	Reset(ctx context.Context) error

	// SaveUpload stores a vocal reference file under a unique name. Only the
	// base name of filename is kept.
	SaveUpload(ctx context.Context, filename string, content io.Reader) (UploadResult, error)
}

// GenerationDeps holds the collaborators of the generation service.
type GenerationDeps struct {
	Runner    TaskRunner
	Tasks     TaskReader
	Emitter   events.EventEmitter
	Project   ProjectLoader
	Resetter  PipelineResetter
	OutputDir string

	// UploadDir receives uploaded audio. Empty means DefaultUploadDir.
	UploadDir string
}

type generationServiceImpl struct {
	runner    TaskRunner
	tasks     TaskReader
	emitter   events.EventEmitter
	project   ProjectLoader
	resetter  PipelineResetter
	outputDir string
	uploadDir string
	logger    *slog.Logger
	newID     func() string
}

// NewGenerationService creates a new GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(deps GenerationDeps, logger *slog.Logger) (GenerationService, error) {
	var missing string
	switch {
	case deps.Runner == nil:
		missing = "runner"
	case deps.Tasks == nil:
		missing = "tasks"
	case deps.Emitter == nil:
		missing = "emitter"
	case deps.Project == nil:
		missing = "project"
	case deps.Resetter == nil:
		missing = "resetter"
	}
	if missing != "" {
		return nil, &GenerationServiceError{
			Operation: "create_service",
			Message:   missing + " cannot be nil",
		}
	}
	if deps.OutputDir == "" {
		return nil, &GenerationServiceError{
			Operation: "create_service",
			Message:   "output directory cannot be empty",
		}
	}

	if deps.UploadDir == "" {
		deps.UploadDir = DefaultUploadDir
	}

	// Use provided logger or create default
	if logger == nil {
		logger = slog.Default()
	}

	return &generationServiceImpl{
		runner:    deps.Runner,
		tasks:     deps.Tasks,
		emitter:   deps.Emitter,
		project:   deps.Project,
		resetter:  deps.Resetter,
		outputDir: deps.OutputDir,
		uploadDir: deps.UploadDir,
		logger:    logger.With("component", "generation_service"),
		newID:     func() string { return uuid.NewString() },
	}, nil
}

// Submit implements GenerationService.
func (s *generationServiceImpl) Submit(
	ctx context.Context,
	req domain.SongRequest,
) (SubmitResult, error) {
	if err := req.Validate(); err != nil {
		s.logger.Debug("rejected song request", "error", err)
		return SubmitResult{}, err
	}
	req = req.WithDefaults()

	taskID := s.newID()
	rec, err := s.runner.Submit(ctx, task.Job{TaskID: taskID, Request: req})
	if err != nil {
		s.logger.Error("failed to submit generation task",
			"error", err,
			"task_id", taskID)
		return SubmitResult{}, NewGenerationServiceError("submit", "failed to start task", err)
	}

	s.logger.Info("generation task submitted",
		"task_id", taskID,
		"title", req.Title,
		"genre", req.Genre)

	s.emitSubmission(ctx, taskID, req)

	return SubmitResult{
		TaskID:  rec.ID,
		Status:  rec.Status,
		Message: SubmittedMessage,
	}, nil
}

// emitSubmission publishes the accepted request. Handlers run fire-and-forget:
// their failures are logged and never fail the submission.
func (s *generationServiceImpl) emitSubmission(ctx context.Context, taskID string, req domain.SongRequest) {
	event, err := events.NewEvent(events.TypeSubmissionAccepted, taskID, req)
	if err != nil {
		s.logger.Error("failed to create submission event",
			"error", err,
			"task_id", taskID)
		return
	}

	if err := s.emitter.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("submission event handler failed",
			"error", err,
			"task_id", taskID,
			"event_id", event.ID)
	}
}

// GetStatus implements GenerationService.
func (s *generationServiceImpl) GetStatus(ctx context.Context, taskID string) (task.Record, error) {
	rec, err := s.tasks.Get(ctx, taskID)
	if errors.Is(err, task.ErrNotFound) {
		return task.UnknownRecord(taskID), nil
	}
	if err != nil {
		s.logger.Error("failed to read task", "error", err, "task_id", taskID)
		return task.Record{}, NewGenerationServiceError("get_status", "failed to read task", err)
	}
	return rec, nil
}

// Project implements GenerationService.
func (s *generationServiceImpl) Project(ctx context.Context) domain.SongRequest {
	return s.project.Load(ctx)
}

// Library implements GenerationService. Both raw and mastered files are
// listed, ordered by name. A missing output directory is an empty library.
func (s *generationServiceImpl) Library(ctx context.Context) ([]LibraryEntry, error) {
	entries, err := os.ReadDir(s.outputDir)
	if errors.Is(err, os.ErrNotExist) {
		return []LibraryEntry{}, nil
	}
	if err != nil {
		return nil, NewGenerationServiceError("library", "failed to read output directory", err)
	}

	songs := make([]LibraryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		songs = append(songs, LibraryEntry{
			Filename: entry.Name(),
			Path:     filepath.Join(s.outputDir, entry.Name()),
			Size:     info.Size(),
		})
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].Filename < songs[j].Filename })
	return songs, nil
}

// AudioPath implements GenerationService.
func (s *generationServiceImpl) AudioPath(ctx context.Context, filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) || filepath.Base(filename) != filename {
		return "", ErrInvalidFilename
	}

	path := filepath.Join(s.outputDir, filename)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrFileNotFound
	}
	if err != nil {
		return "", NewGenerationServiceError("audio_path", "failed to stat file", err)
	}
	if info.IsDir() {
		return "", ErrFileNotFound
	}
	return path, nil
}

// Reset implements GenerationService.
func (s *generationServiceImpl) Reset(ctx context.Context) error {
	if err := s.resetter.Reset(ctx); err != nil {
		s.logger.Error("pipeline reset failed", "error", err)
		return NewGenerationServiceError("reset", "failed to release pipeline", err)
	}
	s.logger.Info("pipeline reset requested")
	return nil
}

// SaveUpload implements GenerationService.
func (s *generationServiceImpl) SaveUpload(
	ctx context.Context,
	filename string,
	content io.Reader,
) (UploadResult, error) {
	// Browsers on Windows may send a full client path
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return UploadResult{}, ErrInvalidFilename
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return UploadResult{}, NewGenerationServiceError("upload", "failed to create upload directory", err)
	}

	path := filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", s.newID(), base))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return UploadResult{}, NewGenerationServiceError("upload", "failed to create file", err)
	}

	written, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		s.logger.Warn("upload failed", "error", err, "filename", base)
		return UploadResult{}, NewGenerationServiceError("upload", "failed to store file", err)
	}

	s.logger.Info("audio uploaded", "filename", base, "path", path, "bytes", written)
	return UploadResult{Filename: base, Status: "uploaded", Path: path}, nil
}
