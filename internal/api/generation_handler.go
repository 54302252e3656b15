package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kunoai/kuno-engine/internal/api/shared"
	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/platform/logger"
	"github.com/kunoai/kuno-engine/internal/service"
	"github.com/kunoai/kuno-engine/internal/task"
)

// DefaultMaxUploadBytes bounds an audio upload when no limit is configured.
const DefaultMaxUploadBytes = 100 << 20

// uploadMemoryBytes is how much of a multipart upload is buffered in memory
// before spilling to a temporary file.
const uploadMemoryBytes = 8 << 20

// ResetResponse acknowledges a pipeline reset.
type ResetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UnknownTaskResponse is the status body for an id that does not exist.
type UnknownTaskResponse struct {
	Status   task.TaskStatus `json:"status"`
	Message  string          `json:"message"`
	Progress int             `json:"progress"`
	Logs     []string        `json:"logs"`
}

// GenerationHandler serves the generation endpoints.
type GenerationHandler struct {
	service        service.GenerationService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler. A non-positive
// maxUploadBytes means DefaultMaxUploadBytes.
func NewGenerationHandler(
	svc service.GenerationService,
	maxUploadBytes int64,
	logger *slog.Logger,
) *GenerationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &GenerationHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "generation_handler"),
	}
}

// Routes registers the generation endpoints on r.
func (h *GenerationHandler) Routes(r chi.Router) {
	r.Post("/generate", h.Generate)
	r.Get("/status/{task_id}", h.GetStatus)
	r.Get("/project", h.GetProject)
	r.Get("/library", h.GetLibrary)
	r.Get("/audio/{filename}", h.GetAudio)
	r.Post("/reset", h.Reset)
	r.Post("/upload_audio", h.UploadAudio)
}

// Generate handles POST /generate. The task is started in the background and
// the response returns immediately with 202 Accepted.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req domain.SongRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.logger.Debug("generation request accepted", "task_id", result.TaskID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// GetStatus handles GET /status/{task_id}. Unknown ids are answered with an
// unknown record, never with 404.
func (h *GenerationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	rec, err := h.service.GetStatus(r.Context(), taskID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	if rec.Status == task.TaskStatusUnknown {
		shared.RespondWithJSON(w, r, http.StatusOK, UnknownTaskResponse{
			Status:   rec.Status,
			Message:  rec.Message,
			Progress: rec.Progress,
			Logs:     rec.Logs,
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, rec)
}

// GetProject handles GET /project.
func (h *GenerationHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.service.Project(r.Context()))
}

// GetLibrary handles GET /library.
func (h *GenerationHandler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	songs, err := h.service.Library(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, songs)
}

// GetAudio handles GET /audio/{filename}.
func (h *GenerationHandler) GetAudio(w http.ResponseWriter, r *http.Request) {
	path, err := h.service.AudioPath(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// Reset handles POST /reset.
func (h *GenerationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("pipeline reset via API")
	shared.RespondWithJSON(w, r, http.StatusOK, ResetResponse{
		Status:  "ok",
		Message: "Pipeline released.",
	})
}

// UploadAudio handles POST /upload_audio. The multipart field "file" holds the
// audio; bodies over the configured limit get 413.
func (h *GenerationHandler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		h.respondWithError(w, r, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, h.maxUploadBytes))
		return
	}
	// Chunked bodies carry no length up front
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(uploadMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, maxErr.Limit)
		} else {
			err = fmt.Errorf("%w: %v", shared.ErrInvalidRequestBody, err)
		}
		h.respondWithError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondWithError(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidRequestBody, err))
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.service.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

func (h *GenerationHandler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
