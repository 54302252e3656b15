package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kunoai/kuno-engine/internal/api/shared"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/service"
)

// ConfigUpdateResponse acknowledges a settings change.
type ConfigUpdateResponse struct {
	Status string              `json:"status"`
	Config generation.Settings `json:"config"`
}

// SystemHandler serves the host monitor and runtime settings endpoints.
type SystemHandler struct {
	service service.SystemService
	logger  *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(svc service.SystemService, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		service: svc,
		logger:  logger.With("component", "system_handler"),
	}
}

// Routes registers the system endpoints on r.
func (h *SystemHandler) Routes(r chi.Router) {
	r.Get("/stats", h.GetStats)
	r.Get("/config", h.GetConfig)
	r.Post("/config", h.UpdateConfig)
}

// GetStats handles GET /stats.
func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.service.Stats(r.Context()))
}

// GetConfig handles GET /config.
func (h *SystemHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.service.Settings(r.Context()))
}

// UpdateConfig handles POST /config. Only the fields present in the body
// change.
func (h *SystemHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update generation.SettingsUpdate
	if err := shared.DecodeJSON(r, &update); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&update); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), update)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ConfigUpdateResponse{
		Status: "updated",
		Config: settings,
	})
}

func (h *SystemHandler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
