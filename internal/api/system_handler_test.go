package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSystemTestRouter(svc service.SystemService) http.Handler {
	h := NewSystemHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func TestSystemHandler_GetStats(t *testing.T) {
	t.Parallel()

	svc := &mockSystemService{
		StatsFn: func(ctx context.Context) service.SystemStats {
			return service.SystemStats{CPU: 12.5, RAM: 40, GPUName: "RX 6600 XT", Status: service.PipelineStatusBusy}
		},
	}

	w := doRequest(t, newSystemTestRouter(svc), http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, 12.5, body["cpu"])
	assert.Equal(t, float64(40), body["ram"])
	assert.Equal(t, float64(0), body["gpu"])
	assert.Equal(t, float64(0), body["vram"])
	assert.Equal(t, "RX 6600 XT", body["gpu_name"])
	assert.Equal(t, "busy", body["status"])
}

func TestSystemHandler_GetConfig(t *testing.T) {
	t.Parallel()

	svc := &mockSystemService{
		SettingsFn: func(ctx context.Context) generation.Settings {
			return generation.Settings{Device: "cuda", UseGPU: true, ModelID: "m", VRAMTarget: 0.5}
		},
	}

	w := doRequest(t, newSystemTestRouter(svc), http.MethodGet, "/api/v1/config", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, "cuda", body["device"])
	assert.Equal(t, true, body["use_gpu"])
	assert.Equal(t, false, body["use_cpu_decoding"])
	assert.Equal(t, "m", body["model_id"])
	assert.Equal(t, 0.5, body["vram_target"])
}

func TestSystemHandler_UpdateConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial update", func(t *testing.T) {
		var got generation.SettingsUpdate
		svc := &mockSystemService{
			UpdateSettingsFn: func(ctx context.Context, u generation.SettingsUpdate) (generation.Settings, error) {
				got = u
				return generation.Settings{Device: "cuda", UseGPU: false, VRAMTarget: 0.5}, nil
			},
		}

		w := doRequest(t, newSystemTestRouter(svc), http.MethodPost, "/api/v1/config", `{"use_gpu": false}`)
		assert.Equal(t, http.StatusOK, w.Code)

		require.NotNil(t, got.UseGPU)
		assert.False(t, *got.UseGPU)
		assert.Nil(t, got.UseCPUDecoding)
		assert.Nil(t, got.VRAMTarget)

		resp := decodeBody[ConfigUpdateResponse](t, w)
		assert.Equal(t, "updated", resp.Status)
		assert.Equal(t, "cuda", resp.Config.Device)
	})

	t.Run("out of range value", func(t *testing.T) {
		called := false
		svc := &mockSystemService{
			UpdateSettingsFn: func(ctx context.Context, u generation.SettingsUpdate) (generation.Settings, error) {
				called = true
				return generation.Settings{}, nil
			},
		}

		w := doRequest(t, newSystemTestRouter(svc), http.MethodPost, "/api/v1/config", `{"vram_target": 1.5}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, called)
		assert.Contains(t, w.Body.String(), "Invalid VRAMTarget")
	})

	t.Run("rejected by the service", func(t *testing.T) {
		svc := &mockSystemService{
			UpdateSettingsFn: func(ctx context.Context, u generation.SettingsUpdate) (generation.Settings, error) {
				return generation.Settings{}, fmt.Errorf("%w: vram", generation.ErrInvalidSettings)
			},
		}

		w := doRequest(t, newSystemTestRouter(svc), http.MethodPost, "/api/v1/config", `{"vram_target": 0.9}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid settings")
	})

	t.Run("malformed body", func(t *testing.T) {
		w := doRequest(t, newSystemTestRouter(&mockSystemService{}), http.MethodPost, "/api/v1/config", `{"use_gpu":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
