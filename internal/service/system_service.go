package service

import (
	"context"
	"log/slog"

	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/platform/sysstats"
)

// Pipeline states reported by the system monitor.
const (
	PipelineStatusReady = "ready"
	PipelineStatusBusy  = "busy"
)

// StatsCollector samples host utilization
type StatsCollector interface {
	Collect(ctx context.Context) sysstats.Snapshot
}

// PipelineMonitor reports whether the pipeline is in use
type PipelineMonitor interface {
	Busy() bool
}

// SettingsManager reads and changes the runtime pipeline settings
type SettingsManager interface {
	Current() generation.Settings
	Update(u generation.SettingsUpdate) (generation.Settings, error)
}

// SystemStats is the system monitor view. GPU figures are not sampled and
// stay 0; GPUName comes from configuration.
type SystemStats struct {
	CPU     float64 `json:"cpu"`
	RAM     float64 `json:"ram"`
	GPU     float64 `json:"gpu"`
	VRAM    float64 `json:"vram"`
	GPUName string  `json:"gpu_name"`
	Status  string  `json:"status"`
}

// SystemService provides host monitoring and runtime settings
type SystemService interface {
	// Stats samples host utilization and the pipeline state. It never fails;
	// metrics that cannot be read are 0.
	Stats(ctx context.Context) SystemStats

	// Settings returns the live pipeline settings
	Settings(ctx context.Context) generation.Settings

	// UpdateSettings applies a partial update. Returns an error wrapping
	// generation.ErrInvalidSettings when the update is rejected.
	UpdateSettings(ctx context.Context, u generation.SettingsUpdate) (generation.Settings, error)
}

// SystemDeps holds the collaborators of the system service.
type SystemDeps struct {
	Collector StatsCollector
	Pipeline  PipelineMonitor
	Settings  SettingsManager
	GPUName   string
}

type systemServiceImpl struct {
	collector StatsCollector
	pipeline  PipelineMonitor
	settings  SettingsManager
	gpuName   string
	logger    *slog.Logger
}

// NewSystemService creates a new SystemService.
func NewSystemService(deps SystemDeps, logger *slog.Logger) (SystemService, error) {
	var missing string
	switch {
	case deps.Collector == nil:
		missing = "collector"
	case deps.Pipeline == nil:
		missing = "pipeline"
	case deps.Settings == nil:
		missing = "settings"
	}
	if missing != "" {
		return nil, &GenerationServiceError{
			Operation: "create_system_service",
			Message:   missing + " cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &systemServiceImpl{
		collector: deps.Collector,
		pipeline:  deps.Pipeline,
		settings:  deps.Settings,
		gpuName:   deps.GPUName,
		logger:    logger.With("component", "system_service"),
	}, nil
}

// Stats implements SystemService.
func (s *systemServiceImpl) Stats(ctx context.Context) SystemStats {
	snap := s.collector.Collect(ctx)

	status := PipelineStatusReady
	if s.pipeline.Busy() {
		status = PipelineStatusBusy
	}

	return SystemStats{
		CPU:     snap.CPUPercent,
		RAM:     snap.RAMPercent,
		GPUName: s.gpuName,
		Status:  status,
	}
}

// Settings implements SystemService.
func (s *systemServiceImpl) Settings(ctx context.Context) generation.Settings {
	return s.settings.Current()
}

// UpdateSettings implements SystemService.
func (s *systemServiceImpl) UpdateSettings(
	ctx context.Context,
	u generation.SettingsUpdate,
) (generation.Settings, error) {
	updated, err := s.settings.Update(u)
	if err != nil {
		s.logger.Debug("rejected settings update", "error", err)
		return generation.Settings{}, err
	}

	s.logger.Info("pipeline settings updated",
		"use_gpu", updated.UseGPU,
		"use_cpu_decoding", updated.UseCPUDecoding,
		"vram_target", updated.VRAMTarget)
	return updated, nil
}
