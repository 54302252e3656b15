package service

import (
	"context"
	"testing"
	"time"

	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/platform/sysstats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStatsCollector mocks the StatsCollector interface
type MockStatsCollector struct {
	mock.Mock
}

func (m *MockStatsCollector) Collect(ctx context.Context) sysstats.Snapshot {
	args := m.Called(ctx)
	return args.Get(0).(sysstats.Snapshot)
}

// MockPipelineMonitor mocks the PipelineMonitor interface
type MockPipelineMonitor struct {
	mock.Mock
}

func (m *MockPipelineMonitor) Busy() bool {
	return m.Called().Bool(0)
}

func newTestSystemService(t *testing.T) (SystemService, *MockStatsCollector, *MockPipelineMonitor, *generation.SettingsStore) {
	t.Helper()

	settings, err := generation.NewSettingsStore(generation.Settings{
		Device:     "cuda",
		UseGPU:     true,
		ModelID:    "HeartMuLa/HeartMuLa-RL-oss-3B",
		VRAMTarget: 0.5,
	})
	require.NoError(t, err)

	collector := &MockStatsCollector{}
	monitor := &MockPipelineMonitor{}
	svc, err := NewSystemService(SystemDeps{
		Collector: collector,
		Pipeline:  monitor,
		Settings:  settings,
		GPUName:   "AMD Radeon RX 6600 XT",
	}, discardLogger())
	require.NoError(t, err)
	return svc, collector, monitor, settings
}

func TestNewSystemService_Validation(t *testing.T) {
	t.Parallel()

	settings, err := generation.NewSettingsStore(generation.Settings{})
	require.NoError(t, err)
	full := SystemDeps{
		Collector: &MockStatsCollector{},
		Pipeline:  &MockPipelineMonitor{},
		Settings:  settings,
	}

	tests := []struct {
		name    string
		mutate  func(d *SystemDeps)
		wantMsg string
	}{
		{"nil collector", func(d *SystemDeps) { d.Collector = nil }, "collector cannot be nil"},
		{"nil pipeline", func(d *SystemDeps) { d.Pipeline = nil }, "pipeline cannot be nil"},
		{"nil settings", func(d *SystemDeps) { d.Settings = nil }, "settings cannot be nil"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := full
			tc.mutate(&deps)

			_, err := NewSystemService(deps, nil)
			var svcErr *GenerationServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tc.wantMsg, svcErr.Message)
		})
	}
}

func TestSystemService_Stats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		busy       bool
		wantStatus string
	}{
		{"idle pipeline", false, PipelineStatusReady},
		{"job running", true, PipelineStatusBusy},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, collector, monitor, _ := newTestSystemService(t)
			collector.On("Collect", mock.Anything).Return(sysstats.Snapshot{
				CPUPercent:  42.5,
				RAMPercent:  61,
				CollectedAt: time.Now(),
			})
			monitor.On("Busy").Return(tc.busy)

			stats := svc.Stats(context.Background())

			assert.Equal(t, SystemStats{
				CPU:     42.5,
				RAM:     61,
				GPUName: "AMD Radeon RX 6600 XT",
				Status:  tc.wantStatus,
			}, stats)
			collector.AssertExpectations(t)
			monitor.AssertExpectations(t)
		})
	}
}

func TestSystemService_Settings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _, settings := newTestSystemService(t)

	assert.Equal(t, settings.Current(), svc.Settings(ctx))

	useGPU := false
	updated, err := svc.UpdateSettings(ctx, generation.SettingsUpdate{UseGPU: &useGPU})
	require.NoError(t, err)
	assert.False(t, updated.UseGPU)
	assert.Equal(t, "cuda", updated.Device)
	assert.Equal(t, updated, svc.Settings(ctx))

	tooHigh := 2.0
	_, err = svc.UpdateSettings(ctx, generation.SettingsUpdate{VRAMTarget: &tooHigh})
	assert.ErrorIs(t, err, generation.ErrInvalidSettings)
	assert.Equal(t, 0.5, svc.Settings(ctx).VRAMTarget)
}
