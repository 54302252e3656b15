package api

import (
	"context"
	"io"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/service"
	"github.com/kunoai/kuno-engine/internal/task"
)

// mockGenerationService implements service.GenerationService for testing.
// Methods without a custom function return defaultErr.
type mockGenerationService struct {
	SubmitFn     func(ctx context.Context, req domain.SongRequest) (service.SubmitResult, error)
	GetStatusFn  func(ctx context.Context, taskID string) (task.Record, error)
	ProjectFn    func(ctx context.Context) domain.SongRequest
	LibraryFn    func(ctx context.Context) ([]service.LibraryEntry, error)
	AudioPathFn  func(ctx context.Context, filename string) (string, error)
	ResetFn      func(ctx context.Context) error
	SaveUploadFn func(ctx context.Context, filename string, content io.Reader) (service.UploadResult, error)

	defaultErr error
}

var _ service.GenerationService = (*mockGenerationService)(nil)

func (m *mockGenerationService) Submit(ctx context.Context, req domain.SongRequest) (service.SubmitResult, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, req)
	}
	return service.SubmitResult{}, m.defaultErr
}

func (m *mockGenerationService) GetStatus(ctx context.Context, taskID string) (task.Record, error) {
	if m.GetStatusFn != nil {
		return m.GetStatusFn(ctx, taskID)
	}
	return task.UnknownRecord(taskID), m.defaultErr
}

func (m *mockGenerationService) Project(ctx context.Context) domain.SongRequest {
	if m.ProjectFn != nil {
		return m.ProjectFn(ctx)
	}
	return domain.SongRequest{}
}

func (m *mockGenerationService) Library(ctx context.Context) ([]service.LibraryEntry, error) {
	if m.LibraryFn != nil {
		return m.LibraryFn(ctx)
	}
	return []service.LibraryEntry{}, m.defaultErr
}

func (m *mockGenerationService) AudioPath(ctx context.Context, filename string) (string, error) {
	if m.AudioPathFn != nil {
		return m.AudioPathFn(ctx, filename)
	}
	return "", m.defaultErr
}

func (m *mockGenerationService) Reset(ctx context.Context) error {
	if m.ResetFn != nil {
		return m.ResetFn(ctx)
	}
	return m.defaultErr
}

func (m *mockGenerationService) SaveUpload(
	ctx context.Context,
	filename string,
	content io.Reader,
) (service.UploadResult, error) {
	if m.SaveUploadFn != nil {
		return m.SaveUploadFn(ctx, filename, content)
	}
	return service.UploadResult{}, m.defaultErr
}

// mockSystemService implements service.SystemService for testing
type mockSystemService struct {
	StatsFn          func(ctx context.Context) service.SystemStats
	SettingsFn       func(ctx context.Context) generation.Settings
	UpdateSettingsFn func(ctx context.Context, u generation.SettingsUpdate) (generation.Settings, error)
}

var _ service.SystemService = (*mockSystemService)(nil)

func (m *mockSystemService) Stats(ctx context.Context) service.SystemStats {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return service.SystemStats{Status: service.PipelineStatusReady}
}

func (m *mockSystemService) Settings(ctx context.Context) generation.Settings {
	if m.SettingsFn != nil {
		return m.SettingsFn(ctx)
	}
	return generation.Settings{}
}

func (m *mockSystemService) UpdateSettings(
	ctx context.Context,
	u generation.SettingsUpdate,
) (generation.Settings, error) {
	if m.UpdateSettingsFn != nil {
		return m.UpdateSettingsFn(ctx, u)
	}
	return generation.Settings{}, nil
}
