package generation

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Settings are the hardware knobs handed to the model pipeline. They can be
// changed at runtime and apply to the next job that starts.
type Settings struct {
	Device         string  `json:"device"`
	UseGPU         bool    `json:"use_gpu"`
	UseCPUDecoding bool    `json:"use_cpu_decoding"`
	ModelID        string  `json:"model_id"`
	VRAMTarget     float64 `json:"vram_target" validate:"gte=0,lte=1"`
}

// SettingsUpdate changes only the fields that are set.
type SettingsUpdate struct {
	UseGPU         *bool    `json:"use_gpu"`
	UseCPUDecoding *bool    `json:"use_cpu_decoding"`
	VRAMTarget     *float64 `json:"vram_target" validate:"omitempty,gte=0,lte=1"`
}

// SettingsProvider exposes the current settings.
type SettingsProvider interface {
	Current() Settings
}

// SettingsStore holds the live settings.
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
	validate *validator.Validate
}

var _ SettingsProvider = (*SettingsStore)(nil)

// NewSettingsStore creates a store seeded with initial.
func NewSettingsStore(initial Settings) (*SettingsStore, error) {
	validate := validator.New()
	if err := validate.Struct(initial); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &SettingsStore{settings: initial, validate: validate}, nil
}

// Current returns a copy of the live settings.
func (s *SettingsStore) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies u and returns the resulting settings. An invalid update
// changes nothing.
func (s *SettingsStore) Update(u SettingsUpdate) (Settings, error) {
	if err := s.validate.Struct(u); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.UseGPU != nil {
		s.settings.UseGPU = *u.UseGPU
	}
	if u.UseCPUDecoding != nil {
		s.settings.UseCPUDecoding = *u.UseCPUDecoding
	}
	if u.VRAMTarget != nil {
		s.settings.VRAMTarget = *u.VRAMTarget
	}
	return s.settings, nil
}
