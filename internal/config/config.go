package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Project  ProjectConfig  `mapstructure:"project" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// CORSOrigins lists the browser origins allowed to call the API
	CORSOrigins []string `mapstructure:"cors_origins" validate:"dive,url"`
}

// Task store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// StoreConfig selects and configures the task record backend.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=file postgres"`
	Path        string `mapstructure:"path" validate:"required_if=Backend file"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres,omitempty,url"`
}

// TaskConfig contains task execution settings.
type TaskConfig struct {
	// LongRunningAge is how long an active task may go without an update before
	// the monitor warns. Zero disables the monitor.
	LongRunningAge           time.Duration `mapstructure:"long_running_age" validate:"gte=0"`
	LongRunningCheckInterval time.Duration `mapstructure:"long_running_check_interval" validate:"gt=0"`
	LogFlushInterval         time.Duration `mapstructure:"log_flush_interval" validate:"gt=0"`
}

// Pipeline modes.
const (
	PipelineModeCommand  = "command"
	PipelineModeSimulate = "simulate"
)

// PipelineConfig selects the generation collaborators.
type PipelineConfig struct {
	Mode      string          `mapstructure:"mode" validate:"required,oneof=command simulate"`
	OutputDir string          `mapstructure:"output_dir" validate:"required"`
	Generator CommandConfig   `mapstructure:"generator"`
	Enhancer  CommandConfig   `mapstructure:"enhancer"`
	Releaser  CommandConfig   `mapstructure:"releaser"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Settings  SettingsConfig  `mapstructure:"settings"`
}

// CommandConfig describes an external program. Args may use the {input} and
// {output} placeholders.
type CommandConfig struct {
	Path string   `mapstructure:"path"`
	Args []string `mapstructure:"args"`
	Dir  string   `mapstructure:"dir"`
	Env  []string `mapstructure:"env"`
}

// SettingsConfig seeds the runtime pipeline settings. Everything except
// GPUName can be changed later through the API.
type SettingsConfig struct {
	Device         string  `mapstructure:"device"`
	UseGPU         bool    `mapstructure:"use_gpu"`
	UseCPUDecoding bool    `mapstructure:"use_cpu_decoding"`
	ModelID        string  `mapstructure:"model_id"`
	VRAMTarget     float64 `mapstructure:"vram_target" validate:"gte=0,lte=1"`
	GPUName        string  `mapstructure:"gpu_name"`
}

// SimulatorConfig tunes the simulated pipeline.
type SimulatorConfig struct {
	Frames    int           `mapstructure:"frames" validate:"gte=0"`
	StepDelay time.Duration `mapstructure:"step_delay" validate:"gte=0"`
	Seconds   int           `mapstructure:"seconds" validate:"gte=0"`
}

// ProjectConfig locates the saved project state and uploaded audio.
type ProjectConfig struct {
	StatePath      string `mapstructure:"state_path" validate:"required"`
	UploadDir      string `mapstructure:"upload_dir" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" validate:"gt=0"`
}
