package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. KUNO_SERVER_PORT.
const EnvPrefix = "KUNO"

// ErrConfigValidation is returned when the loaded configuration is invalid.
var ErrConfigValidation = errors.New("config validation failed")

// setDefaults registers a default for every key so that environment variables
// can override keys that no config file mentions.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:3001"})

	v.SetDefault("store.backend", StoreBackendFile)
	v.SetDefault("store.path", "tasks.json")
	v.SetDefault("store.database_url", "")

	v.SetDefault("task.long_running_age", 30*time.Minute)
	v.SetDefault("task.long_running_check_interval", 5*time.Minute)
	v.SetDefault("task.log_flush_interval", time.Second)

	v.SetDefault("pipeline.mode", PipelineModeSimulate)
	v.SetDefault("pipeline.output_dir", "generated_songs")
	for _, name := range []string{"generator", "enhancer", "releaser"} {
		v.SetDefault("pipeline."+name+".path", "")
		v.SetDefault("pipeline."+name+".args", []string{})
		v.SetDefault("pipeline."+name+".dir", "")
		v.SetDefault("pipeline."+name+".env", []string{})
	}
	v.SetDefault("pipeline.simulator.frames", 50)
	v.SetDefault("pipeline.simulator.step_delay", 20*time.Millisecond)
	v.SetDefault("pipeline.simulator.seconds", 0)
	v.SetDefault("pipeline.settings.device", "cuda")
	v.SetDefault("pipeline.settings.use_gpu", true)
	v.SetDefault("pipeline.settings.use_cpu_decoding", true)
	v.SetDefault("pipeline.settings.model_id", "HeartMuLa/HeartMuLa-RL-oss-3B")
	v.SetDefault("pipeline.settings.vram_target", 0.5)
	v.SetDefault("pipeline.settings.gpu_name", "")

	v.SetDefault("project.state_path", "current_project.json")
	v.SetDefault("project.upload_dir", "uploads")
	v.SetDefault("project.max_upload_bytes", 100<<20)
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// configFile may be empty, in which case ./config.yaml is used if present.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	if c.Pipeline.Mode == PipelineModeCommand {
		if c.Pipeline.Generator.Path == "" {
			return fmt.Errorf("%w: pipeline.generator.path is required in command mode", ErrConfigValidation)
		}
		if c.Pipeline.Enhancer.Path == "" {
			return fmt.Errorf("%w: pipeline.enhancer.path is required in command mode", ErrConfigValidation)
		}
	}
	return nil
}
