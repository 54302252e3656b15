package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
)

// Placeholders expanded in command arguments.
const (
	placeholderInput  = "{input}"
	placeholderOutput = "{output}"
)

// ErrOutputMissing is returned when a command exits cleanly without writing
// its output file.
var ErrOutputMissing = errors.New("command did not produce an output file")

// Command describes an external program.
type Command struct {
	// Path is the executable to run.
	Path string `mapstructure:"path"`

	// Args may contain {input} and {output} placeholders.
	Args []string `mapstructure:"args"`

	// Dir is the working directory. Empty means the current directory.
	Dir string `mapstructure:"dir"`

	// Env entries are appended to the process environment.
	Env []string `mapstructure:"env"`
}

// IsZero reports whether no program is configured.
func (c Command) IsZero() bool {
	return c.Path == ""
}

func (c Command) build(ctx context.Context, input, output string) *exec.Cmd {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		arg = strings.ReplaceAll(arg, placeholderInput, input)
		args[i] = strings.ReplaceAll(arg, placeholderOutput, output)
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	if input != "" {
		cmd.Env = append(cmd.Env, "KUNO_INPUT_PATH="+input)
	}
	if output != "" {
		cmd.Env = append(cmd.Env, "KUNO_OUTPUT_PATH="+output)
	}
	return cmd
}

// generateInput is the JSON document a generator command reads on stdin.
type generateInput struct {
	Request    domain.SongRequest   `json:"request"`
	OutputPath string               `json:"output_path"`
	Settings   *generation.Settings `json:"settings,omitempty"`
}

// CommandGenerator runs the model pipeline as an external program.
type CommandGenerator struct {
	command  Command
	settings generation.SettingsProvider
	logger   *slog.Logger
}

var _ generation.Generator = (*CommandGenerator)(nil)

// NewCommandGenerator creates a CommandGenerator.
func NewCommandGenerator(command Command, logger *slog.Logger) (*CommandGenerator, error) {
	if command.IsZero() {
		return nil, fmt.Errorf("%w: generator command path is required", generation.ErrInvalidConfig)
	}
	return &CommandGenerator{
		command: command,
		logger:  logger.With("component", "command_generator"),
	}, nil
}

// UseSettings makes every later run pass the provider's current settings to
// the program.
func (g *CommandGenerator) UseSettings(provider generation.SettingsProvider) {
	g.settings = provider
}

// Generate implements generation.Generator. The request is written to the
// program's stdin as JSON; stdout and stderr both stream to out.
func (g *CommandGenerator) Generate(
	ctx context.Context,
	req domain.SongRequest,
	outputPath string,
	out io.Writer,
	progress generation.ProgressFunc,
) (string, error) {
	input := generateInput{Request: req, OutputPath: outputPath}
	if g.settings != nil {
		current := g.settings.Current()
		input.Settings = &current
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	cmd := g.command.build(ctx, "", outputPath)
	cmd.Stdin = bytes.NewReader(payload)
	w := newProgressWriter(out, progress)
	cmd.Stdout = w
	cmd.Stderr = w

	g.logger.Debug("running generator", "path", g.command.Path, "output", outputPath)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("generator command: %w", err)
	}

	return checkOutput(outputPath)
}

// CommandEnhancer runs the mastering chain as an external program.
type CommandEnhancer struct {
	command Command
	logger  *slog.Logger
}

var _ generation.Enhancer = (*CommandEnhancer)(nil)

// NewCommandEnhancer creates a CommandEnhancer.
func NewCommandEnhancer(command Command, logger *slog.Logger) (*CommandEnhancer, error) {
	if command.IsZero() {
		return nil, fmt.Errorf("%w: enhancer command path is required", generation.ErrInvalidConfig)
	}
	return &CommandEnhancer{
		command: command,
		logger:  logger.With("component", "command_enhancer"),
	}, nil
}

// Enhance implements generation.Enhancer.
func (e *CommandEnhancer) Enhance(ctx context.Context, inputPath, outputPath string, out io.Writer) (string, error) {
	cmd := e.command.build(ctx, inputPath, outputPath)
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	e.logger.Debug("running enhancer", "path", e.command.Path, "input", inputPath)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("enhancer command: %w", err)
	}

	return checkOutput(outputPath)
}

// CommandReleaser runs an unload hook. With no program configured it does
// nothing, which keeps Release idempotent by construction.
type CommandReleaser struct {
	command Command
	logger  *slog.Logger
}

var _ generation.Releaser = (*CommandReleaser)(nil)

// NewCommandReleaser creates a CommandReleaser.
func NewCommandReleaser(command Command, logger *slog.Logger) *CommandReleaser {
	return &CommandReleaser{
		command: command,
		logger:  logger.With("component", "command_releaser"),
	}
}

// Release implements generation.Releaser.
func (r *CommandReleaser) Release(ctx context.Context) error {
	if r.command.IsZero() {
		return nil
	}

	output, err := r.command.build(ctx, "", "").CombinedOutput()
	if err != nil {
		return fmt.Errorf("release command: %w: %s", err, strings.TrimSpace(string(output)))
	}
	r.logger.Debug("release hook finished")
	return nil
}

func checkOutput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrOutputMissing, path)
	}
	return path, nil
}
