package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
)

// Simulated audio format: 16-bit mono PCM.
const (
	simSampleRate    = 8000
	simBitsPerSample = 16
	simChannels      = 1
)

// SimulatorConfig holds the knobs of the simulated pipeline.
type SimulatorConfig struct {
	// Frames is the number of generation steps reported.
	Frames int

	// StepDelay is slept between steps.
	StepDelay time.Duration

	// Seconds of silence written per file. Zero uses the request's duration target.
	Seconds int
}

// Simulator stands in for the model pipeline and the mastering chain. It draws
// a tqdm-style progress bar and writes silent WAV files.
type Simulator struct {
	config SimulatorConfig
	logger *slog.Logger
}

var (
	_ generation.Generator = (*Simulator)(nil)
	_ generation.Enhancer  = (*Simulator)(nil)
	_ generation.Releaser  = (*Simulator)(nil)
)

// NewSimulator creates a Simulator.
func NewSimulator(config SimulatorConfig, logger *slog.Logger) *Simulator {
	if config.Frames <= 0 {
		config.Frames = 50
	}
	return &Simulator{
		config: config,
		logger: logger.With("component", "pipeline_simulator"),
	}
}

// Generate implements generation.Generator.
func (s *Simulator) Generate(
	ctx context.Context,
	req domain.SongRequest,
	outputPath string,
	out io.Writer,
	progress generation.ProgressFunc,
) (string, error) {
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintf(out, "Loading simulated pipeline for %q (%s, %d bpm)\n", req.Title, req.Genre, req.Tempo)

	total := s.config.Frames
	for i := 0; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(out, "\r%s", progressBar(i, total))
		if progress != nil {
			progress(i, total)
		}
		if s.config.StepDelay > 0 && i < total {
			time.Sleep(s.config.StepDelay)
		}
	}
	fmt.Fprintln(out)

	seconds := s.config.Seconds
	if seconds <= 0 {
		seconds = req.DurationTarget
	}
	if err := writeSilence(outputPath, seconds); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Enhance implements generation.Enhancer. It copies the raw file.
func (s *Simulator) Enhance(ctx context.Context, inputPath, outputPath string, out io.Writer) (string, error) {
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintln(out, "Mastering (simulated)...")
	src, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("open raw audio: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create mastered audio: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close mastered audio: %w", err)
	}

	fmt.Fprintf(out, "Mastered audio written to %s\n", filepath.Base(outputPath))
	return outputPath, nil
}

// Release implements generation.Releaser.
func (s *Simulator) Release(ctx context.Context) error {
	s.logger.Debug("simulated pipeline released")
	return nil
}

func progressBar(current, total int) string {
	const width = 20
	filled := 0
	pct := 0
	if total > 0 {
		filled = current * width / total
		pct = current * 100 / total
	}
	return fmt.Sprintf("%3d%%|%s%s| %d/%d",
		pct,
		strings.Repeat("#", filled),
		strings.Repeat(" ", width-filled),
		current,
		total)
}

// writeSilence writes a PCM WAV file of the given length.
func writeSilence(path string, seconds int) error {
	if seconds < 0 {
		seconds = 0
	}
	blockAlign := simChannels * simBitsPerSample / 8
	dataSize := uint32(seconds * simSampleRate * blockAlign)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(simChannels),
		uint32(simSampleRate),
		uint32(simSampleRate * blockAlign),
		uint16(blockAlign),
		uint16(simBitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, field := range header {
		if err := binary.Write(f, binary.LittleEndian, field); err != nil {
			_ = f.Close()
			return fmt.Errorf("write wav header: %w", err)
		}
	}
	if _, err := f.Write(make([]byte, dataSize)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write samples: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audio file: %w", err)
	}
	return nil
}
