package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSong() domain.SongRequest {
	return domain.SongRequest{
		Title:          "Night Drive",
		Tempo:          120,
		Genre:          "synthwave",
		DurationTarget: 1,
		Structure:      []domain.SongSection{{Type: "intro", Bars: 4}},
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

type stepRecorder struct {
	mu    sync.Mutex
	steps [][2]int
}

func (r *stepRecorder) record(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, [2]int{current, total})
}

func TestProgressWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []string
		want   [][2]int
	}{
		{
			name:   "tqdm redraws",
			chunks: []string{" 0%|     | 0/10 [00:00]\r", "50%|##   | 5/10 [00:01]\r", "100%|#####| 10/10\n"},
			want:   [][2]int{{0, 10}, {5, 10}, {10, 10}},
		},
		{
			name:   "counter split across writes",
			chunks: []string{"frames 12", "/40\r"},
			want:   [][2]int{{12, 40}},
		},
		{
			name:   "last counter on a line wins",
			chunks: []string{"step 1/2 frames 30/60\n"},
			want:   [][2]int{{30, 60}},
		},
		{
			name:   "plain lines report nothing",
			chunks: []string{"loading weights\n", "done\n"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			rec := &stepRecorder{}
			w := newProgressWriter(&out, rec.record)

			var raw string
			for _, chunk := range tc.chunks {
				n, err := w.Write([]byte(chunk))
				require.NoError(t, err)
				assert.Equal(t, len(chunk), n)
				raw += chunk
			}

			assert.Equal(t, raw, out.String())
			assert.Equal(t, tc.want, rec.steps)
		})
	}
}

func TestNewCommandAdapters_RequirePath(t *testing.T) {
	t.Parallel()

	_, err := NewCommandGenerator(Command{}, testLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewCommandEnhancer(Command{}, testLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestCommandGenerator_Generate(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	output := filepath.Join(dir, "raw.wav")
	captured := filepath.Join(dir, "stdin.json")

	gen, err := NewCommandGenerator(Command{
		Path: "sh",
		Args: []string{"-c", `cat > "$1"; printf '1/4\r2/4\r4/4\n'; echo warn >&2; printf RIFF > "$KUNO_OUTPUT_PATH"`, "sh", captured},
	}, testLogger())
	require.NoError(t, err)

	var out bytes.Buffer
	rec := &stepRecorder{}
	got, err := gen.Generate(context.Background(), testSong(), output, &out, rec.record)
	require.NoError(t, err)

	assert.Equal(t, output, got)
	assert.Contains(t, out.String(), "4/4")
	assert.Contains(t, out.String(), "warn")
	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {4, 4}}, rec.steps)

	stdin, err := os.ReadFile(captured)
	require.NoError(t, err)
	assert.Contains(t, string(stdin), `"title":"Night Drive"`)
	assert.Contains(t, string(stdin), `"output_path":"`+output+`"`)
	assert.NotContains(t, string(stdin), `"settings"`)
}

func TestCommandGenerator_PassesSettings(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	captured := filepath.Join(dir, "stdin.json")
	gen, err := NewCommandGenerator(Command{
		Path: "sh",
		Args: []string{"-c", `cat > "$1"; printf RIFF > "$KUNO_OUTPUT_PATH"`, "sh", captured},
	}, testLogger())
	require.NoError(t, err)

	settings, err := generation.NewSettingsStore(generation.Settings{Device: "cuda", UseGPU: true, VRAMTarget: 0.5})
	require.NoError(t, err)
	gen.UseSettings(settings)

	// Changes apply to the next run
	useGPU := false
	_, err = settings.Update(generation.SettingsUpdate{UseGPU: &useGPU})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), testSong(), filepath.Join(dir, "raw.wav"), nil, nil)
	require.NoError(t, err)

	stdin, err := os.ReadFile(captured)
	require.NoError(t, err)
	assert.Contains(t, string(stdin), `"settings":{"device":"cuda","use_gpu":false,"use_cpu_decoding":false,"model_id":"","vram_target":0.5}`)
}

func TestCommandGenerator_Failures(t *testing.T) {
	t.Parallel()
	requireShell(t)

	t.Run("non-zero exit", func(t *testing.T) {
		gen, err := NewCommandGenerator(Command{Path: "sh", Args: []string{"-c", "echo boom; exit 3"}}, testLogger())
		require.NoError(t, err)

		var out bytes.Buffer
		_, err = gen.Generate(context.Background(), testSong(), filepath.Join(t.TempDir(), "x.wav"), &out, nil)
		require.Error(t, err)
		var exitErr *exec.ExitError
		assert.True(t, errors.As(err, &exitErr))
		assert.Contains(t, out.String(), "boom")
	})

	t.Run("missing output", func(t *testing.T) {
		gen, err := NewCommandGenerator(Command{Path: "sh", Args: []string{"-c", "cat > /dev/null"}}, testLogger())
		require.NoError(t, err)

		_, err = gen.Generate(context.Background(), testSong(), filepath.Join(t.TempDir(), "x.wav"), nil, nil)
		assert.ErrorIs(t, err, ErrOutputMissing)
	})
}

func TestCommandEnhancer_Enhance(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "raw.wav")
	output := filepath.Join(dir, "final.wav")
	require.NoError(t, os.WriteFile(input, []byte("RIFF"), 0o644))

	enh, err := NewCommandEnhancer(Command{
		Path: "sh",
		Args: []string{"-c", `cp "$1" "$2" && echo mastered`, "sh", "{input}", "{output}"},
	}, testLogger())
	require.NoError(t, err)

	var out bytes.Buffer
	got, err := enh.Enhance(context.Background(), input, output, &out)
	require.NoError(t, err)
	assert.Equal(t, output, got)
	assert.Equal(t, "mastered\n", out.String())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestCommandReleaser_Release(t *testing.T) {
	t.Parallel()

	t.Run("no command is a no-op", func(t *testing.T) {
		r := NewCommandReleaser(Command{}, testLogger())
		assert.NoError(t, r.Release(context.Background()))
		assert.NoError(t, r.Release(context.Background()))
	})

	t.Run("failing hook", func(t *testing.T) {
		requireShell(t)
		r := NewCommandReleaser(Command{Path: "sh", Args: []string{"-c", "echo busy >&2; exit 1"}}, testLogger())
		err := r.Release(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "busy")
	})
}

func TestSimulator(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sim := NewSimulator(SimulatorConfig{Frames: 4}, testLogger())

	var out bytes.Buffer
	rec := &stepRecorder{}
	raw, err := sim.Generate(context.Background(), testSong(), filepath.Join(dir, "raw.wav"), &out, rec.record)
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{0, 4}, {1, 4}, {2, 4}, {3, 4}, {4, 4}}, rec.steps)
	assert.Contains(t, out.String(), "100%|####################| 4/4")

	info, err := os.Stat(raw)
	require.NoError(t, err)
	// 44 byte header plus one second of 16-bit mono at 8kHz
	assert.Equal(t, int64(44+simSampleRate*2), info.Size())

	final, err := sim.Enhance(context.Background(), raw, filepath.Join(dir, "final.wav"), &out)
	require.NoError(t, err)

	rawData, err := os.ReadFile(raw)
	require.NoError(t, err)
	finalData, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, rawData, finalData)
	assert.Equal(t, "RIFF", string(finalData[:4]))

	assert.NoError(t, sim.Release(context.Background()))
}

func TestSimulator_HonorsContext(t *testing.T) {
	t.Parallel()

	sim := NewSimulator(SimulatorConfig{Frames: 4}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Generate(ctx, testSong(), filepath.Join(t.TempDir(), "raw.wav"), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
