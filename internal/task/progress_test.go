package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_Scale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		phase   Phase
		current int
		total   int
		want    int
	}{
		{"generation midpoint", PhaseGeneration, 50, 100, 45},
		{"generation start", PhaseGeneration, 0, 100, 20},
		{"generation end", PhaseGeneration, 100, 100, 70},
		{"unknown total yields lower bound", PhaseGeneration, 7, 0, 20},
		{"negative total yields lower bound", PhaseGeneration, 7, -1, 20},
		{"overshoot clamps to upper bound", PhaseGeneration, 150, 100, 70},
		{"negative current clamps to lower bound", PhaseGeneration, -5, 100, 20},
		{"integer division truncates", PhaseGeneration, 1, 3, 36},
		{"enhancement midpoint", PhaseEnhancement, 1, 2, 85},
		{"load band", PhaseLoad, 1, 2, 15},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.phase.Scale(tc.current, tc.total))
		})
	}
}

func TestPhase_ScaleIsMonotonic(t *testing.T) {
	t.Parallel()

	prev := PhaseGeneration.Scale(0, 997)
	for i := 1; i <= 997; i++ {
		got := PhaseGeneration.Scale(i, 997)
		require.GreaterOrEqual(t, got, prev, "step %d", i)
		prev = got
	}
	assert.Equal(t, PhaseGeneration.Upper, prev)
}

func TestProgressReporter_Checkpoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := OpenMemoryStore(ctx, NewMockBackend(), testLogger())
	_, err := store.Create(ctx, "task-1")
	require.NoError(t, err)

	reporter := NewProgressReporter(store, "task-1", testLogger())
	reporter.Enter(ctx, PhaseLoad, "Loading...")

	rec, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Progress)
	assert.Equal(t, "Loading...", rec.Message)
	assert.Equal(t, TaskStatusQueued, rec.Status)
}

func TestProgressReporter_GenerationStep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMockBackend()
	store := OpenMemoryStore(ctx, backend, testLogger())
	_, err := store.Create(ctx, "task-1")
	require.NoError(t, err)

	reporter := NewProgressReporter(store, "task-1", testLogger())
	step := reporter.GenerationStep(ctx)

	step(50, 100)

	rec, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusGenerating, rec.Status)
	assert.Equal(t, 45, rec.Progress)
	assert.Equal(t, "Generating audio tokens... 50/100 frames", rec.Message)

	t.Run("unchanged progress is not persisted", func(t *testing.T) {
		before := backend.PersistCount()

		// 1000 frames over a 50 point band: 20 frames per point
		step(600, 1000)
		afterFirst := backend.PersistCount()
		for i := 601; i < 620; i++ {
			step(i, 1000)
		}
		assert.Equal(t, before+1, afterFirst)
		assert.Equal(t, afterFirst, backend.PersistCount())

		// The staged message is still visible to pollers
		rec, err := store.Get(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, "Generating audio tokens... 619/1000 frames", rec.Message)

		step(620, 1000)
		assert.Equal(t, afterFirst+1, backend.PersistCount())
	})
}
