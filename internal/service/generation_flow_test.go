package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kunoai/kuno-engine/internal/events"
	"github.com/kunoai/kuno-engine/internal/generation"
	"github.com/kunoai/kuno-engine/internal/platform/filestore"
	"github.com/kunoai/kuno-engine/internal/platform/pipeline"
	"github.com/kunoai/kuno-engine/internal/projectstate"
	"github.com/kunoai/kuno-engine/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerationFlow wires the real store, runner, executor and simulated
// pipeline together and follows one submission to completion.
func TestGenerationFlow(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "generated_songs")

	backend, err := filestore.NewBackend(filepath.Join(dir, "tasks.json"), logger)
	require.NoError(t, err)
	store := task.OpenMemoryStore(ctx, backend, logger)

	sim := pipeline.NewSimulator(pipeline.SimulatorConfig{Frames: 10, StepDelay: time.Millisecond, Seconds: 1}, logger)
	resource := generation.NewResource(sim, logger)

	executor, err := task.NewExecutor(store, sim, sim, resource, task.ExecutorConfig{
		OutputDir:        outputDir,
		LogFlushInterval: 10 * time.Millisecond,
	}, logger)
	require.NoError(t, err)

	runner := task.NewTaskRunner(store, executor, task.TaskRunnerConfig{}, logger)
	require.NoError(t, runner.Start())
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Stop(stopCtx)
	})

	project, err := projectstate.NewStore(filepath.Join(dir, "current_project.json"), logger)
	require.NoError(t, err)
	bus := events.NewBus(logger)
	bus.Subscribe(project, events.TypeSubmissionAccepted)

	svc, err := NewGenerationService(GenerationDeps{
		Runner:    runner,
		Tasks:     store,
		Emitter:   bus,
		Project:   project,
		Resetter:  resource,
		OutputDir: outputDir,
	}, logger)
	require.NoError(t, err)

	result, err := svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusQueued, result.Status)
	assert.Equal(t, SubmittedMessage, result.Message)
	require.NotEmpty(t, result.TaskID)

	// The project slot is saved as part of the submission
	assert.Equal(t, "Night Drive", svc.Project(ctx).Title)

	var rec task.Record
	require.Eventually(t, func() bool {
		rec, err = svc.GetStatus(ctx, result.TaskID)
		return err == nil && rec.Status.IsTerminal()
	}, 10*time.Second, 10*time.Millisecond)

	assert.Equal(t, task.TaskStatusCompleted, rec.Status, "message: %s", rec.Message)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, "Ready to play.", rec.Message)
	assert.Equal(t, result.TaskID+"_Night_Drive.wav", rec.Output)
	assert.True(t, strings.Contains(strings.Join(rec.Logs, "\n"), "Task completed successfully"))

	songs, err := svc.Library(ctx)
	require.NoError(t, err)
	var names []string
	for _, s := range songs {
		names = append(names, s.Filename)
	}
	assert.Contains(t, names, rec.Output)

	path, err := svc.AudioPath(ctx, rec.Output)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, rec.Output), path)

	// The terminal record survives a reload of the snapshot
	reloaded := task.OpenMemoryStore(ctx, backend, logger)
	durable, err := reloaded.Get(ctx, result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusCompleted, durable.Status)

	require.NoError(t, svc.Reset(ctx))
}
