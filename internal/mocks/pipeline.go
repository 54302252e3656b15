package mocks

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/kunoai/kuno-engine/internal/domain"
	"github.com/kunoai/kuno-engine/internal/generation"
)

// MockGenerator implements generation.Generator for testing.
// By default it prints one line, reports full progress and returns outputPath.
type MockGenerator struct {
	GenerateFn func(ctx context.Context, req domain.SongRequest, outputPath string,
		out io.Writer, progress generation.ProgressFunc) (string, error)
}

// Generate implements generation.Generator.
func (m *MockGenerator) Generate(
	ctx context.Context,
	req domain.SongRequest,
	outputPath string,
	out io.Writer,
	progress generation.ProgressFunc,
) (string, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req, outputPath, out, progress)
	}
	fmt.Fprintln(out, "generating")
	if progress != nil {
		progress(100, 100)
	}
	return outputPath, nil
}

// MockEnhancer implements generation.Enhancer for testing.
// By default it prints one line and returns outputPath.
type MockEnhancer struct {
	EnhanceFn func(ctx context.Context, inputPath, outputPath string, out io.Writer) (string, error)
}

// Enhance implements generation.Enhancer.
func (m *MockEnhancer) Enhance(ctx context.Context, inputPath, outputPath string, out io.Writer) (string, error) {
	if m.EnhanceFn != nil {
		return m.EnhanceFn(ctx, inputPath, outputPath, out)
	}
	fmt.Fprintln(out, "mastering")
	return outputPath, nil
}

// MockReleaser implements generation.Releaser for testing. It counts calls
// and returns Err from each of them.
type MockReleaser struct {
	Err   error
	calls atomic.Int32
}

// Release implements generation.Releaser.
func (m *MockReleaser) Release(ctx context.Context) error {
	m.calls.Add(1)
	return m.Err
}

// Calls returns how many times Release was called.
func (m *MockReleaser) Calls() int32 {
	return m.calls.Load()
}

var (
	_ generation.Generator = (*MockGenerator)(nil)
	_ generation.Enhancer  = (*MockEnhancer)(nil)
	_ generation.Releaser  = (*MockReleaser)(nil)
)
