package generation

import (
	"context"
	"io"

	"github.com/kunoai/kuno-engine/internal/domain"
)

// ProgressFunc receives the generator's step counter. total may be zero when the
// generator cannot yet tell how many steps remain.
type ProgressFunc func(current, total int)

// Generator turns a song request into raw audio.
type Generator interface {
	// Generate writes raw audio to outputPath and returns the path it wrote.
	// Everything the pipeline prints goes to out, and step counts go to progress.
	Generate(
		ctx context.Context,
		req domain.SongRequest,
		outputPath string,
		out io.Writer,
		progress ProgressFunc,
	) (string, error)
}

// Enhancer masters raw audio. It must tolerate an input that is only partially
// written.
type Enhancer interface {
	Enhance(ctx context.Context, inputPath, outputPath string, out io.Writer) (string, error)
}

// Releaser unloads the heavy pipeline. Release is idempotent and safe to call
// when nothing is loaded.
type Releaser interface {
	Release(ctx context.Context) error
}

// ReleaserFunc adapts a function to the Releaser interface.
type ReleaserFunc func(ctx context.Context) error

// Release implements Releaser.
func (f ReleaserFunc) Release(ctx context.Context) error {
	return f(ctx)
}
