// Package mocks provides shared mock implementations for testing.
//
// Each mock has a function field per interface method. A nil field falls back
// to a simple default so tests only override what they exercise:
//
//	gen := &mocks.MockGenerator{
//	    GenerateFn: func(ctx context.Context, req domain.SongRequest, outputPath string,
//	        out io.Writer, progress generation.ProgressFunc) (string, error) {
//	        return "", errors.New("out of memory")
//	    },
//	}
//
// When adding a new mock to this package, name the file after the interface
// being mocked.
package mocks
