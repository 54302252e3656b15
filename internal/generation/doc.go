// Package generation defines the boundary between the job lifecycle manager and
// the audio pipeline: the generator that turns a song request into raw audio, the
// enhancer that masters it, and the heavy shared resource both of them run on.
// Implementations live under internal/platform/pipeline.
package generation
