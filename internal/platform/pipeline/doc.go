// Package pipeline provides the concrete generation collaborators.
//
// The command adapters run configured external programs: the model pipeline,
// the mastering chain, and an optional unload hook. Their output streams into
// the task's log sink and tqdm-style "current/total" counters are parsed into
// progress callbacks. The Simulator produces short silent WAV files without
// any model and is meant for local development and tests.
package pipeline
