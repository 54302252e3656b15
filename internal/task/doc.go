// Package task manages the lifecycle of generation jobs: the record store that
// pollers read, the log sink that folds terminal output into a line list, the
// progress bands, and the executor and runner that carry a job from queued to
// completed or failed on a background goroutine without blocking request
// handling. Records survive restarts through a pluggable Backend.
package task
