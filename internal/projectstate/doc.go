// Package projectstate keeps the single "current project" slot: the most
// recently submitted song request, overwritten on every submission.
package projectstate
