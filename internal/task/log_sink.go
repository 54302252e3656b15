package task

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DefaultLogFlushInterval bounds how often captured output is persisted per task.
const DefaultLogFlushInterval = time.Second

// maxEscapeLen caps how many bytes of an unfinished escape sequence are held
// back between writes.
const maxEscapeLen = 64

// ansiEscape matches two-byte ESC sequences and CSI sequences.
var ansiEscape = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// LogSink is the per-task writer handed to the pipeline collaborators. It mirrors
// raw output to the console and folds it into the task's line list the way a
// terminal would: '\r' rewinds the open line, '\n' commits it.
type LogSink struct {
	store    Store
	taskID   string
	console  io.Writer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	committed   []string
	open        strings.Builder
	carry       []byte
	lastPersist time.Time
	pending     bool
}

// NewLogSink creates a sink that continues from the task's current logs.
// A nil console disables mirroring; a non-positive interval uses DefaultLogFlushInterval.
func NewLogSink(
	ctx context.Context,
	store Store,
	taskID string,
	console io.Writer,
	interval time.Duration,
	logger *slog.Logger,
) *LogSink {
	if interval <= 0 {
		interval = DefaultLogFlushInterval
	}

	s := &LogSink{
		store:    store,
		taskID:   taskID,
		console:  console,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}

	if rec, err := store.Get(ctx, taskID); err == nil && len(rec.Logs) > 0 {
		s.committed = append(s.committed, rec.Logs[:len(rec.Logs)-1]...)
		s.open.WriteString(rec.Logs[len(rec.Logs)-1])
	}

	return s
}

// Write implements io.Writer. It never fails: store problems are logged so a
// collaborator's output stream is never cut short by bookkeeping.
func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.console != nil {
		_, _ = s.console.Write(p)
	}

	data := append(s.carry, p...)
	data, s.carry = splitIncomplete(data)

	clean := ansiEscape.ReplaceAll(data, nil)
	for _, r := range string(clean) {
		switch r {
		case '\r':
			s.open.Reset()
		case '\n':
			s.committed = append(s.committed, s.open.String())
			s.open.Reset()
		default:
			s.open.WriteRune(r)
		}
	}

	ctx := context.Background()
	if err := s.store.Stage(ctx, s.taskID, Patch{}.WithLogs(s.linesLocked())); err != nil {
		s.logStoreError("stage", err)
		return len(p), nil
	}

	now := s.now()
	if now.Sub(s.lastPersist) >= s.interval {
		s.flushLocked(ctx, now)
	} else {
		s.pending = true
	}

	return len(p), nil
}

// Flush persists any staged output that the throttle held back.
func (s *LogSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		return nil
	}
	return s.flushLocked(ctx, s.now())
}

// Lines returns a copy of the committed lines followed by the open line.
func (s *LogSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

func (s *LogSink) linesLocked() []string {
	lines := make([]string, 0, len(s.committed)+1)
	lines = append(lines, s.committed...)
	return append(lines, s.open.String())
}

func (s *LogSink) flushLocked(ctx context.Context, now time.Time) error {
	s.lastPersist = now
	s.pending = false
	if err := s.store.Flush(ctx, s.taskID); err != nil {
		s.logStoreError("flush", err)
		return err
	}
	return nil
}

func (s *LogSink) logStoreError(op string, err error) {
	if errors.Is(err, ErrTaskFinalized) {
		s.logger.Debug("dropping output for finalized task", "operation", op)
		return
	}
	s.logger.Warn("failed to record task output", "operation", op, "error", err)
}

// splitIncomplete separates a trailing unfinished escape sequence or UTF-8 rune
// from data so it can be completed by the next write.
func splitIncomplete(data []byte) ([]byte, []byte) {
	if idx := bytes.LastIndexByte(data, 0x1b); idx >= 0 && incompleteEscape(data[idx:]) {
		return data[:idx], append([]byte(nil), data[idx:]...)
	}

	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			return data[:i], append([]byte(nil), data[i:]...)
		}
		break
	}

	return data, nil
}

// incompleteEscape reports whether tail, which starts with ESC, could still
// become a complete sequence once more bytes arrive.
func incompleteEscape(tail []byte) bool {
	if len(tail) > maxEscapeLen {
		return false
	}
	if len(tail) == 1 {
		return true
	}
	if tail[1] != '[' {
		return false
	}
	for _, b := range tail[2:] {
		if b < 0x20 || b > 0x3f {
			return false
		}
	}
	return true
}
