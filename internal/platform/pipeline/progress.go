package pipeline

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"sync"

	"github.com/kunoai/kuno-engine/internal/generation"
)

// stepCounter matches the "current/total" counter of a tqdm progress bar.
var stepCounter = regexp.MustCompile(`(\d+)/(\d+)`)

// maxSegment bounds the partial line kept between writes.
const maxSegment = 4096

// progressWriter forwards output unchanged and reports the last step counter
// seen on each redrawn or committed line.
type progressWriter struct {
	out      io.Writer
	progress generation.ProgressFunc

	mu      sync.Mutex
	segment []byte
}

func newProgressWriter(out io.Writer, progress generation.ProgressFunc) *progressWriter {
	if out == nil {
		out = io.Discard
	}
	return &progressWriter{out: out, progress: progress}
}

// Write implements io.Writer.
func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.out.Write(p)
	if w.progress == nil {
		return n, err
	}

	data := append(w.segment, p...)
	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		w.report(data[:i])
		data = data[i+1:]
	}
	if len(data) > maxSegment {
		data = data[len(data)-maxSegment:]
	}
	w.segment = append(w.segment[:0], data...)

	return n, err
}

func (w *progressWriter) report(line []byte) {
	matches := stepCounter.FindAllSubmatch(line, -1)
	if len(matches) == 0 {
		return
	}
	last := matches[len(matches)-1]
	current, err1 := strconv.Atoi(string(last[1]))
	total, err2 := strconv.Atoi(string(last[2]))
	if err1 != nil || err2 != nil {
		return
	}
	w.progress(current, total)
}
