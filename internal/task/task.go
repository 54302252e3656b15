package task

import (
	"context"
	"time"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusGenerating TaskStatus = "generating"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"

	// TaskStatusUnknown is only ever reported to pollers asking for an id
	// that does not exist. It is never stored.
	TaskStatusUnknown TaskStatus = "unknown"
)

// IsTerminal reports whether no further mutation is permitted in this status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValid reports whether s may be stored on a record.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusGenerating,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Record is the tracked state of one generation job.
//
// Logs holds every captured output line in order. All but the last entry are
// committed; the last entry is the open line that carriage returns overwrite.
type Record struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Message   string     `json:"message"`
	Progress  int        `json:"progress"`
	Logs      []string   `json:"logs"`
	Output    string     `json:"output,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewRecord returns a record in its initial queued state.
func NewRecord(id string, now time.Time) Record {
	return Record{
		ID:        id,
		Status:    TaskStatusQueued,
		Message:   "Waiting for worker...",
		Progress:  0,
		Logs:      []string{""},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UnknownRecord is what pollers see for an id that was never created.
func UnknownRecord(id string) Record {
	return Record{
		ID:       id,
		Status:   TaskStatusUnknown,
		Message:  "Task not found",
		Progress: 0,
		Logs:     []string{},
	}
}

// Clone returns a deep copy so callers never share the logs slice with the store.
func (r Record) Clone() Record {
	cp := r
	cp.Logs = append([]string(nil), r.Logs...)
	return cp
}

// Patch is a partial update. Nil fields are left untouched; a non-nil Logs
// replaces the whole sequence.
type Patch struct {
	Status   *TaskStatus
	Message  *string
	Progress *int
	Logs     []string
	Output   *string
}

// WithStatus sets the status field of the patch.
func (p Patch) WithStatus(s TaskStatus) Patch {
	p.Status = &s
	return p
}

// WithMessage sets the message field of the patch.
func (p Patch) WithMessage(msg string) Patch {
	p.Message = &msg
	return p
}

// WithProgress sets the progress field of the patch, clamped to 0-100.
func (p Patch) WithProgress(progress int) Patch {
	progress = clamp(progress, 0, 100)
	p.Progress = &progress
	return p
}

// WithLogs replaces the whole log sequence.
func (p Patch) WithLogs(logs []string) Patch {
	p.Logs = append([]string{}, logs...)
	return p
}

// WithOutput sets the output file name of the patch.
func (p Patch) WithOutput(output string) Patch {
	p.Output = &output
	return p
}

// Apply merges the patch into r and stamps UpdatedAt.
func (p Patch) Apply(r *Record, now time.Time) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Message != nil {
		r.Message = *p.Message
	}
	if p.Progress != nil {
		r.Progress = *p.Progress
	}
	if p.Logs != nil {
		r.Logs = append([]string{}, p.Logs...)
		if len(r.Logs) == 0 {
			r.Logs = []string{""}
		}
	}
	if p.Output != nil {
		r.Output = *p.Output
	}
	r.UpdatedAt = now
}

// Store defines the task record store used by the executor and the status API.
// Version: 2.0
type Store interface {
	// Create inserts a record with default fields.
	// Returns ErrDuplicateID if the id already exists.
	Create(ctx context.Context, id string) (Record, error)

	// Get returns a copy of the record or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Update merges the patch and persists the snapshot. Persistence failures are
	// logged, not returned.
	Update(ctx context.Context, id string, patch Patch) error

	// Stage merges the patch in memory only. Pair with Flush.
	Stage(ctx context.Context, id string, patch Patch) error

	// Flush persists the current in-memory state of the record.
	Flush(ctx context.Context, id string) error

	// List returns copies of all records.
	List(ctx context.Context) ([]Record, error)
}

// Snapshot is what a Backend receives on every persist: the full record set
// and the ids that changed since the previous persist call.
type Snapshot struct {
	Records map[string]Record
	Changed []string
}

// Backend persists store state durably. Full-rewrite backends write every
// record; incremental backends write only Changed.
type Backend interface {
	// Load returns every persisted record. A missing snapshot is not an error.
	Load(ctx context.Context) (map[string]Record, error)

	// Persist writes the snapshot.
	Persist(ctx context.Context, snapshot Snapshot) error
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
