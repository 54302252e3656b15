package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kunoai/kuno-engine/internal/task"
)

// ErrNilDB is returned when the backend is created without a connection.
var ErrNilDB = errors.New("database connection cannot be nil")

const selectTasksQuery = `
	SELECT id, status, message, progress, logs, output, created_at, updated_at
	FROM tasks
`

const upsertTaskQuery = `
	INSERT INTO tasks (id, status, message, progress, logs, output, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		message = EXCLUDED.message,
		progress = EXCLUDED.progress,
		logs = EXCLUDED.logs,
		output = EXCLUDED.output,
		updated_at = EXCLUDED.updated_at
`

// TaskBackend implements task.Backend on a tasks table. Persist writes only the
// changed records, inside one transaction.
type TaskBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ task.Backend = (*TaskBackend)(nil)

// NewTaskBackend creates a TaskBackend. The schema must already be migrated.
func NewTaskBackend(db *sql.DB, logger *slog.Logger) (*TaskBackend, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &TaskBackend{
		db:     db,
		logger: logger.With("component", "task_postgres"),
	}, nil
}

// Load reads every task row.
func (b *TaskBackend) Load(ctx context.Context) (map[string]task.Record, error) {
	rows, err := b.db.QueryContext(ctx, selectTasksQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	records := make(map[string]task.Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return records, nil
}

// Persist upserts the records listed in snapshot.Changed.
func (b *TaskBackend) Persist(ctx context.Context, snapshot task.Snapshot) error {
	if len(snapshot.Changed) == 0 {
		return nil
	}

	return RunInTransaction(ctx, b.db, b.logger, func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range snapshot.Changed {
			rec, ok := snapshot.Records[id]
			if !ok {
				b.logger.Warn("changed task missing from snapshot", "task_id", id)
				continue
			}
			if err := upsertRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertRecord(ctx context.Context, db DBTX, rec task.Record) error {
	logs, err := json.Marshal(rec.Logs)
	if err != nil {
		return fmt.Errorf("failed to encode logs for task %s: %w", rec.ID, err)
	}

	_, err = db.ExecContext(ctx, upsertTaskQuery,
		rec.ID,
		string(rec.Status),
		rec.Message,
		rec.Progress,
		logs,
		rec.Output,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", rec.ID, MapError(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (task.Record, error) {
	var (
		rec    task.Record
		status string
		logs   []byte
	)
	if err := row.Scan(
		&rec.ID,
		&status,
		&rec.Message,
		&rec.Progress,
		&logs,
		&rec.Output,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return task.Record{}, fmt.Errorf("failed to scan task row: %w", MapError(err))
	}

	rec.Status = task.TaskStatus(status)
	if err := json.Unmarshal(logs, &rec.Logs); err != nil {
		return task.Record{}, fmt.Errorf("failed to decode logs for task %s: %w", rec.ID, err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}
