// Package history records build and suppression runs in a local SQLite ledger.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dmastore/internal/common"
	"dmastore/pkg/errors"
)

// Kind is the type of a recorded run
type Kind string

const (
	KindBuild    Kind = "build"
	KindSuppress Kind = "suppress"
)

// Status is the state of a recorded run
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one ledger entry
type Run struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Status     Status            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Params     map[string]string `json:"params"`
	Rows       int64             `json:"rows"`
	Partitions int               `json:"partitions"`
	Error      string            `json:"error,omitempty"`
}

// Duration is zero while the run is in progress
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is what a finished run reports
type Outcome struct {
	Rows       int64
	Partitions int
	Err        error
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	params      TEXT NOT NULL DEFAULT '{}',
	rows        INTEGER NOT NULL DEFAULT 0,
	partitions  INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Ledger stores runs in SQLite
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return nil, errors.FileSystemError("Failed to create history directory", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open history ledger").
			WithContext("path", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to initialize history ledger").
			WithContext("path", path)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

// Start records a running entry and returns its id
func (l *Ledger) Start(ctx context.Context, kind Kind, params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode run params: %w", err)
	}

	id := uuid.NewString()
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at, params) VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), string(StatusRunning), l.now().UnixNano(), string(encoded))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to record run start")
	}
	return id, nil
}

// Finish marks the run succeeded, or failed when out.Err is set
func (l *Ledger) Finish(ctx context.Context, id string, out Outcome) error {
	status, msg := StatusSucceeded, ""
	if out.Err != nil {
		status, msg = StatusFailed, out.Err.Error()
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, rows = ?, partitions = ?, error = ? WHERE id = ?`,
		string(status), l.now().UnixNano(), out.Rows, out.Partitions, msg, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to record run outcome")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "Unknown run").WithContext("run_id", id)
	}
	return nil
}

// Recent returns up to limit runs, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, status, started_at, finished_at, params, rows, partitions, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to read history")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			kind     string
			status   string
			started  int64
			finished sql.NullInt64
			params   string
		)
		if err := rows.Scan(&r.ID, &kind, &status, &started, &finished, &params, &r.Rows, &r.Partitions, &r.Error); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeResultScan, "Failed to read history row")
		}
		r.Kind, r.Status = Kind(kind), Status(status)
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.FinishedAt = &t
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			r.Params = map[string]string{}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the ledger
func (l *Ledger) Close() error {
	return l.db.Close()
}
