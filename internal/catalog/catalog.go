// Package catalog keeps an sqlite index of finished runs so earlier results
// can be listed without walking the output tree.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("catalog: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	protocol    TEXT NOT NULL,
	topology    TEXT NOT NULL,
	size        INTEGER NOT NULL,
	seed        INTEGER NOT NULL,
	eq_steps    INTEGER NOT NULL,
	temperature REAL NOT NULL DEFAULT 0,
	dir         TEXT NOT NULL,
	records     INTEGER NOT NULL,
	forced      INTEGER NOT NULL,
	final_m     REAL NOT NULL,
	final_e     REAL NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_protocol ON runs(protocol, created_at);
`

// Entry is one row of the runs table.
type Entry struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Protocol    string  `db:"protocol" json:"protocol"`
	Topology    string  `db:"topology" json:"topology"`
	Size        int     `db:"size" json:"size"`
	Seed        int64   `db:"seed" json:"seed"`
	EqSteps     int     `db:"eq_steps" json:"eq_steps"`
	Temperature float64 `db:"temperature" json:"temperature"`
	Dir         string  `db:"dir" json:"dir"`
	Records     int     `db:"records" json:"records"`
	Forced      int     `db:"forced" json:"forced"`
	FinalM      float64 `db:"final_m" json:"final_m"`
	FinalE      float64 `db:"final_e" json:"final_e"`
	Error       string  `db:"error" json:"error,omitempty"`
	CreatedAt   int64   `db:"created_at" json:"created_at"`
	DurationMS  int64   `db:"duration_ms" json:"duration_ms"`
}

// Created returns CreatedAt as a time.
func (e Entry) Created() time.Time { return time.Unix(0, e.CreatedAt) }

// Filter narrows List. Zero values match everything.
type Filter struct {
	Protocol string
	Topology string
	Limit    int
}

// Catalog is an open run index. It is safe for concurrent use.
type Catalog struct {
	db *sqlx.DB
}

// Open opens or creates the catalog database at path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record inserts or replaces a run.
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("catalog: entry without id")
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixNano()
	}
	_, err := c.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, name, protocol, topology, size, seed, eq_steps, temperature, dir,
			records, forced, final_m, final_e, error, created_at, duration_ms
		) VALUES (
			:id, :name, :protocol, :topology, :size, :seed, :eq_steps, :temperature, :dir,
			:records, :forced, :final_m, :final_e, :error, :created_at, :duration_ms
		)`, e)
	if err != nil {
		return fmt.Errorf("record run %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the run with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	err := c.db.GetContext(ctx, &e, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return e, fmt.Errorf("get run %s: %w", id, err)
	}
	return e, nil
}

// List returns runs newest first.
func (c *Catalog) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT * FROM runs WHERE (? = '' OR protocol = ?) AND (? = '' OR topology = ?) ORDER BY created_at DESC, id`
	args := []any{f.Protocol, f.Protocol, f.Topology, f.Topology}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	var out []Entry
	if err := c.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
