package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/srand/capataz/pkg/job"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id         INTEGER PRIMARY KEY,
    state      TEXT NOT NULL,
    entrypoint TEXT NOT NULL,
    record     TEXT NOT NULL,
    updated_at INTEGER NOT NULL
)`

// Job records as rows of a SQLite database.
type sqliteRecords struct {
	db *sql.DB
}

// Creates a store keeping job records in the SQLite database at config.Path.
func NewSQLiteStore(config *Config, opts ...Option) (*PersistentStore, error) {
	path := config.Path
	if path == "" {
		path = DefaultSQLitePath
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The store serializes access, and an in-memory database only
	// exists on a single connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		createJobsTable,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize database: %w", err)
		}
	}

	return newPersistentStore(&sqliteRecords{db: db}, config, opts...), nil
}

func (r *sqliteRecords) Read(id job.ID) (*job.Job, error) {
	var record string
	err := r.db.QueryRow("SELECT record FROM jobs WHERE id = ?", int64(id)).Scan(&record)
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}

	j := &job.Job{}
	if err := json.Unmarshal([]byte(record), j); err != nil {
		return nil, err
	}
	return j, nil
}

func (r *sqliteRecords) Write(j *job.Job) error {
	record, err := json.Marshal(j)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO jobs (id, state, entrypoint, record, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			entrypoint = excluded.entrypoint,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		int64(j.ID), string(j.State()), j.Entrypoint, string(record), lastUpdate(j),
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (r *sqliteRecords) Close() error {
	return r.db.Close()
}

func lastUpdate(j *job.Job) int64 {
	switch j.State() {
	case job.StateRejected:
		return int64(j.RejectedSince)
	case job.StateResolved:
		return int64(j.ResolvedSince)
	case job.StateAssigned:
		return int64(j.AssignedSince)
	}
	return int64(j.ScheduledSince)
}
