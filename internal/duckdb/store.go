package duckdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"parareq/pkg/dispatch"
)

// Store mirrors result records into a DuckDB database for later
// analysis. It implements dispatch.Sink.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens or creates the results database and applies the schema.
func Open(path, runID string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply results schema: %w", err)
	}
	return &Store{db: db, runID: runID}, nil
}

// Write inserts one result row. The (run_id, request_id) uniqueness
// constraint rejects duplicate results at the database level too.
func (s *Store) Write(rec dispatch.ResultRecord) error {
	var errorsJSON any
	if len(rec.Errors) > 0 {
		data, err := json.Marshal(rec.Errors)
		if err != nil {
			return fmt.Errorf("marshal errors: %w", err)
		}
		errorsJSON = string(data)
	}
	_, err := s.db.Exec(
		`INSERT INTO results (row_id, run_id, request_id, status, attempts, request, response, errors, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		s.runID,
		int64(rec.ID),
		string(rec.Status),
		rec.Attempts,
		rawOrNil(rec.Request),
		rawOrNil(rec.Response),
		errorsJSON,
		rawOrNil(rec.Metadata),
	)
	if err != nil {
		return fmt.Errorf("insert result %d: %w", rec.ID, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rawOrNil converts raw JSON to a driver value, keeping NULL for absent
// fields.
func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
