package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/sage/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	state       TEXT NOT NULL,
	working_dir TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

// SQLiteStore persists sessions in a SQLite database. The full session is
// stored as a JSON payload with a few indexed columns for listing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, state, working_dir, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			state = excluded.state,
			payload = excluded.payload`,
		session.ID, session.CreatedAt, session.UpdatedAt,
		string(session.State), session.WorkingDir, string(payload))
	return err
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*models.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List implements Store. Results are sorted by creation time, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var session models.Session
		if err := json.Unmarshal([]byte(payload), &session); err != nil {
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// Exists implements Store.
func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
