package draft

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore keeps one learner's drafts in a local SQLite database that
// may be shared with other learners on the same machine.
type SQLiteStore struct {
	db     *sql.DB
	userID int64
	now    func() time.Time
}

// NewSQLiteStore creates the drafts table if needed. The caller owns db.
func NewSQLiteStore(ctx context.Context, db *sql.DB, userID int64) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create drafts table: %w", err)
	}
	return &SQLiteStore{db: db, userID: userID, now: time.Now}, nil
}

// Save upserts the draft for examID.
func (s *SQLiteStore) Save(ctx context.Context, examID uuid.UUID, answers model.Answers) error {
	now := s.now()
	raw, err := encode(answers, s.userID, now)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		Key(examID), string(raw), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Load returns the stored draft, or an empty map.
func (s *SQLiteStore) Load(ctx context.Context, examID uuid.UUID) (model.Answers, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM drafts WHERE key = ?`, Key(examID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Answers{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return decode([]byte(raw), s.userID)
}

// Clear deletes the draft. Clearing a missing draft is not an error.
func (s *SQLiteStore) Clear(ctx context.Context, examID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, Key(examID)); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
