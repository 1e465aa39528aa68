// Package draft keeps a learner's in-progress answers on the local machine
// so that a crash or restart before submission loses nothing.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
)

// SchemaVersion is written into every stored record.
const SchemaVersion = 1

// Store persists one answer sheet per exam. Save must be durable when it
// returns. Load returns an empty, non-nil map when nothing is stored.
type Store interface {
	Save(ctx context.Context, examID uuid.UUID, answers model.Answers) error
	Load(ctx context.Context, examID uuid.UUID) (model.Answers, error)
	Clear(ctx context.Context, examID uuid.UUID) error
}

// Key is the storage key for an exam's draft.
func Key(examID uuid.UUID) string {
	return fmt.Sprintf("exam_%s_answers", examID)
}

type record struct {
	Version int           `json:"version"`
	UserID  int64         `json:"user_id"`
	Answers model.Answers `json:"answers"`
	SavedAt time.Time     `json:"saved_at"`
}

func encode(answers model.Answers, userID int64, now time.Time) ([]byte, error) {
	if answers == nil {
		answers = model.Answers{}
	}
	return json.Marshal(record{Version: SchemaVersion, UserID: userID, Answers: answers, SavedAt: now.UTC()})
}

// decode returns an empty sheet for a record written by another learner.
func decode(raw []byte, userID int64) (model.Answers, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if r.Version > SchemaVersion {
		return nil, fmt.Errorf("draft schema version %d is newer than %d", r.Version, SchemaVersion)
	}
	if r.Answers == nil || r.UserID != userID {
		return model.Answers{}, nil
	}
	return r.Answers, nil
}
