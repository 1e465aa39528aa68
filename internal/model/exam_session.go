package model

import (
	"time"

	"github.com/google/uuid"
)

// Answers is the answer sheet: question id to answer string. Values stay
// strings at the wire boundary regardless of question type.
type Answers map[string]string

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SubmitReason records what triggered a submission.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
	SubmitReasonSweeper SubmitReason = "sweeper"
)

// ExamSession is a learner's attempt at an exam. At most one exists per
// (exam, user).
type ExamSession struct {
	ID           uuid.UUID    `json:"id"`
	ExamID       uuid.UUID    `json:"exam_id"`
	UserID       int64        `json:"user_id"`
	Answers      Answers      `json:"answers"`
	StartedAt    time.Time    `json:"started_at"`
	LastSavedAt  time.Time    `json:"last_saved_at"`
	Submitted    bool         `json:"submitted"`
	SubmitReason SubmitReason `json:"submit_reason,omitempty"`
	Score        *float64     `json:"score,omitempty"`
	Correct      *int         `json:"correct,omitempty"`
	Total        *int         `json:"total,omitempty"`
	SubmittedAt  *time.Time   `json:"submitted_at,omitempty"`
	GradedAt     *time.Time   `json:"graded_at,omitempty"`
}

// Result returns the stored grading outcome of a submitted session.
func (s *ExamSession) Result() *SubmitResult {
	if !s.Submitted || s.Score == nil {
		return nil
	}
	r := &SubmitResult{
		ExamID: s.ExamID,
		UserID: s.UserID,
		Score:  *s.Score,
		Reason: s.SubmitReason,
	}
	if s.Correct != nil {
		r.Correct = *s.Correct
	}
	if s.Total != nil {
		r.Total = *s.Total
	}
	if s.SubmittedAt != nil {
		r.SubmittedAt = *s.SubmittedAt
	}
	if s.GradedAt != nil {
		r.GradedAt = *s.GradedAt
	}
	return r
}

// SubmitResult is the grading response returned to the learner.
type SubmitResult struct {
	ExamID      uuid.UUID    `json:"exam_id"`
	UserID      int64        `json:"user_id"`
	Score       float64      `json:"score"`
	Correct     int          `json:"correct"`
	Total       int          `json:"total"`
	Reason      SubmitReason `json:"reason"`
	SubmittedAt time.Time    `json:"submitted_at"`
	GradedAt    time.Time    `json:"graded_at"`
}

// LeaderboardEntry is one ranked row of an exam's results.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Score       float64   `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SaveProgressRequest carries partial answers to merge into saved progress.
type SaveProgressRequest struct {
	Answers Answers `json:"answers" binding:"required"`
}

// SubmitRequest carries the final answer sheet. Missing questions are
// graded as unanswered.
type SubmitRequest struct {
	Answers Answers `json:"answers"`
}

// SessionEvent is published on the exam's Redis channel.
type SessionEvent struct {
	Type   string    `json:"type"`
	ExamID uuid.UUID `json:"exam_id"`
	UserID int64     `json:"user_id"`
	Score  float64   `json:"score,omitempty"`
	At     time.Time `json:"at"`
}

const (
	EventSessionStarted   = "session.started"
	EventSessionSubmitted = "session.submitted"
)

// PersistAnswersJob is queued on the autosave queue for write-behind to PG.
type PersistAnswersJob struct {
	ExamID   uuid.UUID `json:"exam_id"`
	UserID   int64     `json:"user_id"`
	Answers  Answers   `json:"answers"`
	QueuedAt time.Time `json:"queued_at"`
}
