package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, exam_id, user_id, started_at, last_saved_at, submitted, submit_reason,
	score, correct, total, submitted_at, graded_at`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row, s *model.ExamSession) error {
	var reason *string
	err := row.Scan(&s.ID, &s.ExamID, &s.UserID, &s.StartedAt, &s.LastSavedAt, &s.Submitted, &reason,
		&s.Score, &s.Correct, &s.Total, &s.SubmittedAt, &s.GradedAt)
	if reason != nil {
		s.SubmitReason = model.SubmitReason(*reason)
	}
	return err
}

// GetByExamAndUser retrieves a session together with its persisted answers.
func (r *ExamSessionRepository) GetByExamAndUser(ctx context.Context, examID uuid.UUID, userID int64) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE exam_id = $1 AND user_id = $2`,
		examID, userID)
	if err := scanSession(row, s); err != nil {
		return nil, notFound(err)
	}

	answers, err := r.GetAnswers(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	s.Answers = answers
	return s, nil
}

// GetAnswers loads the persisted answer rows for a session.
func (r *ExamSessionRepository) GetAnswers(ctx context.Context, examID uuid.UUID, userID int64) (model.Answers, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM session_answers WHERE exam_id = $1 AND user_id = $2`,
		examID, userID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := model.Answers{}
	for rows.Next() {
		var qid, answer string
		if err := rows.Scan(&qid, &answer); err != nil {
			return nil, err
		}
		answers[qid] = answer
	}
	return answers, rows.Err()
}

// Create inserts a new session. Returns ErrConflict if one already exists
// for the (exam, user) pair.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (exam_id, user_id) DO NOTHING
		 RETURNING id, started_at, last_saved_at`,
		s.ExamID, s.UserID,
	).Scan(&s.ID, &s.StartedAt, &s.LastSavedAt)
	if err == pgx.ErrNoRows {
		return ErrConflict
	}
	return err
}

// SaveAnswers upserts answer rows and bumps last_saved_at. Submitted
// sessions are left untouched.
func (r *ExamSessionRepository) SaveAnswers(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE exam_sessions SET last_saved_at = NOW()
			 WHERE exam_id = $1 AND user_id = $2 AND submitted = false`,
			examID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return upsertAnswers(ctx, tx, examID, userID, answers)
	})
}

func upsertAnswers(ctx context.Context, tx pgx.Tx, examID uuid.UUID, userID int64, answers model.Answers) error {
	if len(answers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for qid, answer := range answers {
		batch.Queue(
			`INSERT INTO session_answers (exam_id, user_id, question_id, answer, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (exam_id, user_id, question_id)
			 DO UPDATE SET answer = EXCLUDED.answer, updated_at = NOW()`,
			examID, userID, qid, answer)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// Completion is the grading outcome written when a session is submitted.
type Completion struct {
	Answers     model.Answers
	Reason      model.SubmitReason
	Score       float64
	Correct     int
	Total       int
	SubmittedAt time.Time
	GradedAt    time.Time
}

// Complete marks a session submitted and stores its final answers and score.
// Returns false if the session was already submitted; the first caller wins.
func (r *ExamSessionRepository) Complete(ctx context.Context, examID uuid.UUID, userID int64, c Completion) (bool, error) {
	won := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE exam_sessions
			 SET submitted = true, submit_reason = $1, score = $2, correct = $3, total = $4,
			     submitted_at = $5, graded_at = $6, last_saved_at = NOW()
			 WHERE exam_id = $7 AND user_id = $8 AND submitted = false`,
			c.Reason, c.Score, c.Correct, c.Total, c.SubmittedAt, c.GradedAt, examID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		won = true
		return upsertAnswers(ctx, tx, examID, userID, c.Answers)
	})
	return won, err
}

// CountByExam returns how many sessions exist for an exam.
func (r *ExamSessionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}

// ListExpiredOpen returns unsubmitted sessions whose exam ended before cutoff.
func (r *ExamSessionRepository) ListExpiredOpen(ctx context.Context, cutoff time.Time, limit int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, s.user_id, s.started_at, s.last_saved_at, s.submitted, s.submit_reason,
		        s.score, s.correct, s.total, s.submitted_at, s.graded_at
		 FROM exam_sessions s
		 JOIN exams e ON e.id = s.exam_id
		 WHERE s.submitted = false AND e.end_time < $1
		 ORDER BY e.end_time ASC
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Leaderboard lists submitted sessions by score, earlier submission first
// on ties. Rank is left for the caller to assign.
func (r *ExamSessionRepository) Leaderboard(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.user_id, u.name, s.score, s.submitted_at
		 FROM exam_sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.exam_id = $1 AND s.submitted = true AND s.score IS NOT NULL
		 ORDER BY s.score DESC, s.submitted_at ASC
		 LIMIT $2`, examID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Score, &e.SubmittedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
