package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const examColumns = `id, title, description, education_level, subject, duration_minutes,
	start_time, end_time, difficulty, status, author_id, created_at, updated_at`

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row, e *model.Exam) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.EducationLevel, &e.Subject, &e.DurationMinutes,
		&e.StartTime, &e.EndTime, &e.Difficulty, &e.Status, &e.AuthorID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID retrieves an exam with its ordered questions.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	row := r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id)
	if err := scanExam(row, e); err != nil {
		return nil, notFound(err)
	}

	questions, err := r.listQuestions(ctx, r.pool, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *ExamRepository) listQuestions(ctx context.Context, q querier, examID uuid.UUID) ([]model.Question, error) {
	rows, err := q.Query(ctx,
		`SELECT id, exam_id, text, type, options, correct_answer, images, order_num
		 FROM questions WHERE exam_id = $1 ORDER BY order_num ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Type, &q.Options, &q.CorrectAnswer, &q.Images, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Status   model.ExamStatus
	AuthorID int64
	Subject  string
}

// List returns exams (without questions) matching the filter, newest first.
func (r *ExamRepository) List(ctx context.Context, f ListFilter, limit, offset int) ([]model.Exam, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.AuthorID > 0 {
		args = append(args, f.AuthorID)
		where += ` AND author_id = $` + strconv.Itoa(len(args))
	}
	if f.Subject != "" {
		args = append(args, f.Subject)
		where += ` AND subject = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + ` FROM exams` + where +
		` ORDER BY start_time DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListApproved returns every approved exam with questions, for cache prewarm.
func (r *ExamRepository) ListApproved(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = $1 AND end_time > NOW()`, model.ExamStatusApproved)
	if err != nil {
		return nil, err
	}
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			rows.Close()
			return nil, err
		}
		exams = append(exams, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range exams {
		qs, err := r.listQuestions(ctx, r.pool, exams[i].ID)
		if err != nil {
			return nil, err
		}
		exams[i].Questions = qs
	}
	return exams, nil
}

// Create inserts an exam and its questions in one transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exams (title, description, education_level, subject, duration_minutes,
			                    start_time, end_time, difficulty, status, author_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id, created_at, updated_at`,
			e.Title, e.Description, e.EducationLevel, e.Subject, e.DurationMinutes,
			e.StartTime, e.EndTime, e.Difficulty, e.Status, e.AuthorID,
		).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		return insertQuestions(ctx, tx, e)
	})
}

// Update replaces an exam's attributes, status and whole question set.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE exams
			 SET title = $1, description = $2, education_level = $3, subject = $4,
			     duration_minutes = $5, start_time = $6, end_time = $7, difficulty = $8,
			     status = $9, updated_at = NOW()
			 WHERE id = $10
			 RETURNING author_id, created_at, updated_at`,
			e.Title, e.Description, e.EducationLevel, e.Subject, e.DurationMinutes,
			e.StartTime, e.EndTime, e.Difficulty, e.Status, e.ID,
		).Scan(&e.AuthorID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return notFound(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, e.ID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		return insertQuestions(ctx, tx, e)
	})
}

func insertQuestions(ctx context.Context, tx pgx.Tx, e *model.Exam) error {
	for i := range e.Questions {
		q := &e.Questions[i]
		q.ExamID = e.ID
		if q.Options == nil {
			q.Options = []string{}
		}
		if q.Images == nil {
			q.Images = []string{}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, text, type, options, correct_answer, images, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			q.ExamID, q.Text, q.Type, q.Options, q.CorrectAnswer, q.Images, q.OrderNum,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.OrderNum, err)
		}
	}
	return nil
}

// UpdateStatus moves an exam from one moderation status to another.
// Returns false when the exam was not in the expected status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes an exam; questions cascade.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
