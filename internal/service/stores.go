package service

import (
	"context"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/google/uuid"
)

// UserStore is the user persistence used by AuthService.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

// ExamStore is the exam persistence used by ExamService.
type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	List(ctx context.Context, f repository.ListFilter, limit, offset int) ([]model.Exam, int, error)
	ListApproved(ctx context.Context) ([]model.Exam, error)
	Update(ctx context.Context, e *model.Exam) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionStore is the exam session persistence.
type SessionStore interface {
	GetByExamAndUser(ctx context.Context, examID uuid.UUID, userID int64) (*model.ExamSession, error)
	GetAnswers(ctx context.Context, examID uuid.UUID, userID int64) (model.Answers, error)
	Create(ctx context.Context, s *model.ExamSession) error
	SaveAnswers(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers) error
	Complete(ctx context.Context, examID uuid.UUID, userID int64, c repository.Completion) (bool, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
	ListExpiredOpen(ctx context.Context, cutoff time.Time, limit int) ([]model.ExamSession, error)
	Leaderboard(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error)
}

var (
	_ UserStore    = (*repository.UserRepository)(nil)
	_ ExamStore    = (*repository.ExamRepository)(nil)
	_ SessionStore = (*repository.ExamSessionRepository)(nil)
)
