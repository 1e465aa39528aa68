package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/funmath/funmath-backend/internal/window"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExamService handles exam authoring, moderation and the learner cache.
type ExamService struct {
	exams    ExamStore
	sessions SessionStore
	rdb      *redis.Client
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, sessions SessionStore, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:    exams,
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
		now:      time.Now,
	}
}

// Create stores a new exam awaiting moderation.
func (s *ExamService) Create(ctx context.Context, actor Actor, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := req.ToExam()
	exam.AuthorID = actor.UserID
	exam.Status = model.ExamStatusPending

	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// Get returns the full exam record, answer keys included.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// List returns a page of exams. Learners only ever see approved exams.
func (s *ExamService) List(ctx context.Context, actor Actor, f repository.ListFilter, page, perPage int) ([]model.Exam, int, error) {
	if actor.Role == model.RoleLearner {
		f.Status = model.ExamStatusApproved
	}
	exams, total, err := s.exams.List(ctx, f, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, total, nil
}

// Update replaces an exam while nobody has attempted it. Edits send the
// exam back to moderation.
func (s *ExamService) Update(ctx context.Context, actor Actor, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	exam := (*model.CreateExamRequest)(req).ToExam()
	exam.ID = current.ID
	exam.Status = model.ExamStatusPending
	if err := s.exams.Update(ctx, exam); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}

	s.evictCache(ctx, id)
	return exam, nil
}

// Delete removes an exam while nobody has attempted it.
func (s *ExamService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExamNotFound
		}
		return fmt.Errorf("delete exam: %w", err)
	}
	s.evictCache(ctx, id)
	return nil
}

func (s *ExamService) editable(ctx context.Context, actor Actor, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && exam.AuthorID != actor.UserID {
		return nil, ErrNotExamAuthor
	}
	attempts, err := s.sessions.CountByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if attempts > 0 {
		return nil, ErrExamLocked
	}
	return exam, nil
}

// Moderate approves or rejects a pending exam. Approval warms the cache.
func (s *ExamService) Moderate(ctx context.Context, id uuid.UUID, status model.ExamStatus) (*model.Exam, error) {
	ok, err := s.exams.UpdateStatus(ctx, id, model.ExamStatusPending, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidStatusTransition
	}

	if status == model.ExamStatusApproved {
		if err := s.WarmCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm exam cache")
		}
	}
	return exam, nil
}

// PrewarmApproved loads every approved, not yet ended exam into Redis.
func (s *ExamService) PrewarmApproved(ctx context.Context) (int, error) {
	exams, err := s.exams.ListApproved(ctx)
	if err != nil {
		return 0, fmt.Errorf("list approved: %w", err)
	}
	for i := range exams {
		if err := s.WarmCache(ctx, &exams[i]); err != nil {
			return i, err
		}
	}
	return len(exams), nil
}

// WarmCache stores the learner payload and the grading copy of an exam.
func (s *ExamService) WarmCache(ctx context.Context, exam *model.Exam) error {
	ttl := exam.EndTime.Add(time.Hour).Sub(s.now())
	if ttl < time.Minute {
		ttl = time.Minute
	}

	payload, err := json.Marshal(exam.Payload())
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	full, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}

	id := exam.ID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(id), payload, ttl)
	pipe.Set(ctx, config.CacheKey.ExamAnswerKey(id), full, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache exam: %w", err)
	}
	return nil
}

func (s *ExamService) evictCache(ctx context.Context, id uuid.UUID) {
	key := id.String()
	if err := s.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(key), config.CacheKey.ExamAnswerKey(key)).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", key).Msg("Failed to evict exam cache")
	}
}

// ApprovedExam returns the approved exam with answer keys, cache first.
func (s *ExamService) ApprovedExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamAnswerKey(id.String())).Bytes()
	if err == nil {
		var exam model.Exam
		if jsonErr := json.Unmarshal(raw, &exam); jsonErr == nil {
			return &exam, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache read failed, using database")
	}

	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusApproved {
		return nil, ErrExamNotApproved
	}
	if err := s.WarmCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm exam cache")
	}
	return exam, nil
}

// LearnerExam returns the payload a learner may see, stamped with the
// server clock and the current window.
func (s *ExamService) LearnerExam(ctx context.Context, id uuid.UUID) (*model.LearnerExam, error) {
	var payload model.ExamPayload

	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(id.String())).Bytes()
	if err != nil || json.Unmarshal(raw, &payload) != nil {
		exam, err := s.ApprovedExam(ctx, id)
		if err != nil {
			return nil, err
		}
		payload = exam.Payload()
	}

	now := s.now().UTC()
	return &model.LearnerExam{
		Exam:       payload,
		ServerTime: now,
		Window:     window.Classify(now, payload.StartTime, payload.EndTime),
	}, nil
}

