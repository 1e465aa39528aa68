package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/grading"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/funmath/funmath-backend/internal/window"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExamSource resolves an approved exam with its answer keys.
type ExamSource interface {
	ApprovedExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// ExamSessionService is the server of record for learner attempts.
type ExamSessionService struct {
	sessions SessionStore
	exams    ExamSource
	grader   grading.Grader
	rdb      *redis.Client
	grace    time.Duration
	lockTTL  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessions SessionStore,
	exams ExamSource,
	grader grading.Grader,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessions: sessions,
		exams:    exams,
		grader:   grader,
		rdb:      rdb,
		grace:    cfg.DeadlineGrace,
		lockTTL:  cfg.SubmitLockTTL,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		now:      time.Now,
	}
}

// Start opens the learner's session, or returns the existing one. New
// sessions can only be opened inside the exam window.
func (s *ExamSessionService) Start(ctx context.Context, examID uuid.UUID, userID int64) (*model.ExamSession, error) {
	exam, err := s.exams.ApprovedExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessions.GetByExamAndUser(ctx, examID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	if err := windowError(exam.Window(s.now())); err != nil {
		return nil, err
	}

	sess := &model.ExamSession{ExamID: examID, UserID: userID, Answers: model.Answers{}}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Concurrent start from another device or tab.
			return s.sessions.GetByExamAndUser(ctx, examID, userID)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.publish(ctx, model.SessionEvent{Type: model.EventSessionStarted, ExamID: examID, UserID: userID})
	return sess, nil
}

func windowError(st window.Status) error {
	switch st {
	case window.Upcoming:
		return ErrExamUpcoming
	case window.Closed:
		return ErrExamClosed
	}
	return nil
}

// SaveProgress merges partial answers into the learner's saved progress.
// The Redis hash is the hot copy; PG is written behind by the autosave worker.
func (s *ExamSessionService) SaveProgress(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers) error {
	exam, err := s.exams.ApprovedExam(ctx, examID)
	if err != nil {
		return err
	}
	if err := s.requireOpenSession(ctx, examID, userID); err != nil {
		return err
	}
	if exam.Window(s.now()) == window.Closed {
		return ErrExamClosed
	}
	if len(answers) == 0 {
		return nil
	}

	valid := questionIDs(exam)
	fields := make(map[string]any, len(answers))
	clean := make(model.Answers, len(answers))
	for qid, ans := range answers {
		if _, ok := valid[qid]; !ok {
			continue
		}
		fields[qid] = ans
		clean[qid] = ans
	}
	if len(clean) == 0 {
		return nil
	}

	job, err := json.Marshal(model.PersistAnswersJob{ExamID: examID, UserID: userID, Answers: clean, QueuedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, config.CacheKey.SessionAnswersKey(examID.String(), userID), fields)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *ExamSessionService) requireOpenSession(ctx context.Context, examID uuid.UUID, userID int64) error {
	sess, err := s.sessions.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotStarted
		}
		return fmt.Errorf("get session: %w", err)
	}
	if sess.Submitted {
		return ErrSessionSubmitted
	}
	return nil
}

// GetProgress returns saved progress: the Redis hash overlaid on what PG holds.
func (s *ExamSessionService) GetProgress(ctx context.Context, examID uuid.UUID, userID int64) (model.Answers, error) {
	sess, err := s.sessions.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotStarted
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s.savedProgress(ctx, sess)
}

func (s *ExamSessionService) savedProgress(ctx context.Context, sess *model.ExamSession) (model.Answers, error) {
	merged := sess.Answers.Clone()
	if sess.Submitted {
		return merged, nil
	}
	hot, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sess.ExamID.String(), sess.UserID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	for qid, ans := range hot {
		merged[qid] = ans
	}
	return merged, nil
}

// Submit grades and records the learner's final answers. Submitting twice
// returns the stored result without regrading. A nil answers map, or a
// submission arriving past the grace period, grades the saved progress.
func (s *ExamSessionService) Submit(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers, reason model.SubmitReason) (*model.SubmitResult, error) {
	log := s.log.With().Str("exam_id", examID.String()).Int64("user_id", userID).Logger()

	sess, err := s.sessions.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotStarted
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Submitted {
		return sess.Result(), nil
	}

	lockKey := config.CacheKey.SubmitLockKey(examID.String(), userID)
	acquired, err := s.rdb.SetNX(ctx, lockKey, s.now().Unix(), s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !acquired {
		return s.storedResult(ctx, examID, userID, ErrSubmissionInProgress)
	}
	defer s.rdb.Del(context.WithoutCancel(ctx), lockKey)

	// Another submit may have completed between the first read and the lock.
	if sess, err = s.sessions.GetByExamAndUser(ctx, examID, userID); err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if sess.Submitted {
		return sess.Result(), nil
	}

	exam, err := s.exams.ApprovedExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	late := now.After(exam.EndTime.Add(s.grace))
	if answers == nil || late {
		if late && answers != nil {
			log.Warn().Time("end_time", exam.EndTime).Msg("Submission past grace period, grading saved progress")
		}
		if answers, err = s.savedProgress(ctx, sess); err != nil {
			return nil, err
		}
	}

	sheet := fillSheet(exam, answers)
	graded, err := s.grader.Grade(ctx, exam.Questions, sheet)
	if err != nil {
		return nil, fmt.Errorf("grade: %w", err)
	}

	// Postgres keeps microseconds; the response must match what a resubmit reads back.
	submittedAt := now.UTC().Truncate(time.Microsecond)
	gradedAt := s.now().UTC().Truncate(time.Microsecond)
	won, err := s.sessions.Complete(ctx, examID, userID, repository.Completion{
		Answers:     sheet,
		Reason:      reason,
		Score:       graded.Score,
		Correct:     graded.Correct,
		Total:       graded.Total,
		SubmittedAt: submittedAt,
		GradedAt:    gradedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if !won {
		return s.storedResult(ctx, examID, userID, ErrSubmissionInProgress)
	}

	result := &model.SubmitResult{
		ExamID:      examID,
		UserID:      userID,
		Score:       graded.Score,
		Correct:     graded.Correct,
		Total:       graded.Total,
		Reason:      reason,
		SubmittedAt: submittedAt,
		GradedAt:    gradedAt,
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.SessionAnswersKey(examID.String(), userID))
	pipe.Del(ctx, config.CacheKey.LeaderboardKey(examID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clear session cache after submit")
	}
	s.publish(ctx, model.SessionEvent{Type: model.EventSessionSubmitted, ExamID: examID, UserID: userID, Score: graded.Score})

	log.Info().Float64("score", graded.Score).Str("reason", string(reason)).Msg("Session submitted")
	return result, nil
}

// storedResult re-reads a session after losing a submit race.
func (s *ExamSessionService) storedResult(ctx context.Context, examID uuid.UUID, userID int64, pending error) (*model.SubmitResult, error) {
	sess, err := s.sessions.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if r := sess.Result(); r != nil {
		return r, nil
	}
	return nil, pending
}

// fillSheet keeps only the exam's questions and fills unanswered ones with "".
func fillSheet(exam *model.Exam, answers model.Answers) model.Answers {
	sheet := make(model.Answers, len(exam.Questions))
	for _, q := range exam.Questions {
		sheet[q.ID.String()] = answers[q.ID.String()]
	}
	return sheet
}

func questionIDs(exam *model.Exam) map[string]struct{} {
	ids := make(map[string]struct{}, len(exam.Questions))
	for _, q := range exam.Questions {
		ids[q.ID.String()] = struct{}{}
	}
	return ids
}

// GetResult returns the stored grading result.
func (s *ExamSessionService) GetResult(ctx context.Context, examID uuid.UUID, userID int64) (*model.SubmitResult, error) {
	sess, err := s.sessions.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotAvailable
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if r := sess.Result(); r != nil {
		return r, nil
	}
	return nil, ErrResultNotAvailable
}

// ForceSubmitExpired submits every open session whose exam ended more than
// the grace period ago. Returns how many sessions were submitted.
func (s *ExamSessionService) ForceSubmitExpired(ctx context.Context, batch int) (int, error) {
	expired, err := s.sessions.ListExpiredOpen(ctx, s.now().Add(-s.grace), batch)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	submitted := 0
	for _, sess := range expired {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		_, err := s.Submit(ctx, sess.ExamID, sess.UserID, nil, model.SubmitReasonSweeper)
		if err != nil {
			s.log.Error().Err(err).
				Str("exam_id", sess.ExamID.String()).
				Int64("user_id", sess.UserID).
				Msg("Forced submission failed")
			continue
		}
		submitted++
	}
	return submitted, nil
}

func (s *ExamSessionService) publish(ctx context.Context, ev model.SessionEvent) {
	ev.At = s.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamEventsChannel(ev.ExamID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("event", ev.Type).Msg("Failed to publish session event")
	}
}
