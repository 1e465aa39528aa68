package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/grading"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type sessionKey struct {
	exam uuid.UUID
	user int64
}

type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[sessionKey]*model.ExamSession
	saved     map[sessionKey]model.Answers
	completes int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[sessionKey]*model.ExamSession{},
		saved:    map[sessionKey]model.Answers{},
	}
}

func (f *fakeSessionStore) copyOf(k sessionKey) *model.ExamSession {
	s := *f.sessions[k]
	s.Answers = f.saved[k].Clone()
	return &s
}

func (f *fakeSessionStore) GetByExamAndUser(_ context.Context, examID uuid.UUID, userID int64) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := sessionKey{examID, userID}
	if _, ok := f.sessions[k]; !ok {
		return nil, repository.ErrNotFound
	}
	return f.copyOf(k), nil
}

func (f *fakeSessionStore) GetAnswers(_ context.Context, examID uuid.UUID, userID int64) (model.Answers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[sessionKey{examID, userID}].Clone(), nil
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := sessionKey{s.ExamID, s.UserID}
	if _, ok := f.sessions[k]; ok {
		return repository.ErrConflict
	}
	s.ID = uuid.New()
	s.StartedAt = time.Now()
	s.LastSavedAt = s.StartedAt
	stored := *s
	f.sessions[k] = &stored
	f.saved[k] = model.Answers{}
	return nil
}

func (f *fakeSessionStore) SaveAnswers(_ context.Context, examID uuid.UUID, userID int64, answers model.Answers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := sessionKey{examID, userID}
	if s, ok := f.sessions[k]; !ok || s.Submitted {
		return nil
	}
	for q, a := range answers {
		f.saved[k][q] = a
	}
	return nil
}

func (f *fakeSessionStore) Complete(_ context.Context, examID uuid.UUID, userID int64, c repository.Completion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := sessionKey{examID, userID}
	s, ok := f.sessions[k]
	if !ok || s.Submitted {
		return false, nil
	}
	f.completes++
	score, correct, total := c.Score, c.Correct, c.Total
	submittedAt, gradedAt := c.SubmittedAt, c.GradedAt
	s.Submitted = true
	s.SubmitReason = c.Reason
	s.Score, s.Correct, s.Total = &score, &correct, &total
	s.SubmittedAt, s.GradedAt = &submittedAt, &gradedAt
	f.saved[k] = c.Answers.Clone()
	return true, nil
}

func (f *fakeSessionStore) CountByExam(_ context.Context, examID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.sessions {
		if k.exam == examID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionStore) ListExpiredOpen(context.Context, time.Time, int) ([]model.ExamSession, error) {
	return nil, nil
}

func (f *fakeSessionStore) Leaderboard(_ context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LeaderboardEntry
	for k, s := range f.sessions {
		if k.exam != examID || !s.Submitted {
			continue
		}
		out = append(out, model.LeaderboardEntry{
			UserID:      s.UserID,
			Name:        fmt.Sprintf("learner-%d", s.UserID),
			Score:       *s.Score,
			SubmittedAt: *s.SubmittedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// expiredStore answers ListExpiredOpen from a fixed set of exams.
type expiredStore struct {
	*fakeSessionStore
	exams map[uuid.UUID]*model.Exam
}

func (f *expiredStore) ListExpiredOpen(_ context.Context, cutoff time.Time, limit int) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamSession
	for k, s := range f.sessions {
		if s.Submitted {
			continue
		}
		if e, ok := f.exams[k.exam]; ok && e.EndTime.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeExamSource struct {
	exams map[uuid.UUID]*model.Exam
}

func (f *fakeExamSource) ApprovedExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, ErrExamNotFound
	}
	if e.Status != model.ExamStatusApproved {
		return nil, ErrExamNotApproved
	}
	return e, nil
}

type countingGrader struct {
	grading.Grader
	calls  atomic.Int32
	sheets []model.Answers
	mu     sync.Mutex
}

func (g *countingGrader) Grade(ctx context.Context, qs []model.Question, a model.Answers) (grading.Result, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.sheets = append(g.sheets, a.Clone())
	g.mu.Unlock()
	return g.Grader.Grade(ctx, qs, a)
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      "test-secret",
		JWTExpiry:      time.Hour,
		BcryptCost:     4,
		LeaderboardTTL: time.Minute,
		SubmitLockTTL:  10 * time.Second,
		DeadlineGrace:  15 * time.Second,
	}
}

// sampleExam is open from base to base+1h with two auto-graded questions
// and one essay.
func sampleExam(base time.Time) *model.Exam {
	id := uuid.New()
	return &model.Exam{
		ID:              id,
		Title:           "Fractions",
		EducationLevel:  "grade_5",
		Subject:         "math",
		DurationMinutes: 60,
		StartTime:       base,
		EndTime:         base.Add(time.Hour),
		Difficulty:      model.DifficultyEasy,
		Status:          model.ExamStatusApproved,
		AuthorID:        99,
		Questions: []model.Question{
			{ID: uuid.New(), ExamID: id, Text: "1/2+1/2", Type: model.QuestionTypeMultipleChoice, Options: []string{"1", "2"}, CorrectAnswer: "1", OrderNum: 1},
			{ID: uuid.New(), ExamID: id, Text: "0.5 = 1/2", Type: model.QuestionTypeTrueFalse, CorrectAnswer: "true", OrderNum: 2},
			{ID: uuid.New(), ExamID: id, Text: "Explain", Type: model.QuestionTypeEssay, OrderNum: 3},
		},
	}
}

type sessionFixture struct {
	svc    *ExamSessionService
	store  *fakeSessionStore
	grader *countingGrader
	rdb    *redis.Client
	mr     *miniredis.Miniredis
	exam   *model.Exam
	now    time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	exam := sampleExam(base)
	rdb, mr := newTestRedis(t)
	store := newFakeSessionStore()
	grader := &countingGrader{Grader: grading.NewGrader()}

	f := &sessionFixture{
		store:  store,
		grader: grader,
		rdb:    rdb,
		mr:     mr,
		exam:   exam,
		now:    base.Add(10 * time.Minute),
	}
	f.svc = NewExamSessionService(store, &fakeExamSource{exams: map[uuid.UUID]*model.Exam{exam.ID: exam}},
		grader, rdb, testConfig(), zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *sessionFixture) qid(i int) string {
	return f.exam.Questions[i].ID.String()
}

func completionOf(score float64) repository.Completion {
	return repository.Completion{
		Answers:     model.Answers{},
		Reason:      model.SubmitReasonManual,
		Score:       score,
		SubmittedAt: time.Date(2026, 5, 4, 9, 1, 0, 0, time.UTC),
	}
}
