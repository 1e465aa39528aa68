package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/funmath/funmath-backend/internal/middleware"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/funmath/funmath-backend/internal/response"
	"github.com/funmath/funmath-backend/internal/service"
	"github.com/funmath/funmath-backend/internal/validator"
	"github.com/funmath/funmath-backend/internal/window"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type stubSessions struct {
	startErr  error
	submitRes *model.SubmitResult
	submitted model.Answers
}

func (s *stubSessions) Start(_ context.Context, examID uuid.UUID, userID int64) (*model.ExamSession, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &model.ExamSession{ID: uuid.New(), ExamID: examID, UserID: userID}, nil
}

func (s *stubSessions) SaveProgress(context.Context, uuid.UUID, int64, model.Answers) error {
	return service.ErrSessionSubmitted
}

func (s *stubSessions) GetProgress(context.Context, uuid.UUID, int64) (model.Answers, error) {
	return model.Answers{"q1": "4"}, nil
}

func (s *stubSessions) Submit(_ context.Context, _ uuid.UUID, _ int64, answers model.Answers, _ model.SubmitReason) (*model.SubmitResult, error) {
	s.submitted = answers
	return s.submitRes, nil
}

func (s *stubSessions) GetResult(context.Context, uuid.UUID, int64) (*model.SubmitResult, error) {
	return nil, service.ErrResultNotAvailable
}

type stubExams struct {
	created *model.CreateExamRequest
}

func (s *stubExams) Create(_ context.Context, actor service.Actor, req *model.CreateExamRequest) (*model.Exam, error) {
	s.created = req
	e := req.ToExam()
	e.AuthorID = actor.UserID
	e.Status = model.ExamStatusPending
	return e, nil
}
func (s *stubExams) Get(context.Context, uuid.UUID) (*model.Exam, error) {
	return nil, service.ErrExamNotFound
}
func (s *stubExams) List(context.Context, service.Actor, repository.ListFilter, int, int) ([]model.Exam, int, error) {
	return []model.Exam{}, 0, nil
}
func (s *stubExams) Update(context.Context, service.Actor, uuid.UUID, *model.UpdateExamRequest) (*model.Exam, error) {
	return nil, service.ErrExamLocked
}
func (s *stubExams) Delete(context.Context, service.Actor, uuid.UUID) error {
	return service.ErrExamLocked
}
func (s *stubExams) Moderate(context.Context, uuid.UUID, model.ExamStatus) (*model.Exam, error) {
	return nil, service.ErrInvalidStatusTransition
}
func (s *stubExams) LearnerExam(_ context.Context, id uuid.UUID) (*model.LearnerExam, error) {
	return &model.LearnerExam{Exam: model.ExamPayload{ExamID: id}, ServerTime: time.Now().UTC(), Window: window.Open}, nil
}

func withClaims(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: 7, Role: role})
		c.Next()
	}
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func learnerRouter(sessions SessionManager) *gin.Engine {
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), withClaims(model.RoleLearner))
	h := NewLearnerHandler(&stubExams{}, sessions, zerolog.Nop())
	r.GET("/learner/exams/:id", h.GetExam)
	r.POST("/learner/exams/:id/start", h.StartSession)
	r.PUT("/learner/exams/:id/progress", h.SaveProgress)
	r.POST("/learner/exams/:id/submit", h.Submit)
	r.GET("/learner/exams/:id/result", h.GetResult)
	return r
}

func TestStartMapsWindowErrors(t *testing.T) {
	cases := map[error]response.ErrCode{
		service.ErrExamUpcoming:    response.ErrExamUpcoming,
		service.ErrExamClosed:      response.ErrExamClosed,
		service.ErrExamNotApproved: response.ErrExamNotApproved,
		service.ErrExamNotFound:    response.ErrNotFound,
	}
	for svcErr, code := range cases {
		r := learnerRouter(&stubSessions{startErr: svcErr})
		w, env := do(t, r, http.MethodPost, "/learner/exams/"+uuid.NewString()+"/start", nil)

		assert.Equal(t, response.StatusOf(code), w.Code, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, code, env.Error.Code)
		assert.NotEmpty(t, env.Metadata.RequestID)
	}
}

func TestInvalidExamID(t *testing.T) {
	w, env := do(t, learnerRouter(&stubSessions{}), http.MethodGet, "/learner/exams/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, env.Error.Code)
}

func TestSubmitWithoutAnswersSendsEmptySheet(t *testing.T) {
	stub := &stubSessions{submitRes: &model.SubmitResult{Score: 0, Total: 3}}
	w, env := do(t, learnerRouter(stub), http.MethodPost, "/learner/exams/"+uuid.NewString()+"/submit", map[string]any{})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.Error)
	assert.NotNil(t, stub.submitted)
	assert.Empty(t, stub.submitted)
}

func TestProgressAfterSubmitRejected(t *testing.T) {
	w, env := do(t, learnerRouter(&stubSessions{}), http.MethodPut, "/learner/exams/"+uuid.NewString()+"/progress",
		map[string]any{"answers": map[string]string{"q": "1"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrSessionSubmitted, env.Error.Code)
}

func TestResultNotAvailable(t *testing.T) {
	w, env := do(t, learnerRouter(&stubSessions{}), http.MethodGet, "/learner/exams/"+uuid.NewString()+"/result", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrResultNotAvailable, env.Error.Code)
}

func examRouter(exams ExamManager) *gin.Engine {
	r := gin.New()
	r.Use(withClaims(model.RoleTeacher))
	h := NewExamHandler(exams, zerolog.Nop())
	r.POST("/exams", h.CreateExam)
	r.PUT("/exams/:id", h.UpdateExam)
	return r
}

func examBody(correct string) map[string]any {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return map[string]any{
		"title":            "Shapes",
		"education_level":  "grade_3",
		"subject":          "geometry",
		"duration_minutes": 20,
		"start_time":       start,
		"end_time":         start.Add(time.Hour),
		"difficulty":       "easy",
		"questions": []map[string]any{
			{"text": "Sides of a triangle?", "type": "multiple-choice", "options": []string{"3", "4"}, "correct_answer": correct},
		},
	}
}

func TestCreateExamValidatesChoiceAnswer(t *testing.T) {
	stub := &stubExams{}
	w, env := do(t, examRouter(stub), http.MethodPost, "/exams", examBody("5"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "questions[0].correct_answer")
	assert.Nil(t, stub.created)
}

func TestCreateExam(t *testing.T) {
	stub := &stubExams{}
	w, env := do(t, examRouter(stub), http.MethodPost, "/exams", examBody("3"))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, env.Error)
	require.NotNil(t, stub.created)
	assert.Equal(t, "Shapes", stub.created.Title)
}

func TestUpdateLockedExam(t *testing.T) {
	w, env := do(t, examRouter(&stubExams{}), http.MethodPut, "/exams/"+uuid.NewString(), examBody("3"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrExamLocked, env.Error.Code)
}
