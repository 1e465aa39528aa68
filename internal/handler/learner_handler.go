package handler

import (
	"context"
	"net/http"

	"github.com/funmath/funmath-backend/internal/middleware"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/response"
	"github.com/funmath/funmath-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionManager is the learner attempt surface.
type SessionManager interface {
	Start(ctx context.Context, examID uuid.UUID, userID int64) (*model.ExamSession, error)
	SaveProgress(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers) error
	GetProgress(ctx context.Context, examID uuid.UUID, userID int64) (model.Answers, error)
	Submit(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers, reason model.SubmitReason) (*model.SubmitResult, error)
	GetResult(ctx context.Context, examID uuid.UUID, userID int64) (*model.SubmitResult, error)
}

// LearnerExamSource serves the learner-facing exam payload.
type LearnerExamSource interface {
	LearnerExam(ctx context.Context, id uuid.UUID) (*model.LearnerExam, error)
}

// LearnerHandler handles the learner's exam-taking endpoints.
type LearnerHandler struct {
	exams    LearnerExamSource
	sessions SessionManager
	log      zerolog.Logger
}

// NewLearnerHandler creates a new LearnerHandler.
func NewLearnerHandler(exams LearnerExamSource, sessions SessionManager, log zerolog.Logger) *LearnerHandler {
	return &LearnerHandler{
		exams:    exams,
		sessions: sessions,
		log:      log.With().Str("component", "learner_handler").Logger(),
	}
}

// learnerScope resolves the caller and exam id, writing an error if either is missing.
func learnerScope(c *gin.Context) (uuid.UUID, int64, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, 0, false
	}
	examID, ok := parseID(c, "id")
	if !ok {
		return uuid.Nil, 0, false
	}
	return examID, claims.UserID, true
}

// GetExam godoc
// GET /api/v1/learner/exams/:id
// Returns the exam payload, the server clock and the window classification.
func (h *LearnerHandler) GetExam(c *gin.Context) {
	examID, _, ok := learnerScope(c)
	if !ok {
		return
	}
	le, err := h.exams.LearnerExam(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, le)
}

// StartSession godoc
// POST /api/v1/learner/exams/:id/start
func (h *LearnerHandler) StartSession(c *gin.Context) {
	examID, userID, ok := learnerScope(c)
	if !ok {
		return
	}
	sess, err := h.sessions.Start(c.Request.Context(), examID, userID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// SaveProgress godoc
// PUT /api/v1/learner/exams/:id/progress
func (h *LearnerHandler) SaveProgress(c *gin.Context) {
	examID, userID, ok := learnerScope(c)
	if !ok {
		return
	}
	var req model.SaveProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.SaveProgress(c.Request.Context(), examID, userID, req.Answers); err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved", "count": len(req.Answers)})
}

// GetProgress godoc
// GET /api/v1/learner/exams/:id/progress
func (h *LearnerHandler) GetProgress(c *gin.Context) {
	examID, userID, ok := learnerScope(c)
	if !ok {
		return
	}
	answers, err := h.sessions.GetProgress(c.Request.Context(), examID, userID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"answers": answers})
}

// Submit godoc
// POST /api/v1/learner/exams/:id/submit
// Grades the final answers. Repeated submits return the stored result.
func (h *LearnerHandler) Submit(c *gin.Context) {
	examID, userID, ok := learnerScope(c)
	if !ok {
		return
	}
	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.Answers == nil {
		req.Answers = model.Answers{}
	}

	reason := model.SubmitReasonManual
	if c.Query("reason") == string(model.SubmitReasonTimeout) {
		reason = model.SubmitReasonTimeout
	}

	res, err := h.sessions.Submit(c.Request.Context(), examID, userID, req.Answers, reason)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GetResult godoc
// GET /api/v1/learner/exams/:id/result
func (h *LearnerHandler) GetResult(c *gin.Context) {
	examID, userID, ok := learnerScope(c)
	if !ok {
		return
	}
	res, err := h.sessions.GetResult(c.Request.Context(), examID, userID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
