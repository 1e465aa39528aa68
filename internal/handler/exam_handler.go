package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/funmath/funmath-backend/internal/middleware"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/funmath/funmath-backend/internal/response"
	"github.com/funmath/funmath-backend/internal/service"
	"github.com/funmath/funmath-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExamManager is the exam surface used by ExamHandler.
type ExamManager interface {
	Create(ctx context.Context, actor service.Actor, req *model.CreateExamRequest) (*model.Exam, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	List(ctx context.Context, actor service.Actor, f repository.ListFilter, page, perPage int) ([]model.Exam, int, error)
	Update(ctx context.Context, actor service.Actor, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error)
	Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error
	Moderate(ctx context.Context, id uuid.UUID, status model.ExamStatus) (*model.Exam, error)
	LearnerExam(ctx context.Context, id uuid.UUID) (*model.LearnerExam, error)
}

// ExamHandler handles exam authoring and moderation endpoints.
type ExamHandler struct {
	exams ExamManager
	log   zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams ExamManager, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{exams: exams, log: log.With().Str("component", "exam_handler").Logger()}
}

// ListExams godoc
// GET /api/v1/exams?page=&per_page=&status=&subject=&mine=
// Learners only see approved exams.
func (h *ExamHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	filter := repository.ListFilter{
		Status:  model.ExamStatus(c.Query("status")),
		Subject: c.Query("subject"),
	}
	if c.Query("mine") == "true" {
		filter.AuthorID = claims.UserID
	}

	exams, total, err := h.exams.List(c.Request.Context(), claims.Actor(), filter, page, perPage)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, response.NewPagination(page, perPage, total))
}

// CreateExam godoc
// POST /api/v1/exams
// Creates an exam awaiting moderation.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), claims.Actor(), &req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/exams/:id
// Authors and admins get the full record; learners get the payload
// without answer keys plus the server clock.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if claims.Role == model.RoleLearner {
		le, err := h.exams.LearnerExam(c.Request.Context(), id)
		if err != nil {
			failService(c, h.log, err)
			return
		}
		response.Success(c, http.StatusOK, le)
		return
	}

	exam, err := h.exams.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/exams/:id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Update(c.Request.Context(), claims.Actor(), id, (*model.UpdateExamRequest)(&req))
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/exams/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.exams.Delete(c.Request.Context(), claims.Actor(), id); err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// ModerateExam godoc
// POST /api/v1/exams/:id/moderate
func (h *ExamHandler) ModerateExam(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.ModerateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Moderate(c.Request.Context(), id, model.ExamStatus(req.Status))
	if err != nil {
		failService(c, h.log, err)
		return
	}
	h.log.Info().Str("exam_id", id.String()).Str("status", req.Status).Msg("Exam moderated")
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
