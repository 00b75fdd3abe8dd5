package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/middleware"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/response"
	"github.com/stemsi/exampool/internal/service"
	"github.com/stemsi/exampool/internal/validator"
)

// ExamHandler handles exam administration endpoints.
type ExamHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Validates and stores a new exam configuration.
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

	exam := req.Exam()
	if err := h.examService.Create(c.Request.Context(), exam); err != nil {
		failWithError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("admin_id", claims.UserID).
		Msg("Exam created via API")
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// RefreshPool godoc
// POST /api/v1/admin/exams/:exam_id/refresh-pool
// Drops the cached question pool and reports the fresh one.
func (h *ExamHandler) RefreshPool(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.examService.RefreshPool(c.Request.Context(), examID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// ValidatePool godoc
// GET /api/v1/exams/:exam_id/validate
// Read-only diagnostic: can the exam's pool serve its configuration?
func (h *ExamHandler) ValidatePool(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.examService.ValidatePool(c.Request.Context(), examID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
