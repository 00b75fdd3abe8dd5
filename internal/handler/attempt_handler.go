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

// AttemptHandler handles test-taker endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/exams/:exam_id/attempts
// Starts the caller's next attempt, or resumes the open one.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	client := service.ClientInfo{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	res, err := h.attemptService.StartAttempt(c.Request.Context(), examID, claims.UserID, client)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if res.IsResume {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
// Returns the attempt with its saved answers and remaining time, for page reloads.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	view, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// FetchQuestion godoc
// GET /api/v1/attempts/:attempt_id/questions/:question_id
func (h *AttemptHandler) FetchQuestion(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.attemptService.FetchQuestion(c.Request.Context(), attemptID, claims.UserID, questionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// PutAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers/:question_id
// Saves or clears the response to one question.
func (h *AttemptHandler) PutAnswer(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.PutAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ans, err := h.attemptService.PutAnswer(c.Request.Context(), attemptID, claims.UserID, questionID, req)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, ans)
}

// SubmitAttempt godoc
// POST /api/v1/attempts/:attempt_id/submit
// Grades the attempt. Repeated calls return the same result.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
func (h *AttemptHandler) GetResult(c *gin.Context) {
	claims, attemptID, ok := h.attemptParams(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *AttemptHandler) attemptParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, attemptID, true
}
