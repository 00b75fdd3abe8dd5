package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/response"
	"github.com/stemsi/exampool/internal/service"
)

// errorCode maps a service error onto an HTTP status and API error code.
func errorCode(err error) (int, response.ErrCode) {
	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound, response.ErrNotFound

	case service.KindForbidden:
		if errors.Is(err, service.ErrQuestionNotInAttempt) {
			return http.StatusForbidden, response.ErrQuestionNotInAttempt
		}
		return http.StatusForbidden, response.ErrForbidden

	case service.KindConflict:
		switch {
		case errors.Is(err, service.ErrAttemptAlreadySubmitted):
			return http.StatusConflict, response.ErrAttemptSubmitted
		case errors.Is(err, service.ErrAttemptLimitReached):
			return http.StatusConflict, response.ErrAttemptLimitReached
		case errors.Is(err, service.ErrResultNotReady):
			return http.StatusConflict, response.ErrResultNotReady
		}
		return http.StatusConflict, response.ErrConflict

	case service.KindPreconditionFailed:
		if errors.Is(err, service.ErrExamUnavailable) {
			return http.StatusPreconditionFailed, response.ErrExamNotAvailable
		}
		return http.StatusPreconditionFailed, response.ErrPoolNotReady

	case service.KindExpired:
		return http.StatusGone, response.ErrAttemptExpired

	case service.KindInvalid:
		return http.StatusBadRequest, response.ErrInvalidConfig
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// failWithError writes the error envelope for err. Internal errors are logged
// and never leak their message.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorCode(err)

	var poolErr *service.PoolNotReadyError
	var cfgErr *model.ConfigError
	switch {
	case errors.As(err, &poolErr):
		response.FailWithDetails(c, status, code, poolErr.Errors)
	case errors.As(err, &cfgErr):
		response.FailWithFields(c, status, code, cfgErr.Fields)
	default:
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
			_ = c.Error(err)
		}
		response.Fail(c, status, code)
	}
}
