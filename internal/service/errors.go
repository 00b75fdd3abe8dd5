package service

import (
	"errors"
	"strings"

	"github.com/stemsi/exampool/internal/model"
)

// Domain errors.
var (
	ErrExamNotFound            = errors.New("exam not found")
	ErrExamUnavailable         = errors.New("exam is not open for attempts")
	ErrAttemptLimitReached     = errors.New("attempt limit reached")
	ErrAttemptConflict         = errors.New("another attempt was started concurrently")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotOwned         = errors.New("attempt belongs to another user")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptExpired          = errors.New("attempt time budget exceeded")
	ErrQuestionNotInAttempt    = errors.New("question is not part of this attempt")
	ErrResultNotReady          = errors.New("attempt has not been submitted")
)

// PoolNotReadyError lists every reason an exam's pool cannot serve a selection.
type PoolNotReadyError struct {
	Errors []string
}

func (e *PoolNotReadyError) Error() string {
	return "question pool not ready: " + strings.Join(e.Errors, "; ")
}

// Kind classifies an error for transports.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindForbidden
	KindConflict
	KindPreconditionFailed
	KindExpired
)

// KindOf maps err onto the error taxonomy.
func KindOf(err error) Kind {
	var poolErr *PoolNotReadyError
	var cfgErr *model.ConfigError

	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrExamNotFound), errors.Is(err, ErrAttemptNotFound):
		return KindNotFound
	case errors.Is(err, ErrAttemptNotOwned), errors.Is(err, ErrQuestionNotInAttempt):
		return KindForbidden
	case errors.Is(err, ErrAttemptAlreadySubmitted), errors.Is(err, ErrAttemptLimitReached),
		errors.Is(err, ErrAttemptConflict), errors.Is(err, ErrResultNotReady):
		return KindConflict
	case errors.Is(err, ErrExamUnavailable), errors.As(err, &poolErr):
		return KindPreconditionFailed
	case errors.Is(err, ErrAttemptExpired):
		return KindExpired
	case errors.As(err, &cfgErr):
		return KindInvalid
	}
	return KindInternal
}
