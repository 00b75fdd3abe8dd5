package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exampool/internal/model"
)

// Storage errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrOpenAttemptExists = errors.New("an open attempt already exists for this user and exam")
)

// Store is the transactional storage the attempt lifecycle runs on.
// Implementations must make InTx atomic: either every write inside fn is
// visible afterwards or none is.
type Store interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	CreateExam(ctx context.Context, exam *model.Exam) error
	ListPublishedExams(ctx context.Context) ([]model.Exam, error)

	// AddQuestions inserts questions and links them to examID.
	AddQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error
	// ListPoolQuestions returns the active questions linked to examID.
	ListPoolQuestions(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)

	// FindOpenAttempt returns the non-completed attempt of userID on examID.
	FindOpenAttempt(ctx context.Context, userID string, examID uuid.UUID) (*model.Attempt, error)
	CountAttempts(ctx context.Context, userID string, examID uuid.UUID) (int, error)
	// CreateAttempt fails with ErrOpenAttemptExists when another open attempt
	// or the same attempt number already exists.
	CreateAttempt(ctx context.Context, a *model.Attempt) error
	GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	// LockAttempt re-reads the attempt and blocks concurrent submission until
	// the surrounding transaction ends.
	LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	// MarkSubmitted moves an attempt from active to submitted when its version
	// still equals version. It reports whether this call made the transition.
	MarkSubmitted(ctx context.Context, id uuid.UUID, version int, submittedAt time.Time, spentSeconds int, auto bool) (bool, error)

	UpsertAnswer(ctx context.Context, a *model.Answer) error
	GetAnswer(ctx context.Context, attemptID, questionID uuid.UUID) (*model.Answer, error)
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)

	GetResult(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
	// InsertResult stores r unless a result for the attempt exists. It
	// reports whether r was inserted.
	InsertResult(ctx context.Context, r *model.Result) (bool, error)
	// ExamStanding counts stored results for examID and how many of them
	// scored strictly above score.
	ExamStanding(ctx context.Context, examID uuid.UUID, score decimal.Decimal) (existing, higher int, err error)

	// InTx runs fn against a transactional view of the store.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
