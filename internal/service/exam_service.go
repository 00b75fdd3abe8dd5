package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
)

// ExamService handles exam administration.
type ExamService struct {
	store repository.Store
	pools *PoolService
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(store repository.Store, pools *PoolService, log zerolog.Logger) *ExamService {
	return &ExamService{
		store: store,
		pools: pools,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.store.GetExam(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// Create validates and stores a new exam configuration.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	if err := exam.Validate(); err != nil {
		return err
	}
	if err := s.store.CreateExam(ctx, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("total_questions", exam.TotalQuestions).
		Msg("Exam created")
	return nil
}

// AddQuestions links new bank questions to an exam and drops its cached pool.
func (s *ExamService) AddQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	if _, err := s.GetByID(ctx, examID); err != nil {
		return err
	}

	fields := make(map[string]string)
	for i, q := range questions {
		switch {
		case !q.Difficulty.Valid():
			fields[fmt.Sprintf("questions[%d].difficulty", i)] = "unknown difficulty " + string(q.Difficulty)
		case q.Subject == "":
			fields[fmt.Sprintf("questions[%d].subject", i)] = "is required"
		case q.CorrectOption == "":
			fields[fmt.Sprintf("questions[%d].correct_option", i)] = "is required"
		}
	}
	if len(fields) > 0 {
		return &model.ConfigError{Fields: fields}
	}

	// Question rows and exam links land together or not at all.
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		return tx.AddQuestions(ctx, examID, questions)
	})
	if err != nil {
		return fmt.Errorf("add questions: %w", err)
	}
	if _, err := s.pools.Refresh(ctx, examID); err != nil {
		return err
	}
	return nil
}

// RefreshPool drops the cached pool and reports whether the fresh pool can
// serve the exam configuration.
func (s *ExamService) RefreshPool(ctx context.Context, examID uuid.UUID) (*PoolReport, error) {
	return s.pools.Refresh(ctx, examID)
}

// ValidatePool is the read-only pool diagnostic.
func (s *ExamService) ValidatePool(ctx context.Context, examID uuid.UUID) (*PoolReport, error) {
	return s.pools.Validate(ctx, examID)
}
