package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
	"github.com/stemsi/exampool/internal/selection"
	"golang.org/x/sync/singleflight"
)

// poolLoadTimeout bounds a shared pool read once it no longer follows the
// context of the caller that started it.
const poolLoadTimeout = 15 * time.Second

// PoolReport is the outcome of a pool diagnostic.
type PoolReport struct {
	ExamID    uuid.UUID `json:"exam_id"`
	IsValid   bool      `json:"is_valid"`
	Available int       `json:"available"`
	Errors    []string  `json:"errors"`
}

// PoolService serves exam question pools with a read-through cache.
type PoolService struct {
	store repository.Store
	cache PoolCache
	group singleflight.Group
	log   zerolog.Logger
}

// NewPoolService creates a PoolService. cache may be nil.
func NewPoolService(store repository.Store, cache PoolCache, log zerolog.Logger) *PoolService {
	return &PoolService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "pool_service").Logger(),
	}
}

// Load returns the eligible pool of an exam. Concurrent misses for the same
// exam share one storage read, which outlives the cancellation of whichever
// caller started it. The returned slice must not be modified.
func (s *PoolService) Load(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, error) {
	if s.cache != nil {
		pool, ok, err := s.cache.Get(ctx, examID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Pool cache read failed, falling back to store")
		} else if ok {
			return pool, nil
		}
	}

	v, err, _ := s.group.Do(examID.String(), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), poolLoadTimeout)
		defer cancel()

		pool, err := s.store.ListPoolQuestions(ctx, examID)
		if err != nil {
			return nil, fmt.Errorf("list pool questions: %w", err)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, examID, pool); err != nil {
				s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Pool cache write failed")
			}
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.PoolQuestion), nil
}

// Check validates the pool of an already loaded exam.
func (s *PoolService) Check(ctx context.Context, exam *model.Exam) (*PoolReport, error) {
	pool, err := s.Load(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	problems := selection.Check(selection.Input{
		TotalQuestions:         exam.TotalQuestions,
		DifficultyDistribution: exam.DifficultyDistribution,
		SubjectDistribution:    exam.SubjectDistribution,
		Pool:                   pool,
	})
	if problems == nil {
		problems = []string{}
	}

	return &PoolReport{
		ExamID:    exam.ID,
		IsValid:   len(problems) == 0,
		Available: len(pool),
		Errors:    problems,
	}, nil
}

// Validate is the read-only diagnostic for an exam id.
func (s *PoolService) Validate(ctx context.Context, examID uuid.UUID) (*PoolReport, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return s.Check(ctx, exam)
}

// Refresh drops the cached pool and loads it again from storage.
func (s *PoolService) Refresh(ctx context.Context, examID uuid.UUID) (*PoolReport, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, examID); err != nil {
			return nil, fmt.Errorf("drop cached pool: %w", err)
		}
	}
	report, err := s.Validate(ctx, examID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("available", report.Available).
		Bool("valid", report.IsValid).
		Msg("Pool refreshed")
	return report, nil
}

// PrewarmAll loads the pool of every open exam before traffic arrives.
func (s *PoolService) PrewarmAll(ctx context.Context) error {
	exams, err := s.store.ListPublishedExams(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	warmed := 0
	for _, exam := range exams {
		report, err := s.Check(ctx, &exam)
		if err != nil {
			s.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("Pool prewarm failed")
			continue
		}
		if !report.IsValid {
			s.log.Warn().
				Str("exam_id", exam.ID.String()).
				Strs("errors", report.Errors).
				Msg("Exam pool cannot serve its configuration")
		}
		warmed++
	}

	s.log.Info().Int("exams", warmed).Msg("Pool prewarm complete")
	return nil
}
