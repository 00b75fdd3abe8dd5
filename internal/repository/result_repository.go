package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exampool/internal/model"
)

// GetResult retrieves the stored result of an attempt.
func (s *PostgresStore) GetResult(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	r := &model.Result{}
	err := s.db.QueryRow(ctx,
		`SELECT attempt_id, exam_id, user_id, total_questions, attempted, correct, wrong, unattempted,
		        total_score, max_score, accuracy, subject_scores, percentile, rank, total_attempts, calculated_at
		 FROM attempt_results WHERE attempt_id = $1`, attemptID,
	).Scan(&r.AttemptID, &r.ExamID, &r.UserID, &r.TotalQuestions, &r.Attempted, &r.Correct, &r.Wrong,
		&r.Unattempted, &r.TotalScore, &r.MaxScore, &r.Accuracy, &r.SubjectScores, &r.Percentile,
		&r.Rank, &r.TotalAttemptsAtCalculation, &r.CalculatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// InsertResult writes r once. A second insert for the same attempt is a no-op.
func (s *PostgresStore) InsertResult(ctx context.Context, r *model.Result) (bool, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO attempt_results (attempt_id, exam_id, user_id, total_questions, attempted, correct,
		                              wrong, unattempted, total_score, max_score, accuracy, subject_scores,
		                              percentile, rank, total_attempts, calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (attempt_id) DO NOTHING
		 RETURNING attempt_id`,
		r.AttemptID, r.ExamID, r.UserID, r.TotalQuestions, r.Attempted, r.Correct,
		r.Wrong, r.Unattempted, r.TotalScore.String(), r.MaxScore.String(), r.Accuracy.String(), r.SubjectScores,
		r.Percentile.String(), r.Rank, r.TotalAttemptsAtCalculation, r.CalculatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExamStanding counts results in SQL so ranking never loads every score.
func (s *PostgresStore) ExamStanding(ctx context.Context, examID uuid.UUID, score decimal.Decimal) (int, int, error) {
	var existing, higher int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE total_score > $2::numeric)
		 FROM attempt_results WHERE exam_id = $1`, examID, score.String(),
	).Scan(&existing, &higher)
	return existing, higher, err
}
