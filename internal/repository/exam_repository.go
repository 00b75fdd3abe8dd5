package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exampool/internal/model"
)

const examColumns = `id, title, total_questions, duration_minutes, max_attempts, starts_at, ends_at,
	correct_marks, wrong_marks, unattempted_marks, difficulty_distribution, subject_distribution,
	is_active, is_published, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.TotalQuestions, &e.DurationMinutes, &e.MaxAttempts,
		&e.StartsAt, &e.EndsAt,
		&e.MarkingScheme.CorrectMarks, &e.MarkingScheme.WrongMarks, &e.MarkingScheme.UnattemptedMarks,
		&e.DifficultyDistribution, &e.SubjectDistribution,
		&e.IsActive, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetExam retrieves an exam by its UUID.
func (s *PostgresStore) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(s.db.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// CreateExam inserts a new exam. Marks are sent as text to keep them exact.
func (s *PostgresStore) CreateExam(ctx context.Context, e *model.Exam) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO exams (id, title, total_questions, duration_minutes, max_attempts, starts_at, ends_at,
		                    correct_marks, wrong_marks, unattempted_marks,
		                    difficulty_distribution, subject_distribution, is_active, is_published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING created_at, updated_at`,
		e.ID, e.Title, e.TotalQuestions, e.DurationMinutes, e.MaxAttempts, e.StartsAt, e.EndsAt,
		e.MarkingScheme.CorrectMarks.String(), e.MarkingScheme.WrongMarks.String(), e.MarkingScheme.UnattemptedMarks.String(),
		e.DifficultyDistribution, e.SubjectDistribution, e.IsActive, e.IsPublished,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// ListPublishedExams returns every active, published exam.
func (s *PostgresStore) ListPublishedExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE is_active AND is_published
		 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
