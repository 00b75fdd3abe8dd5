package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exampool/internal/model"
)

const attemptColumns = `id, user_id, exam_id, attempt_number, question_ids, started_at, is_completed,
	submitted_at, time_spent_seconds, auto_submitted, ip_address, user_agent, version`

func scanAttempt(row rowScanner) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := row.Scan(&a.ID, &a.UserID, &a.ExamID, &a.AttemptNumber, &a.QuestionIDs, &a.StartedAt,
		&a.IsCompleted, &a.SubmittedAt, &a.TimeSpentSeconds, &a.AutoSubmitted,
		&a.IPAddress, &a.UserAgent, &a.Version); err != nil {
		return nil, err
	}
	return a, nil
}

// FindOpenAttempt returns the user's open attempt on an exam.
func (s *PostgresStore) FindOpenAttempt(ctx context.Context, userID string, examID uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE user_id = $1 AND exam_id = $2 AND NOT is_completed`, userID, examID))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// CountAttempts counts every attempt, open or submitted.
func (s *PostgresStore) CountAttempts(ctx context.Context, userID string, examID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE user_id = $1 AND exam_id = $2`, userID, examID,
	).Scan(&n)
	return n, err
}

// CreateAttempt inserts a new open attempt. The partial unique index on
// (user_id, exam_id) and the unique attempt number reject a concurrent start.
func (s *PostgresStore) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO attempts (id, user_id, exam_id, attempt_number, question_ids, started_at,
		                       ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.ExamID, a.AttemptNumber, a.QuestionIDs, a.StartedAt, a.IPAddress, a.UserAgent,
	)
	if isUniqueViolation(err) {
		return ErrOpenAttemptExists
	}
	return err
}

// GetAttempt retrieves an attempt by id.
func (s *PostgresStore) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// LockAttempt reads the attempt with FOR SHARE, so a concurrent
// MarkSubmitted waits for the caller's transaction.
func (s *PostgresStore) LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR SHARE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// MarkSubmitted is a compare-and-swap on (is_completed, version).
func (s *PostgresStore) MarkSubmitted(ctx context.Context, id uuid.UUID, version int, submittedAt time.Time, spentSeconds int, auto bool) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE attempts
		 SET is_completed = TRUE,
		     submitted_at = $3,
		     time_spent_seconds = $4,
		     auto_submitted = $5,
		     version = version + 1
		 WHERE id = $1 AND version = $2 AND NOT is_completed`,
		id, version, submittedAt, spentSeconds, auto,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertAnswer writes the latest response for a question.
func (s *PostgresStore) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected_option, is_marked_for_review, answered_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     is_marked_for_review = EXCLUDED.is_marked_for_review,
		     answered_at = EXCLUDED.answered_at`,
		a.AttemptID, a.QuestionID, a.SelectedOption, a.IsMarkedForReview, a.AnsweredAt,
	)
	return err
}

// GetAnswer retrieves the stored response for one question.
func (s *PostgresStore) GetAnswer(ctx context.Context, attemptID, questionID uuid.UUID) (*model.Answer, error) {
	a := &model.Answer{}
	err := s.db.QueryRow(ctx,
		`SELECT attempt_id, question_id, selected_option, is_marked_for_review, answered_at
		 FROM attempt_answers WHERE attempt_id = $1 AND question_id = $2`, attemptID, questionID,
	).Scan(&a.AttemptID, &a.QuestionID, &a.SelectedOption, &a.IsMarkedForReview, &a.AnsweredAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ListAnswers returns every stored response of an attempt.
func (s *PostgresStore) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := s.db.Query(ctx,
		`SELECT attempt_id, question_id, selected_option, is_marked_for_review, answered_at
		 FROM attempt_answers WHERE attempt_id = $1
		 ORDER BY answered_at`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.SelectedOption, &a.IsMarkedForReview, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
