package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exampool/internal/model"
)

// AddQuestions bulk-loads questions with COPY and links them to examID.
func (s *PostgresStore) AddQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(questions))
	links := make([][]any, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		options := q.Options
		if len(options) == 0 {
			options = json.RawMessage("[]")
		}
		rows = append(rows, []any{q.ID, q.Subject, string(q.Difficulty), q.Text, string(options), q.CorrectOption, q.IsActive})
		links = append(links, []any{examID, q.ID})
	}

	if _, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "subject", "difficulty", "text", "options", "correct_option", "is_active"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy questions: %w", err)
	}

	if _, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"exam_id", "question_id"},
		pgx.CopyFromRows(links),
	); err != nil {
		return fmt.Errorf("copy exam questions: %w", err)
	}
	return nil
}

// ListPoolQuestions returns the selection projection of an exam's active questions.
func (s *PostgresStore) ListPoolQuestions(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT q.id, q.subject, q.difficulty
		 FROM exam_questions eq
		 JOIN questions q ON q.id = eq.question_id
		 WHERE eq.exam_id = $1 AND q.is_active`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []model.PoolQuestion
	for rows.Next() {
		var q model.PoolQuestion
		if err := rows.Scan(&q.ID, &q.Subject, &q.Difficulty); err != nil {
			return nil, err
		}
		pool = append(pool, q)
	}
	return pool, rows.Err()
}

const questionColumns = `id, subject, difficulty, text, options, correct_option, is_active,
	times_asked, times_correct, created_at`

func scanQuestion(row rowScanner) (*model.Question, error) {
	q := &model.Question{}
	if err := row.Scan(&q.ID, &q.Subject, &q.Difficulty, &q.Text, &q.Options, &q.CorrectOption,
		&q.IsActive, &q.TimesAsked, &q.TimesCorrect, &q.CreatedAt); err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestion retrieves a question including its answer key.
func (s *PostgresStore) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// ListQuestionsByIDs retrieves questions in no particular order.
func (s *PostgresStore) ListQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := s.db.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make([]model.Question, 0, len(ids))
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}
