package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exampool/internal/model"
)

// runStoreContract exercises the behavior every Store implementation must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	exam := &model.Exam{
		Title:           "Contract Exam",
		TotalQuestions:  2,
		DurationMinutes: 30,
		MaxAttempts:     2,
		MarkingScheme: model.MarkingScheme{
			CorrectMarks:     decimal.RequireFromString("4"),
			WrongMarks:       decimal.RequireFromString("-1.25"),
			UnattemptedMarks: decimal.Zero,
		},
		DifficultyDistribution: model.DifficultyDistribution{model.DifficultyEasy: 100},
		SubjectDistribution:    model.SubjectDistribution{"Physics": 2},
		IsActive:               true,
		IsPublished:            true,
	}
	if err := s.CreateExam(ctx, exam); err != nil {
		t.Fatalf("CreateExam() error = %v", err)
	}

	t.Run("exam round trip", func(t *testing.T) {
		got, err := s.GetExam(ctx, exam.ID)
		if err != nil {
			t.Fatalf("GetExam() error = %v", err)
		}
		if !got.MarkingScheme.WrongMarks.Equal(exam.MarkingScheme.WrongMarks) {
			t.Errorf("wrong marks = %s, want %s", got.MarkingScheme.WrongMarks, exam.MarkingScheme.WrongMarks)
		}
		if got.SubjectDistribution["Physics"] != 2 || got.DifficultyDistribution[model.DifficultyEasy] != 100 {
			t.Errorf("distributions = %v / %v", got.DifficultyDistribution, got.SubjectDistribution)
		}
		if _, err := s.GetExam(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetExam(missing) error = %v, want ErrNotFound", err)
		}
	})

	questions := []model.Question{
		{Subject: "Physics", Difficulty: model.DifficultyEasy, Text: "q1", Options: json.RawMessage(`["a","b"]`), CorrectOption: "A", IsActive: true},
		{Subject: "Physics", Difficulty: model.DifficultyEasy, Text: "q2", CorrectOption: "B", IsActive: true},
		{Subject: "Physics", Difficulty: model.DifficultyEasy, Text: "retired", CorrectOption: "C", IsActive: false},
	}
	if err := s.AddQuestions(ctx, exam.ID, questions); err != nil {
		t.Fatalf("AddQuestions() error = %v", err)
	}

	t.Run("pool excludes inactive", func(t *testing.T) {
		pool, err := s.ListPoolQuestions(ctx, exam.ID)
		if err != nil {
			t.Fatalf("ListPoolQuestions() error = %v", err)
		}
		if len(pool) != 2 {
			t.Fatalf("pool size = %d, want 2", len(pool))
		}
		q, err := s.GetQuestion(ctx, questions[1].ID)
		if err != nil || q.CorrectOption != "B" {
			t.Fatalf("GetQuestion() = %+v, %v", q, err)
		}
	})

	userID := "contract-" + uuid.NewString()
	attempt := &model.Attempt{
		UserID:        userID,
		ExamID:        exam.ID,
		AttemptNumber: 1,
		QuestionIDs:   []uuid.UUID{questions[1].ID, questions[0].ID},
		StartedAt:     now,
	}

	t.Run("single open attempt", func(t *testing.T) {
		if err := s.CreateAttempt(ctx, attempt); err != nil {
			t.Fatalf("CreateAttempt() error = %v", err)
		}
		dup := &model.Attempt{UserID: userID, ExamID: exam.ID, AttemptNumber: 2, QuestionIDs: attempt.QuestionIDs, StartedAt: now}
		if err := s.CreateAttempt(ctx, dup); !errors.Is(err, ErrOpenAttemptExists) {
			t.Fatalf("second CreateAttempt() error = %v, want ErrOpenAttemptExists", err)
		}

		open, err := s.FindOpenAttempt(ctx, userID, exam.ID)
		if err != nil {
			t.Fatalf("FindOpenAttempt() error = %v", err)
		}
		if open.ID != attempt.ID || len(open.QuestionIDs) != 2 || open.QuestionIDs[0] != questions[1].ID {
			t.Fatalf("FindOpenAttempt() = %+v, snapshot order lost", open)
		}
		if n, _ := s.CountAttempts(ctx, userID, exam.ID); n != 1 {
			t.Fatalf("CountAttempts() = %d, want 1", n)
		}
	})

	t.Run("answer upsert keeps one row", func(t *testing.T) {
		a, b := "A", "C"
		if err := s.UpsertAnswer(ctx, &model.Answer{AttemptID: attempt.ID, QuestionID: questions[0].ID, SelectedOption: &a, AnsweredAt: now}); err != nil {
			t.Fatalf("UpsertAnswer() error = %v", err)
		}
		if err := s.UpsertAnswer(ctx, &model.Answer{AttemptID: attempt.ID, QuestionID: questions[0].ID, SelectedOption: &b, IsMarkedForReview: true, AnsweredAt: now.Add(time.Second)}); err != nil {
			t.Fatalf("UpsertAnswer() error = %v", err)
		}
		answers, err := s.ListAnswers(ctx, attempt.ID)
		if err != nil {
			t.Fatalf("ListAnswers() error = %v", err)
		}
		if len(answers) != 1 || *answers[0].SelectedOption != "C" || !answers[0].IsMarkedForReview {
			t.Fatalf("answers = %+v, want one row with C marked", answers)
		}
	})

	t.Run("submit is compare and swap", func(t *testing.T) {
		ok, err := s.MarkSubmitted(ctx, attempt.ID, attempt.Version+1, now, 60, false)
		if err != nil || ok {
			t.Fatalf("MarkSubmitted(stale version) = %v, %v; want false", ok, err)
		}
		ok, err = s.MarkSubmitted(ctx, attempt.ID, attempt.Version, now, 60, false)
		if err != nil || !ok {
			t.Fatalf("MarkSubmitted() = %v, %v; want true", ok, err)
		}
		ok, _ = s.MarkSubmitted(ctx, attempt.ID, attempt.Version, now, 60, false)
		if ok {
			t.Fatal("MarkSubmitted() succeeded twice")
		}

		got, _ := s.GetAttempt(ctx, attempt.ID)
		if !got.IsCompleted || got.TimeSpentSeconds == nil || *got.TimeSpentSeconds != 60 {
			t.Fatalf("attempt after submit = %+v", got)
		}
		if _, err := s.FindOpenAttempt(ctx, userID, exam.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("FindOpenAttempt() after submit error = %v, want ErrNotFound", err)
		}
	})

	t.Run("attempt numbers are unique", func(t *testing.T) {
		reuse := &model.Attempt{UserID: userID, ExamID: exam.ID, AttemptNumber: 1, QuestionIDs: attempt.QuestionIDs, StartedAt: now}
		if err := s.CreateAttempt(ctx, reuse); !errors.Is(err, ErrOpenAttemptExists) {
			t.Fatalf("CreateAttempt(reused number) error = %v, want ErrOpenAttemptExists", err)
		}
		next := &model.Attempt{UserID: userID, ExamID: exam.ID, AttemptNumber: 2, QuestionIDs: attempt.QuestionIDs, StartedAt: now}
		if err := s.CreateAttempt(ctx, next); err != nil {
			t.Fatalf("CreateAttempt(next) error = %v", err)
		}
	})

	t.Run("result written once", func(t *testing.T) {
		r := &model.Result{
			AttemptID:                  attempt.ID,
			ExamID:                     exam.ID,
			UserID:                     userID,
			TotalQuestions:             2,
			Attempted:                  1,
			Wrong:                      1,
			Unattempted:                1,
			TotalScore:                 decimal.RequireFromString("-1.25"),
			MaxScore:                   decimal.RequireFromString("8"),
			Accuracy:                   decimal.Zero,
			SubjectScores:              map[string]decimal.Decimal{"Physics": decimal.RequireFromString("-1.25")},
			Percentile:                 decimal.NewFromInt(100),
			Rank:                       1,
			TotalAttemptsAtCalculation: 1,
			CalculatedAt:               now,
		}
		inserted, err := s.InsertResult(ctx, r)
		if err != nil || !inserted {
			t.Fatalf("InsertResult() = %v, %v; want true", inserted, err)
		}
		again := *r
		again.Rank = 99
		inserted, err = s.InsertResult(ctx, &again)
		if err != nil || inserted {
			t.Fatalf("second InsertResult() = %v, %v; want false", inserted, err)
		}

		got, err := s.GetResult(ctx, attempt.ID)
		if err != nil {
			t.Fatalf("GetResult() error = %v", err)
		}
		if got.Rank != 1 || !got.TotalScore.Equal(r.TotalScore) || !got.SubjectScores["Physics"].Equal(r.TotalScore) {
			t.Fatalf("GetResult() = %+v", got)
		}

		existing, higher, err := s.ExamStanding(ctx, exam.ID, decimal.RequireFromString("-2"))
		if err != nil || existing != 1 || higher != 1 {
			t.Fatalf("ExamStanding(-2) = %d, %d, %v; want 1, 1", existing, higher, err)
		}
		_, higher, _ = s.ExamStanding(ctx, exam.ID, decimal.RequireFromString("-1.25"))
		if higher != 0 {
			t.Fatalf("ExamStanding(equal score) higher = %d, want 0", higher)
		}
	})

	t.Run("failed transaction rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		rolled := &model.Exam{}
		*rolled = *exam
		rolled.ID = uuid.New()

		err := s.InTx(ctx, func(tx Store) error {
			if err := tx.CreateExam(ctx, rolled); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("InTx() error = %v, want boom", err)
		}
		if _, err := s.GetExam(ctx, rolled.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetExam() after rollback error = %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}
