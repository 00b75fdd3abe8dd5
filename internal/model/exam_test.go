package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validExam() *Exam {
	return &Exam{
		Title:           "JEE Main Mock",
		TotalQuestions:  100,
		DurationMinutes: 120,
		MaxAttempts:     3,
		MarkingScheme: MarkingScheme{
			CorrectMarks:     decimal.NewFromInt(4),
			WrongMarks:       decimal.NewFromInt(-1),
			UnattemptedMarks: decimal.Zero,
		},
		DifficultyDistribution: DifficultyDistribution{DifficultyEasy: 30, DifficultyMedium: 50, DifficultyHard: 20},
		SubjectDistribution:    SubjectDistribution{"Physics": 33, "Chemistry": 33, "Mathematics": 34},
		IsActive:               true,
		IsPublished:            true,
	}
}

func TestExamValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *Exam)
		wantField string
	}{
		{"valid", func(e *Exam) {}, ""},
		{"percentages short of 100", func(e *Exam) { e.DifficultyDistribution[DifficultyHard] = 10 }, "difficulty_distribution"},
		{"unknown difficulty", func(e *Exam) { e.DifficultyDistribution["EXPERT"] = 0 }, "difficulty_distribution.EXPERT"},
		{"subject counts off", func(e *Exam) { e.SubjectDistribution["Physics"] = 30 }, "subject_distribution"},
		{"zero subject count", func(e *Exam) { e.SubjectDistribution["Biology"] = 0 }, "subject_distribution.Biology"},
		{"no correct marks", func(e *Exam) { e.MarkingScheme.CorrectMarks = decimal.Zero }, "marking_scheme.correct_marks"},
		{"wrong marks too precise", func(e *Exam) { e.MarkingScheme.WrongMarks = decimal.RequireFromString("-0.33333") }, "marking_scheme.wrong_marks"},
		{"correct marks too precise", func(e *Exam) { e.MarkingScheme.CorrectMarks = decimal.RequireFromString("2.00001") }, "marking_scheme.correct_marks"},
		{"four decimals allowed", func(e *Exam) { e.MarkingScheme.UnattemptedMarks = decimal.RequireFromString("-0.2500") }, ""},
		{"zero attempts", func(e *Exam) { e.MaxAttempts = 0 }, "max_attempts"},
		{"window inverted", func(e *Exam) {
			start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
			end := start.Add(-time.Hour)
			e.StartsAt, e.EndsAt = &start, &end
		}, "ends_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExam()
			tt.mutate(e)
			err := e.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if _, ok := cfgErr.Fields[tt.wantField]; !ok {
				t.Fatalf("Validate() fields = %v, want key %q", cfgErr.Fields, tt.wantField)
			}
		})
	}
}

func TestExamOpenAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(e *Exam)
		want   bool
	}{
		{"open", func(e *Exam) {}, true},
		{"inactive", func(e *Exam) { e.IsActive = false }, false},
		{"unpublished", func(e *Exam) { e.IsPublished = false }, false},
		{"not started", func(e *Exam) { e.StartsAt = &later }, false},
		{"ended", func(e *Exam) { e.EndsAt = &earlier }, false},
		{"inside window", func(e *Exam) { e.StartsAt, e.EndsAt = &earlier, &later }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExam()
			tt.mutate(e)
			if got := e.OpenAt(now); got != tt.want {
				t.Fatalf("OpenAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttemptExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &Attempt{StartedAt: start}
	budget := 30 * time.Minute

	if a.Expired(start.Add(29*time.Minute), budget) {
		t.Fatal("expired before budget elapsed")
	}
	if !a.Expired(start.Add(30*time.Minute), budget) {
		t.Fatal("not expired exactly at budget")
	}
	if got := a.Remaining(start.Add(40*time.Minute), budget); got != 0 {
		t.Fatalf("Remaining() = %v, want 0", got)
	}
}
