package main

import (
	"testing"

	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/selection"
)

func TestSampleBankServesSampleExam(t *testing.T) {
	exam := sampleExam(true)
	if err := exam.Validate(); err != nil {
		t.Fatalf("sample exam invalid: %v", err)
	}

	bank := sampleBank(exam, 20)
	if len(bank) != 3*3*20 {
		t.Fatalf("bank size = %d, want 180", len(bank))
	}

	pool := make([]model.PoolQuestion, len(bank))
	for i, q := range bank {
		pool[i] = model.PoolQuestion{ID: q.ID, Subject: q.Subject, Difficulty: q.Difficulty}
	}
	problems := selection.Check(selection.Input{
		TotalQuestions:         exam.TotalQuestions,
		DifficultyDistribution: exam.DifficultyDistribution,
		SubjectDistribution:    exam.SubjectDistribution,
		Pool:                   pool,
	})
	if len(problems) != 0 {
		t.Fatalf("sample bank cannot serve exam: %v", problems)
	}
}

func TestSampleBankTooSmall(t *testing.T) {
	exam := sampleExam(true)
	bank := sampleBank(exam, 5)

	pool := make([]model.PoolQuestion, len(bank))
	for i, q := range bank {
		pool[i] = model.PoolQuestion{ID: q.ID, Subject: q.Subject, Difficulty: q.Difficulty}
	}
	problems := selection.Check(selection.Input{
		TotalQuestions:         exam.TotalQuestions,
		DifficultyDistribution: exam.DifficultyDistribution,
		SubjectDistribution:    exam.SubjectDistribution,
		Pool:                   pool,
	})
	if len(problems) == 0 {
		t.Fatal("expected shortfalls for a 45-question bank")
	}
}
