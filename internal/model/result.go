package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is the immutable scoring record of a submitted attempt.
type Result struct {
	AttemptID                  uuid.UUID                  `json:"attempt_id"`
	ExamID                     uuid.UUID                  `json:"exam_id"`
	UserID                     string                     `json:"user_id"`
	TotalQuestions             int                        `json:"total_questions"`
	Attempted                  int                        `json:"attempted"`
	Correct                    int                        `json:"correct"`
	Wrong                      int                        `json:"wrong"`
	Unattempted                int                        `json:"unattempted"`
	TotalScore                 decimal.Decimal            `json:"total_score"`
	MaxScore                   decimal.Decimal            `json:"max_score"`
	Accuracy                   decimal.Decimal            `json:"accuracy"`
	SubjectScores              map[string]decimal.Decimal `json:"subject_scores"`
	Percentile                 decimal.Decimal            `json:"percentile"`
	Rank                       int                        `json:"rank"`
	TotalAttemptsAtCalculation int                        `json:"total_attempts"`
	CalculatedAt               time.Time                  `json:"calculated_at"`
}
