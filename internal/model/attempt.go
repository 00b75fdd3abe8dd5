package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptState is the lifecycle state of an attempt.
type AttemptState string

const (
	AttemptStateEligible  AttemptState = "ELIGIBLE"
	AttemptStateActive    AttemptState = "ACTIVE"
	AttemptStateSubmitted AttemptState = "SUBMITTED"
)

// Attempt is one user's run at an exam with its frozen question snapshot.
type Attempt struct {
	ID               uuid.UUID   `json:"id"`
	UserID           string      `json:"user_id"`
	ExamID           uuid.UUID   `json:"exam_id"`
	AttemptNumber    int         `json:"attempt_number"`
	QuestionIDs      []uuid.UUID `json:"question_ids"`
	StartedAt        time.Time   `json:"started_at"`
	IsCompleted      bool        `json:"is_completed"`
	SubmittedAt      *time.Time  `json:"submitted_at,omitempty"`
	TimeSpentSeconds *int        `json:"time_spent_seconds,omitempty"`
	AutoSubmitted    bool        `json:"auto_submitted"`
	IPAddress        string      `json:"-"`
	UserAgent        string      `json:"-"`
	Version          int         `json:"-"`
}

// State derives the lifecycle state from the completion flag.
func (a *Attempt) State() AttemptState {
	if a.IsCompleted {
		return AttemptStateSubmitted
	}
	return AttemptStateActive
}

// Expired reports whether the time budget is used up at now.
func (a *Attempt) Expired(now time.Time, budget time.Duration) bool {
	return now.Sub(a.StartedAt) >= budget
}

// Remaining returns the unused time budget, never negative.
func (a *Attempt) Remaining(now time.Time, budget time.Duration) time.Duration {
	left := budget - now.Sub(a.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Position returns the 1-based index of questionID in the snapshot, or 0.
func (a *Attempt) Position(questionID uuid.UUID) int {
	for i, id := range a.QuestionIDs {
		if id == questionID {
			return i + 1
		}
	}
	return 0
}

// Answer is the stored response for one question of an attempt.
// A nil SelectedOption is an explicit skip.
type Answer struct {
	AttemptID         uuid.UUID `json:"attempt_id"`
	QuestionID        uuid.UUID `json:"question_id"`
	SelectedOption    *string   `json:"selected_option"`
	IsMarkedForReview bool      `json:"is_marked_for_review"`
	AnsweredAt        time.Time `json:"answered_at"`
}

// PutAnswerRequest is the payload for saving a response.
type PutAnswerRequest struct {
	SelectedOption    *string `json:"selected_option" binding:"omitempty,alphanum,max=8"`
	IsMarkedForReview *bool   `json:"is_marked_for_review"`
}

// StartAttemptResult is returned by a start or resume.
type StartAttemptResult struct {
	AttemptID       uuid.UUID   `json:"attempt_id"`
	AttemptNumber   int         `json:"attempt_number"`
	QuestionIDs     []uuid.UUID `json:"question_ids"`
	StartedAt       time.Time   `json:"started_at"`
	DurationMinutes int         `json:"duration_minutes"`
	IsResume        bool        `json:"is_resume"`
}

// AttemptView is the reload payload for an in-progress attempt.
type AttemptView struct {
	Attempt          *Attempt `json:"attempt"`
	DurationMinutes  int      `json:"duration_minutes"`
	RemainingSeconds int      `json:"remaining_seconds"`
	Answers          []Answer `json:"answers"`
}
