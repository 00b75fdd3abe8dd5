package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Question is a bank item. CorrectOption never leaves the server.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	Subject       string          `json:"subject"`
	Difficulty    Difficulty      `json:"difficulty"`
	Text          string          `json:"text"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"-"`
	IsActive      bool            `json:"is_active"`
	TimesAsked    int             `json:"times_asked"`
	TimesCorrect  int             `json:"times_correct"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PoolQuestion is the selection-relevant projection of a Question.
type PoolQuestion struct {
	ID         uuid.UUID  `json:"id"`
	Subject    string     `json:"subject"`
	Difficulty Difficulty `json:"difficulty"`
}

// QuestionView is what a test-taker sees for one question of their attempt.
type QuestionView struct {
	ID            uuid.UUID       `json:"id"`
	Position      int             `json:"position"`
	Subject       string          `json:"subject"`
	Difficulty    Difficulty      `json:"difficulty"`
	Text          string          `json:"text"`
	Options       json.RawMessage `json:"options"`
	CurrentAnswer *Answer         `json:"current_answer,omitempty"`
}

// View strips the answer key from q.
func (q *Question) View(position int, current *Answer) QuestionView {
	return QuestionView{
		ID:            q.ID,
		Position:      position,
		Subject:       q.Subject,
		Difficulty:    q.Difficulty,
		Text:          q.Text,
		Options:       q.Options,
		CurrentAnswer: current,
	}
}
