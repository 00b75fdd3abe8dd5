package websocket

import "github.com/stemsi/exampool/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestPayload carries every action. Fields unused by an action are ignored.
type RequestPayload struct {
	Action            Action  `json:"action"`
	QuestionID        string  `json:"question_id,omitempty"`
	SelectedOption    *string `json:"selected_option,omitempty"`
	IsMarkedForReview *bool   `json:"is_marked_for_review,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event  Event         `json:"event"`
	Answer *model.Answer `json:"answer"`
}

type GradedResponse struct {
	Event  Event         `json:"event"`
	Result *model.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}
