package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an attempt lifecycle event worth recording.
type AuditAction string

const (
	AuditExamStarted       AuditAction = "EXAM_STARTED"
	AuditExamSubmitted     AuditAction = "EXAM_SUBMITTED"
	AuditExamAutoSubmitted AuditAction = "EXAM_AUTO_SUBMITTED"
)

// AuditEvent is queued after commit and persisted by the audit worker.
type AuditEvent struct {
	UserID     string            `json:"user_id"`
	ExamID     uuid.UUID         `json:"exam_id"`
	AttemptID  uuid.UUID         `json:"attempt_id"`
	Action     AuditAction       `json:"action"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// QuestionOutcome feeds per-question analytics.
type QuestionOutcome struct {
	QuestionID uuid.UUID `json:"question_id"`
	Correct    bool      `json:"correct"`
}
