package service

import (
	"context"

	"github.com/stemsi/exampool/internal/model"
)

// EventPublisher hands post-commit side effects to background persistence.
// Publishing is best effort: failures are logged, never returned to users.
type EventPublisher interface {
	PublishAudit(ctx context.Context, ev model.AuditEvent) error
	PublishOutcomes(ctx context.Context, outcomes []model.QuestionOutcome) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) PublishAudit(context.Context, model.AuditEvent) error { return nil }

func (NopPublisher) PublishOutcomes(context.Context, []model.QuestionOutcome) error { return nil }
