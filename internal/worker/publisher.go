package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/model"
)

// QueuePublisher pushes post-commit events onto the worker queues.
type QueuePublisher struct {
	rdb redis.Cmdable
}

// NewQueuePublisher creates a QueuePublisher.
func NewQueuePublisher(rdb redis.Cmdable) *QueuePublisher {
	return &QueuePublisher{rdb: rdb}
}

// PublishAudit queues one audit event.
func (p *QueuePublisher) PublishAudit(ctx context.Context, ev model.AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return p.rdb.RPush(ctx, config.WorkerKey.PersistAuditQueue, data).Err()
}

// PublishOutcomes queues every outcome of one graded attempt.
func (p *QueuePublisher) PublishOutcomes(ctx context.Context, outcomes []model.QuestionOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	values := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		values = append(values, data)
	}
	return p.rdb.RPush(ctx, config.WorkerKey.PersistQuestionStatsQueue, values...).Err()
}
