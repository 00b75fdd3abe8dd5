package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
)

var auditColumns = []string{
	"user_id", "exam_id", "attempt_id", "action", "ip_address", "user_agent", "details", "recorded_at",
}

// AuditWorker persists attempt lifecycle events queued after commit.
type AuditWorker struct {
	db repository.DBTX
	b  *batcher[model.AuditEvent]
}

// NewAuditWorker creates an AuditWorker reading from the audit queue.
func NewAuditWorker(db repository.DBTX, rdb redis.Cmdable, log zerolog.Logger) *AuditWorker {
	w := &AuditWorker{db: db}
	w.b = &batcher[model.AuditEvent]{
		rdb:   rdb,
		queue: config.WorkerKey.PersistAuditQueue,
		log:   log.With().Str("component", "audit_worker").Logger(),
		flush: w.flushSafe,
	}
	return w
}

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *AuditWorker) Start(ctx context.Context) {
	w.b.log.Info().Msg("AuditWorker started")
	w.b.run(ctx)
}

// flushSafe attempts COPY, then row-by-row insert, then requeue.
func (w *AuditWorker) flushSafe(ctx context.Context, batch []model.AuditEvent) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.b.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func auditRows(batch []model.AuditEvent) [][]any {
	rows := make([][]any, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, auditRow(ev))
	}
	return rows
}

func auditRow(ev model.AuditEvent) []any {
	var details any
	if len(ev.Details) > 0 {
		details = ev.Details
	}
	return []any{
		ev.UserID, ev.ExamID, ev.AttemptID, string(ev.Action),
		ev.IPAddress, ev.UserAgent, details, ev.OccurredAt,
	}
}

func (w *AuditWorker) bulkInsert(ctx context.Context, batch []model.AuditEvent) error {
	_, err := w.db.CopyFrom(ctx,
		pgx.Identifier{"audit_logs"},
		auditColumns,
		pgx.CopyFromRows(auditRows(batch)),
	)
	return err
}

func (w *AuditWorker) fallbackInsert(ctx context.Context, batch []model.AuditEvent) {
	requeueList := make([]model.AuditEvent, 0)

	for _, ev := range batch {
		_, err := w.db.Exec(ctx,
			`INSERT INTO audit_logs (user_id, exam_id, attempt_id, action, ip_address, user_agent, details, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			auditRow(ev)...,
		)
		if err != nil {
			w.b.log.Error().Err(err).
				Str("attempt_id", ev.AttemptID.String()).
				Str("action", string(ev.Action)).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, ev)
		}
	}

	w.b.requeue(ctx, requeueList)
}
