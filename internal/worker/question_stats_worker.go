package worker

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
)

// QuestionStatsWorker folds graded outcomes into the per-question
// times_asked / times_correct counters.
type QuestionStatsWorker struct {
	db repository.DBTX
	b  *batcher[model.QuestionOutcome]
}

// NewQuestionStatsWorker creates a QuestionStatsWorker.
func NewQuestionStatsWorker(db repository.DBTX, rdb redis.Cmdable, log zerolog.Logger) *QuestionStatsWorker {
	w := &QuestionStatsWorker{db: db}
	w.b = &batcher[model.QuestionOutcome]{
		rdb:   rdb,
		queue: config.WorkerKey.PersistQuestionStatsQueue,
		log:   log.With().Str("component", "question_stats_worker").Logger(),
		flush: w.flushSafe,
	}
	return w
}

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *QuestionStatsWorker) Start(ctx context.Context) {
	w.b.log.Info().Msg("QuestionStatsWorker started")
	w.b.run(ctx)
}

type questionTally struct {
	id      uuid.UUID
	asked   int
	correct int
}

// tally collapses outcomes to one row per question, ordered by id so
// concurrent updates lock rows in the same order.
func tally(batch []model.QuestionOutcome) []questionTally {
	byID := make(map[uuid.UUID]*questionTally)
	for _, o := range batch {
		t, ok := byID[o.QuestionID]
		if !ok {
			t = &questionTally{id: o.QuestionID}
			byID[o.QuestionID] = t
		}
		t.asked++
		if o.Correct {
			t.correct++
		}
	}

	out := make([]questionTally, 0, len(byID))
	for _, t := range byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].id[:], out[j].id[:]) < 0 })
	return out
}

func (w *QuestionStatsWorker) flushSafe(ctx context.Context, batch []model.QuestionOutcome) {
	if len(batch) == 0 {
		return
	}
	tallies := tally(batch)

	if err := w.bulkUpdate(ctx, tallies); err != nil {
		w.b.log.Warn().Err(err).Msg("Bulk question stats update failed, using fallback")

		var requeueList []model.QuestionOutcome
		for _, t := range tallies {
			if err := w.updateSingle(ctx, t); err != nil {
				w.b.log.Error().Err(err).Str("question_id", t.id.String()).Msg("updateSingle failed, requeueing")
				requeueList = append(requeueList, expand(t)...)
			}
		}
		w.b.requeue(ctx, requeueList)
	}
}

// expand turns a tally back into outcomes for requeueing.
func expand(t questionTally) []model.QuestionOutcome {
	out := make([]model.QuestionOutcome, 0, t.asked)
	for i := 0; i < t.asked; i++ {
		out = append(out, model.QuestionOutcome{QuestionID: t.id, Correct: i < t.correct})
	}
	return out
}

func (w *QuestionStatsWorker) bulkUpdate(ctx context.Context, tallies []questionTally) error {
	ids := make([]uuid.UUID, len(tallies))
	asked := make([]int32, len(tallies))
	correct := make([]int32, len(tallies))
	for i, t := range tallies {
		ids[i] = t.id
		asked[i] = int32(t.asked)
		correct[i] = int32(t.correct)
	}

	query := `
		UPDATE questions AS q
		SET times_asked   = q.times_asked + t.asked,
		    times_correct = q.times_correct + t.correct
		FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::int[]
		) AS t (id, asked, correct)
		WHERE q.id = t.id
	`
	_, err := w.db.Exec(ctx, query, ids, asked, correct)
	return err
}

func (w *QuestionStatsWorker) updateSingle(ctx context.Context, t questionTally) error {
	_, err := w.db.Exec(ctx,
		`UPDATE questions
		 SET times_asked = times_asked + $2, times_correct = times_correct + $3
		 WHERE id = $1`,
		t.id, t.asked, t.correct,
	)
	return err
}
