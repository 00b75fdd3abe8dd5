package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
	"github.com/stemsi/exampool/internal/scoring"
	"github.com/stemsi/exampool/internal/selection"
)

// ClientInfo identifies the device that started an attempt.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// AttemptService owns the attempt lifecycle: start or resume, answer writes,
// lazy expiry, and exactly-once submission.
type AttemptService struct {
	store  repository.Store
	pools  *PoolService
	events EventPublisher
	now    func() time.Time
	log    zerolog.Logger
}

// NewAttemptService creates a new AttemptService. events may be nil.
func NewAttemptService(store repository.Store, pools *PoolService, events EventPublisher, log zerolog.Logger) *AttemptService {
	if events == nil {
		events = NopPublisher{}
	}
	return &AttemptService{
		store:  store,
		pools:  pools,
		events: events,
		now:    time.Now,
		log:    log.With().Str("component", "attempt_service").Logger(),
	}
}

// WithClock replaces the time source.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// StartAttempt resumes the user's open attempt or creates the next one.
func (s *AttemptService) StartAttempt(ctx context.Context, examID uuid.UUID, userID string, client ClientInfo) (*model.StartAttemptResult, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !exam.OpenAt(now) {
		return nil, ErrExamUnavailable
	}

	open, err := s.store.FindOpenAttempt(ctx, userID, examID)
	switch {
	case err == nil:
		if !open.Expired(now, exam.Duration()) {
			return resumeResult(open, exam), nil
		}
		// An expired attempt is finalized, never resumed.
		if _, err := s.finalize(ctx, open, exam, true); err != nil {
			return nil, err
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find open attempt: %w", err)
	}

	count, err := s.store.CountAttempts(ctx, userID, examID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if count >= exam.MaxAttempts {
		return nil, ErrAttemptLimitReached
	}

	pool, err := s.pools.Load(ctx, examID)
	if err != nil {
		return nil, err
	}

	in := selection.Input{
		ExamID:                 examID,
		UserID:                 userID,
		AttemptNumber:          count + 1,
		TotalQuestions:         exam.TotalQuestions,
		DifficultyDistribution: exam.DifficultyDistribution,
		SubjectDistribution:    exam.SubjectDistribution,
		Pool:                   pool,
	}
	if problems := selection.Check(in); len(problems) > 0 {
		return nil, &PoolNotReadyError{Errors: problems}
	}

	ids, err := selection.Select(in)
	if err != nil {
		var poolErr *selection.InsufficientPoolError
		if errors.As(err, &poolErr) {
			problems := make([]string, len(poolErr.Deficiencies))
			for i, d := range poolErr.Deficiencies {
				problems[i] = "bucket " + d.String()
			}
			return nil, &PoolNotReadyError{Errors: problems}
		}
		return nil, fmt.Errorf("select questions: %w", err)
	}

	attempt := &model.Attempt{
		ID:            uuid.New(),
		UserID:        userID,
		ExamID:        examID,
		AttemptNumber: count + 1,
		QuestionIDs:   ids,
		StartedAt:     now,
		IPAddress:     client.IPAddress,
		UserAgent:     client.UserAgent,
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		if !errors.Is(err, repository.ErrOpenAttemptExists) {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
		// Lost a concurrent start: hand back the winner's attempt.
		winner, ferr := s.store.FindOpenAttempt(ctx, userID, examID)
		if ferr == nil && !winner.Expired(now, exam.Duration()) {
			return resumeResult(winner, exam), nil
		}
		return nil, ErrAttemptConflict
	}

	s.publishAudit(ctx, attempt, model.AuditExamStarted, client, map[string]string{
		"attempt_number": fmt.Sprint(attempt.AttemptNumber),
	})

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Str("user_id", userID).
		Int("attempt_number", attempt.AttemptNumber).
		Msg("Attempt started")

	return &model.StartAttemptResult{
		AttemptID:       attempt.ID,
		AttemptNumber:   attempt.AttemptNumber,
		QuestionIDs:     attempt.QuestionIDs,
		StartedAt:       attempt.StartedAt,
		DurationMinutes: exam.DurationMinutes,
		IsResume:        false,
	}, nil
}

func resumeResult(a *model.Attempt, exam *model.Exam) *model.StartAttemptResult {
	return &model.StartAttemptResult{
		AttemptID:       a.ID,
		AttemptNumber:   a.AttemptNumber,
		QuestionIDs:     a.QuestionIDs,
		StartedAt:       a.StartedAt,
		DurationMinutes: exam.DurationMinutes,
		IsResume:        true,
	}
}

// GetAttempt returns the attempt with its saved answers and remaining time.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID uuid.UUID, userID string) (*model.AttemptView, error) {
	a, exam, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !a.IsCompleted && a.Expired(now, exam.Duration()) {
		if _, err := s.finalize(ctx, a, exam, true); err != nil {
			return nil, err
		}
		return nil, ErrAttemptExpired
	}

	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	remaining := 0
	if !a.IsCompleted {
		remaining = int(a.Remaining(now, exam.Duration()) / time.Second)
	}

	return &model.AttemptView{
		Attempt:          a,
		DurationMinutes:  exam.DurationMinutes,
		RemainingSeconds: remaining,
		Answers:          answers,
	}, nil
}

// FetchQuestion returns one snapshot question without its answer key.
func (s *AttemptService) FetchQuestion(ctx context.Context, attemptID uuid.UUID, userID string, questionID uuid.UUID) (*model.QuestionView, error) {
	a, exam, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, a, exam); err != nil {
		return nil, err
	}

	pos := a.Position(questionID)
	if pos == 0 {
		return nil, ErrQuestionNotInAttempt
	}

	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}

	var current *model.Answer
	ans, err := s.store.GetAnswer(ctx, a.ID, questionID)
	switch {
	case err == nil:
		current = ans
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("get answer: %w", err)
	}

	view := q.View(pos, current)
	return &view, nil
}

// PutAnswer upserts the response for one snapshot question. An omitted
// review flag keeps its stored value.
func (s *AttemptService) PutAnswer(ctx context.Context, attemptID uuid.UUID, userID string, questionID uuid.UUID, req model.PutAnswerRequest) (*model.Answer, error) {
	a, exam, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureActive(ctx, a, exam); err != nil {
		return nil, err
	}
	if a.Position(questionID) == 0 {
		return nil, ErrQuestionNotInAttempt
	}

	var saved *model.Answer
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		cur, err := tx.LockAttempt(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		if cur.IsCompleted {
			return ErrAttemptAlreadySubmitted
		}

		marked := false
		prev, err := tx.GetAnswer(ctx, a.ID, questionID)
		switch {
		case err == nil:
			marked = prev.IsMarkedForReview
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("get answer: %w", err)
		}
		if req.IsMarkedForReview != nil {
			marked = *req.IsMarkedForReview
		}

		ans := &model.Answer{
			AttemptID:         a.ID,
			QuestionID:        questionID,
			SelectedOption:    req.SelectedOption,
			IsMarkedForReview: marked,
			AnsweredAt:        s.now(),
		}
		if err := tx.UpsertAnswer(ctx, ans); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		saved = ans
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SubmitAttempt finalizes the attempt, or returns the stored result when it
// was already submitted. A late submit of an expired attempt is recorded as
// an automatic submission.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, userID string) (*model.Result, error) {
	a, exam, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if a.IsCompleted {
		r, err := s.store.GetResult(ctx, a.ID)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get result: %w", err)
		}
	}

	auto := a.AutoSubmitted
	if !a.IsCompleted {
		auto = a.Expired(s.now(), exam.Duration())
	}
	return s.finalize(ctx, a, exam, auto)
}

// GetResult returns the stored result of a submitted attempt.
func (s *AttemptService) GetResult(ctx context.Context, attemptID uuid.UUID, userID string) (*model.Result, error) {
	a, exam, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	if !a.IsCompleted {
		if !a.Expired(s.now(), exam.Duration()) {
			return nil, ErrResultNotReady
		}
		return s.finalize(ctx, a, exam, true)
	}

	r, err := s.store.GetResult(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.finalize(ctx, a, exam, a.AutoSubmitted)
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return r, nil
}

// ─── Internals ─────────────────────────────────────────────────────────

func (s *AttemptService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

func (s *AttemptService) loadOwned(ctx context.Context, attemptID uuid.UUID, userID string) (*model.Attempt, *model.Exam, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.UserID != userID {
		return nil, nil, ErrAttemptNotOwned
	}

	exam, err := s.getExam(ctx, a.ExamID)
	if err != nil {
		return nil, nil, err
	}
	return a, exam, nil
}

// ensureActive rejects submitted attempts and finalizes expired ones before
// reporting ErrAttemptExpired.
func (s *AttemptService) ensureActive(ctx context.Context, a *model.Attempt, exam *model.Exam) error {
	if a.IsCompleted {
		return ErrAttemptAlreadySubmitted
	}
	if a.Expired(s.now(), exam.Duration()) {
		if _, err := s.finalize(ctx, a, exam, true); err != nil {
			return err
		}
		return ErrAttemptExpired
	}
	return nil
}

// finalize performs the Active to Submitted transition, grading, ranking
// and the result insert in one transaction. Exactly one caller wins the
// transition; every other caller returns the winner's result. An attempt
// that is already submitted but has no result is graded again.
func (s *AttemptService) finalize(ctx context.Context, a *model.Attempt, exam *model.Exam, auto bool) (*model.Result, error) {
	now := s.now()
	budget := int(exam.Duration() / time.Second)
	spent := int(now.Sub(a.StartedAt) / time.Second)
	if spent > budget {
		spent = budget
	}
	if spent < 0 {
		spent = 0
	}

	var (
		result *model.Result
		graded *scoring.Breakdown
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		result, graded = nil, nil
		target := a

		won, err := tx.MarkSubmitted(ctx, a.ID, a.Version, now, spent, auto)
		if err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		if !won {
			existing, err := tx.GetResult(ctx, a.ID)
			if err == nil {
				result = existing
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("get result: %w", err)
			}
			cur, err := tx.GetAttempt(ctx, a.ID)
			if err != nil {
				return fmt.Errorf("reload attempt: %w", err)
			}
			if !cur.IsCompleted {
				return ErrAttemptConflict
			}
			target = cur
		}

		r, b, err := s.grade(ctx, tx, exam, target, now)
		if err != nil {
			return err
		}

		inserted, err := tx.InsertResult(ctx, r)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if !inserted {
			existing, err := tx.GetResult(ctx, a.ID)
			if err != nil {
				return fmt.Errorf("get result: %w", err)
			}
			result = existing
			return nil
		}

		result, graded = r, &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if graded != nil {
		action := model.AuditExamSubmitted
		if auto {
			action = model.AuditExamAutoSubmitted
		}
		s.publishAudit(ctx, a, action, ClientInfo{IPAddress: a.IPAddress, UserAgent: a.UserAgent}, map[string]string{
			"total_score": result.TotalScore.String(),
			"rank":        fmt.Sprint(result.Rank),
		})
		if len(graded.Outcomes) > 0 {
			if err := s.events.PublishOutcomes(ctx, graded.Outcomes); err != nil {
				s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Publish question outcomes failed")
			}
		}

		s.log.Info().
			Str("attempt_id", a.ID.String()).
			Str("exam_id", exam.ID.String()).
			Bool("auto", auto).
			Str("score", result.TotalScore.String()).
			Int("rank", result.Rank).
			Msg("Attempt graded")
	}

	return result, nil
}

func (s *AttemptService) grade(ctx context.Context, tx repository.Store, exam *model.Exam, a *model.Attempt, at time.Time) (*model.Result, scoring.Breakdown, error) {
	questions, err := tx.ListQuestionsByIDs(ctx, a.QuestionIDs)
	if err != nil {
		return nil, scoring.Breakdown{}, fmt.Errorf("list questions: %w", err)
	}
	answers, err := tx.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, scoring.Breakdown{}, fmt.Errorf("list answers: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}
	selected := make(map[uuid.UUID]*string, len(answers))
	for _, ans := range answers {
		selected[ans.QuestionID] = ans.SelectedOption
	}

	items := make([]scoring.Item, 0, len(a.QuestionIDs))
	for _, id := range a.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, scoring.Breakdown{}, fmt.Errorf("snapshot question %s missing from bank", id)
		}
		items = append(items, scoring.Item{
			QuestionID:    id,
			Subject:       q.Subject,
			CorrectOption: q.CorrectOption,
			Selected:      selected[id],
		})
	}

	b := scoring.Score(items, exam.MarkingScheme)

	existing, higher, err := tx.ExamStanding(ctx, exam.ID, b.TotalScore)
	if err != nil {
		return nil, scoring.Breakdown{}, fmt.Errorf("exam standing: %w", err)
	}
	standing := scoring.RankFromCounts(existing, higher)

	return &model.Result{
		AttemptID:                  a.ID,
		ExamID:                     exam.ID,
		UserID:                     a.UserID,
		TotalQuestions:             b.TotalQuestions,
		Attempted:                  b.Attempted,
		Correct:                    b.Correct,
		Wrong:                      b.Wrong,
		Unattempted:                b.Unattempted,
		TotalScore:                 b.TotalScore,
		MaxScore:                   b.MaxScore,
		Accuracy:                   b.Accuracy,
		SubjectScores:              b.SubjectScores,
		Percentile:                 standing.Percentile,
		Rank:                       standing.Rank,
		TotalAttemptsAtCalculation: standing.TotalAttempts,
		CalculatedAt:               at,
	}, b, nil
}

func (s *AttemptService) publishAudit(ctx context.Context, a *model.Attempt, action model.AuditAction, client ClientInfo, details map[string]string) {
	ev := model.AuditEvent{
		UserID:     a.UserID,
		ExamID:     a.ExamID,
		AttemptID:  a.ID,
		Action:     action,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Details:    details,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishAudit(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", a.ID.String()).
			Str("action", string(action)).
			Msg("Publish audit event failed")
	}
}
