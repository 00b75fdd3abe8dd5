package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exampool/internal/model"
)

type answerKey struct {
	attemptID  uuid.UUID
	questionID uuid.UUID
}

type memData struct {
	exams         map[uuid.UUID]model.Exam
	questions     map[uuid.UUID]model.Question
	examQuestions map[uuid.UUID][]uuid.UUID
	attempts      map[uuid.UUID]model.Attempt
	answers       map[answerKey]model.Answer
	results       map[uuid.UUID]model.Result
}

func newMemData() *memData {
	return &memData{
		exams:         make(map[uuid.UUID]model.Exam),
		questions:     make(map[uuid.UUID]model.Question),
		examQuestions: make(map[uuid.UUID][]uuid.UUID),
		attempts:      make(map[uuid.UUID]model.Attempt),
		answers:       make(map[answerKey]model.Answer),
		results:       make(map[uuid.UUID]model.Result),
	}
}

// clone copies the maps. Stored values are never mutated in place, so a
// shallow copy of each map is a full snapshot.
func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.exams {
		c.exams[k] = v
	}
	for k, v := range d.questions {
		c.questions[k] = v
	}
	for k, v := range d.examQuestions {
		c.examQuestions[k] = v
	}
	for k, v := range d.attempts {
		c.attempts[k] = v
	}
	for k, v := range d.answers {
		c.answers[k] = v
	}
	for k, v := range d.results {
		c.results[k] = v
	}
	return c
}

// MemoryStore is an in-process Store. Every call, and every InTx body, runs
// under one mutex, so transactions are serializable. A failed transaction
// restores the snapshot taken when it began.
type MemoryStore struct {
	mu sync.Mutex
	d  *memData
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{d: newMemData()}
}

// InTx runs fn with the store locked and rolls back on error.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(&memTx{d: s.d}); err != nil {
		*s.d = *snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) locked() (*memTx, func()) {
	s.mu.Lock()
	return &memTx{d: s.d}, s.mu.Unlock
}

func (s *MemoryStore) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.GetExam(ctx, id)
}

func (s *MemoryStore) CreateExam(ctx context.Context, e *model.Exam) error {
	tx, unlock := s.locked()
	defer unlock()
	return tx.CreateExam(ctx, e)
}

func (s *MemoryStore) ListPublishedExams(ctx context.Context) ([]model.Exam, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.ListPublishedExams(ctx)
}

func (s *MemoryStore) AddQuestions(ctx context.Context, examID uuid.UUID, qs []model.Question) error {
	tx, unlock := s.locked()
	defer unlock()
	return tx.AddQuestions(ctx, examID, qs)
}

func (s *MemoryStore) ListPoolQuestions(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.ListPoolQuestions(ctx, examID)
}

func (s *MemoryStore) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.GetQuestion(ctx, id)
}

func (s *MemoryStore) ListQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.ListQuestionsByIDs(ctx, ids)
}

func (s *MemoryStore) FindOpenAttempt(ctx context.Context, userID string, examID uuid.UUID) (*model.Attempt, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.FindOpenAttempt(ctx, userID, examID)
}

func (s *MemoryStore) CountAttempts(ctx context.Context, userID string, examID uuid.UUID) (int, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.CountAttempts(ctx, userID, examID)
}

func (s *MemoryStore) CreateAttempt(ctx context.Context, a *model.Attempt) error {
	tx, unlock := s.locked()
	defer unlock()
	return tx.CreateAttempt(ctx, a)
}

func (s *MemoryStore) GetAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.GetAttempt(ctx, id)
}

func (s *MemoryStore) LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.LockAttempt(ctx, id)
}

func (s *MemoryStore) MarkSubmitted(ctx context.Context, id uuid.UUID, version int, at time.Time, spent int, auto bool) (bool, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.MarkSubmitted(ctx, id, version, at, spent, auto)
}

func (s *MemoryStore) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	tx, unlock := s.locked()
	defer unlock()
	return tx.UpsertAnswer(ctx, a)
}

func (s *MemoryStore) GetAnswer(ctx context.Context, attemptID, questionID uuid.UUID) (*model.Answer, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.GetAnswer(ctx, attemptID, questionID)
}

func (s *MemoryStore) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.ListAnswers(ctx, attemptID)
}

func (s *MemoryStore) GetResult(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.GetResult(ctx, attemptID)
}

func (s *MemoryStore) InsertResult(ctx context.Context, r *model.Result) (bool, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.InsertResult(ctx, r)
}

func (s *MemoryStore) ExamStanding(ctx context.Context, examID uuid.UUID, score decimal.Decimal) (int, int, error) {
	tx, unlock := s.locked()
	defer unlock()
	return tx.ExamStanding(ctx, examID, score)
}

// memTx operates on the data directly. Its caller holds the store mutex.
type memTx struct {
	d *memData
}

func (t *memTx) InTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTx) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := t.d.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (t *memTx) CreateExam(_ context.Context, e *model.Exam) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	t.d.exams[e.ID] = *e
	return nil
}

func (t *memTx) ListPublishedExams(_ context.Context) ([]model.Exam, error) {
	var exams []model.Exam
	for _, e := range t.d.exams {
		if e.IsActive && e.IsPublished {
			exams = append(exams, e)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].CreatedAt.Before(exams[j].CreatedAt) })
	return exams, nil
}

func (t *memTx) AddQuestions(_ context.Context, examID uuid.UUID, qs []model.Question) error {
	linked := append([]uuid.UUID(nil), t.d.examQuestions[examID]...)
	for i := range qs {
		if qs[i].ID == uuid.Nil {
			qs[i].ID = uuid.New()
		}
		t.d.questions[qs[i].ID] = qs[i]
		linked = append(linked, qs[i].ID)
	}
	t.d.examQuestions[examID] = linked
	return nil
}

func (t *memTx) ListPoolQuestions(_ context.Context, examID uuid.UUID) ([]model.PoolQuestion, error) {
	var pool []model.PoolQuestion
	for _, id := range t.d.examQuestions[examID] {
		q, ok := t.d.questions[id]
		if !ok || !q.IsActive {
			continue
		}
		pool = append(pool, model.PoolQuestion{ID: q.ID, Subject: q.Subject, Difficulty: q.Difficulty})
	}
	return pool, nil
}

func (t *memTx) GetQuestion(_ context.Context, id uuid.UUID) (*model.Question, error) {
	q, ok := t.d.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (t *memTx) ListQuestionsByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := t.d.questions[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func copyAttempt(a model.Attempt) *model.Attempt {
	a.QuestionIDs = append([]uuid.UUID(nil), a.QuestionIDs...)
	return &a
}

func (t *memTx) FindOpenAttempt(_ context.Context, userID string, examID uuid.UUID) (*model.Attempt, error) {
	for _, a := range t.d.attempts {
		if a.UserID == userID && a.ExamID == examID && !a.IsCompleted {
			return copyAttempt(a), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) CountAttempts(_ context.Context, userID string, examID uuid.UUID) (int, error) {
	n := 0
	for _, a := range t.d.attempts {
		if a.UserID == userID && a.ExamID == examID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreateAttempt(_ context.Context, a *model.Attempt) error {
	for _, other := range t.d.attempts {
		if other.UserID != a.UserID || other.ExamID != a.ExamID {
			continue
		}
		if !other.IsCompleted || other.AttemptNumber == a.AttemptNumber {
			return ErrOpenAttemptExists
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	t.d.attempts[a.ID] = *copyAttempt(*a)
	return nil
}

func (t *memTx) GetAttempt(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := t.d.attempts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAttempt(a), nil
}

func (t *memTx) LockAttempt(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return t.GetAttempt(ctx, id)
}

func (t *memTx) MarkSubmitted(_ context.Context, id uuid.UUID, version int, at time.Time, spent int, auto bool) (bool, error) {
	a, ok := t.d.attempts[id]
	if !ok || a.IsCompleted || a.Version != version {
		return false, nil
	}
	a.IsCompleted = true
	a.SubmittedAt = &at
	a.TimeSpentSeconds = &spent
	a.AutoSubmitted = auto
	a.Version++
	t.d.attempts[id] = a
	return true, nil
}

func (t *memTx) UpsertAnswer(_ context.Context, a *model.Answer) error {
	stored := *a
	if a.SelectedOption != nil {
		opt := *a.SelectedOption
		stored.SelectedOption = &opt
	}
	t.d.answers[answerKey{a.AttemptID, a.QuestionID}] = stored
	return nil
}

func (t *memTx) GetAnswer(_ context.Context, attemptID, questionID uuid.UUID) (*model.Answer, error) {
	a, ok := t.d.answers[answerKey{attemptID, questionID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (t *memTx) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	answers := []model.Answer{}
	for k, a := range t.d.answers {
		if k.attemptID == attemptID {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].AnsweredAt.Before(answers[j].AnsweredAt) })
	return answers, nil
}

func (t *memTx) GetResult(_ context.Context, attemptID uuid.UUID) (*model.Result, error) {
	r, ok := t.d.results[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memTx) InsertResult(_ context.Context, r *model.Result) (bool, error) {
	if _, ok := t.d.results[r.AttemptID]; ok {
		return false, nil
	}
	t.d.results[r.AttemptID] = *r
	return true, nil
}

func (t *memTx) ExamStanding(_ context.Context, examID uuid.UUID, score decimal.Decimal) (int, int, error) {
	existing, higher := 0, 0
	for _, r := range t.d.results {
		if r.ExamID != examID {
			continue
		}
		existing++
		if r.TotalScore.GreaterThan(score) {
			higher++
		}
	}
	return existing, higher, nil
}

var _ Store = (*MemoryStore)(nil)
