package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
)

type mapPoolCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]model.PoolQuestion
	getErr  error
	deletes int
}

func newMapPoolCache() *mapPoolCache {
	return &mapPoolCache{entries: make(map[uuid.UUID][]model.PoolQuestion)}
}

func (c *mapPoolCache) Get(_ context.Context, examID uuid.UUID) ([]model.PoolQuestion, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	pool, ok := c.entries[examID]
	return pool, ok, nil
}

func (c *mapPoolCache) Set(_ context.Context, examID uuid.UUID, pool []model.PoolQuestion) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[examID] = pool
	return nil
}

func (c *mapPoolCache) Delete(_ context.Context, examID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, examID)
	c.deletes++
	return nil
}

// countingStore counts pool reads on top of a MemoryStore.
type countingStore struct {
	*repository.MemoryStore
	reads atomic.Int32
}

func (s *countingStore) ListPoolQuestions(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, error) {
	s.reads.Add(1)
	return s.MemoryStore.ListPoolQuestions(ctx, examID)
}

func seedPoolExam(t *testing.T, store repository.Store) *model.Exam {
	t.Helper()
	ctx := context.Background()
	exam := &model.Exam{
		Title:                  "Pool",
		TotalQuestions:         2,
		DurationMinutes:        10,
		MaxAttempts:            1,
		DifficultyDistribution: model.DifficultyDistribution{model.DifficultyHard: 100},
		SubjectDistribution:    model.SubjectDistribution{"Biology": 2},
		IsActive:               true,
		IsPublished:            true,
	}
	if err := store.CreateExam(ctx, exam); err != nil {
		t.Fatalf("CreateExam() error = %v", err)
	}
	qs := []model.Question{
		{Subject: "Biology", Difficulty: model.DifficultyHard, CorrectOption: "A", IsActive: true},
	}
	if err := store.AddQuestions(ctx, exam.ID, qs); err != nil {
		t.Fatalf("AddQuestions() error = %v", err)
	}
	return exam
}

func TestPoolService_LoadUsesCache(t *testing.T) {
	store := &countingStore{MemoryStore: repository.NewMemoryStore()}
	exam := seedPoolExam(t, store)
	cache := newMapPoolCache()
	svc := NewPoolService(store, cache, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pool, err := svc.Load(ctx, exam.ID)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(pool) != 1 {
			t.Fatalf("pool size = %d, want 1", len(pool))
		}
	}
	if got := store.reads.Load(); got != 1 {
		t.Errorf("store reads = %d, want 1", got)
	}

	cache.getErr = errors.New("redis down")
	if _, err := svc.Load(ctx, exam.ID); err != nil {
		t.Fatalf("Load() with failing cache error = %v", err)
	}
	if got := store.reads.Load(); got != 2 {
		t.Errorf("store reads after cache failure = %d, want 2", got)
	}
}

func TestPoolService_ValidateAndRefresh(t *testing.T) {
	store := repository.NewMemoryStore()
	exam := seedPoolExam(t, store)
	cache := newMapPoolCache()
	svc := NewPoolService(store, cache, zerolog.Nop())
	ctx := context.Background()

	report, err := svc.Validate(ctx, exam.ID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if report.IsValid || report.Available != 1 || len(report.Errors) == 0 {
		t.Errorf("report = %+v, want invalid with 1 available", report)
	}

	// Stale cache until refreshed.
	more := []model.Question{{Subject: "Biology", Difficulty: model.DifficultyHard, CorrectOption: "B", IsActive: true}}
	if err := store.AddQuestions(ctx, exam.ID, more); err != nil {
		t.Fatalf("AddQuestions() error = %v", err)
	}
	report, _ = svc.Validate(ctx, exam.ID)
	if report.Available != 1 {
		t.Errorf("cached available = %d, want 1", report.Available)
	}

	report, err = svc.Refresh(ctx, exam.ID)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !report.IsValid || report.Available != 2 || len(report.Errors) != 0 {
		t.Errorf("refreshed report = %+v, want valid with 2 available", report)
	}
	if cache.deletes != 1 {
		t.Errorf("cache deletes = %d, want 1", cache.deletes)
	}

	if _, err := svc.Validate(ctx, uuid.New()); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("Validate(missing) error = %v, want ErrExamNotFound", err)
	}
}

func TestExamService_Create(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewExamService(store, NewPoolService(store, nil, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	bad := &model.Exam{
		Title:                  "Broken",
		TotalQuestions:         10,
		DurationMinutes:        30,
		MaxAttempts:            1,
		DifficultyDistribution: model.DifficultyDistribution{model.DifficultyEasy: 90},
		SubjectDistribution:    model.SubjectDistribution{"Physics": 9},
	}
	err := svc.Create(ctx, bad)
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Create() error = %v, want ConfigError", err)
	}
	for _, field := range []string{"difficulty_distribution", "subject_distribution", "marking_scheme.correct_marks"} {
		if _, ok := cfgErr.Fields[field]; !ok {
			t.Errorf("missing field error for %s in %v", field, cfgErr.Fields)
		}
	}
	if KindOf(err) != KindInvalid {
		t.Errorf("KindOf() = %v, want KindInvalid", KindOf(err))
	}
}

func TestExamService_AddQuestionsRejectsBadRows(t *testing.T) {
	store := repository.NewMemoryStore()
	exam := seedPoolExam(t, store)
	svc := NewExamService(store, NewPoolService(store, nil, zerolog.Nop()), zerolog.Nop())

	err := svc.AddQuestions(context.Background(), exam.ID, []model.Question{
		{Subject: "Biology", Difficulty: "IMPOSSIBLE", CorrectOption: "A"},
	})
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("AddQuestions() error = %v, want ConfigError", err)
	}

	if err := svc.AddQuestions(context.Background(), uuid.New(), nil); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("AddQuestions(missing exam) error = %v, want ErrExamNotFound", err)
	}
}

// blockingStore holds pool reads until release is closed and records
// whether the read context was still live when it returned.
type blockingStore struct {
	*repository.MemoryStore
	once    sync.Once
	started chan struct{}
	release chan struct{}
	readErr chan error
}

func (s *blockingStore) ListPoolQuestions(ctx context.Context, examID uuid.UUID) ([]model.PoolQuestion, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	s.readErr <- ctx.Err()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.ListPoolQuestions(ctx, examID)
}

func TestPoolService_SharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	store := &blockingStore{
		MemoryStore: repository.NewMemoryStore(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
		readErr:     make(chan error, 2),
	}
	exam := seedPoolExam(t, store.MemoryStore)
	svc := NewPoolService(store, nil, zerolog.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = svc.Load(firstCtx, exam.ID)
	}()
	<-store.started

	type loadResult struct {
		pool []model.PoolQuestion
		err  error
	}
	second := make(chan loadResult, 1)
	go func() {
		pool, err := svc.Load(context.Background(), exam.ID)
		second <- loadResult{pool, err}
	}()

	// Let the second caller join the in-flight read, then drop the first.
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	close(store.release)

	if err := <-store.readErr; err != nil {
		t.Fatalf("shared read context error = %v, want nil", err)
	}
	res := <-second
	if res.err != nil {
		t.Fatalf("second Load() error = %v, want nil", res.err)
	}
	if len(res.pool) != 1 {
		t.Errorf("second Load() pool size = %d, want 1", len(res.pool))
	}
	<-firstDone
}

var errLinkFailed = errors.New("link copy failed")

// failingLinkStore runs transactions whose AddQuestions writes the
// question rows and then fails, like a broken second COPY.
type failingLinkStore struct {
	repository.Store
}

func (s failingLinkStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.InTx(ctx, func(tx repository.Store) error {
		return fn(failingLinkTx{tx})
	})
}

type failingLinkTx struct {
	repository.Store
}

func (t failingLinkTx) AddQuestions(ctx context.Context, examID uuid.UUID, qs []model.Question) error {
	if err := t.Store.AddQuestions(ctx, examID, qs); err != nil {
		return err
	}
	return errLinkFailed
}

func TestExamService_AddQuestionsIsAtomic(t *testing.T) {
	mem := repository.NewMemoryStore()
	exam := seedPoolExam(t, mem)
	store := failingLinkStore{mem}
	svc := NewExamService(store, NewPoolService(store, nil, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	qs := []model.Question{{Subject: "Biology", Difficulty: model.DifficultyHard, CorrectOption: "C", IsActive: true}}
	if err := svc.AddQuestions(ctx, exam.ID, qs); !errors.Is(err, errLinkFailed) {
		t.Fatalf("AddQuestions() error = %v, want errLinkFailed", err)
	}

	if _, err := mem.GetQuestion(ctx, qs[0].ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetQuestion() after failed import error = %v, want ErrNotFound", err)
	}
	pool, err := mem.ListPoolQuestions(ctx, exam.ID)
	if err != nil {
		t.Fatalf("ListPoolQuestions() error = %v", err)
	}
	if len(pool) != 1 {
		t.Errorf("pool size = %d, want the original 1", len(pool))
	}
}
