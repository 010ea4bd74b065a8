package app_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

var t0 = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeProvider struct {
	mu   sync.Mutex
	view domain.QuizView
	err  error
}

func (p *fakeProvider) GetQuiz(_ context.Context, quizID, _ string) (domain.QuizView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return domain.QuizView{}, p.err
	}
	if quizID != p.view.Definition.ID {
		return domain.QuizView{}, domain.ErrQuizNotFound
	}
	return p.view, nil
}

// fakeRecorder grades nothing; it returns result and counts calls. errs are
// returned in order before it starts succeeding. gate, when set, blocks
// every call until closed.
type fakeRecorder struct {
	mu      sync.Mutex
	calls   int
	subs    []domain.Submission
	errs    []error
	result  domain.Result
	dupErr  bool
	gate    chan struct{}
	entered chan struct{}
}

func (r *fakeRecorder) SubmitAttempt(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	r.mu.Lock()
	r.calls++
	r.subs = append(r.subs, sub)
	gate, entered := r.gate, r.entered
	var err error
	if len(r.errs) > 0 {
		err, r.errs = r.errs[0], r.errs[1:]
	}
	result, dup := r.result, r.dupErr
	r.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Result{}, err
	}
	if dup {
		return result, domain.ErrAlreadySubmitted
	}
	return result, nil
}

func (r *fakeRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRecorder) LastSubmission() domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[len(r.subs)-1]
}

type harness struct {
	store    *memory.SnapshotStore
	provider *fakeProvider
	recorder *fakeRecorder
	clock    *fakeClock
	ids      int
}

func newHarness(def domain.QuizDefinition) *harness {
	return &harness{
		store:    memory.NewSnapshotStore(),
		provider: &fakeProvider{view: domain.QuizView{Definition: def, CanAttempt: true}},
		recorder: &fakeRecorder{result: domain.Result{Score: 1, MaxScore: 1, Percentage: 100}},
		clock:    newFakeClock(),
	}
}

// service builds a fresh service over the shared store, which is what a page
// reload or a second instance sees.
func (h *harness) service(opts ...app.Option) *app.QuizService {
	base := []app.Option{
		app.WithClock(h.clock.Now),
		app.WithSettings(app.Settings{
			TickInterval:  time.Hour,
			SubmitTimeout: time.Second,
			SubmitRetries: 0,
			SubmitBackoff: time.Millisecond,
			SubmitGrace:   30 * time.Second,
		}),
		app.WithIDGenerator(func() string {
			h.ids++
			return "attempt-" + strconv.Itoa(h.ids)
		}),
	}
	return app.NewQuizService(h.store, memory.NewSessionRegistry(), h.provider, h.recorder, append(base, opts...)...)
}

func (h *harness) open(t *testing.T, svc *app.QuizService) (*app.Session, domain.SessionView) {
	t.Helper()
	session, view, err := svc.Open(context.Background(), "quiz-1", "u1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { svc.Close("quiz-1", "u1") })
	return session, view
}

func (h *harness) stored(t *testing.T) (domain.SessionSnapshot, bool) {
	t.Helper()
	raw, ok, err := h.store.Load(context.Background(), domain.SnapshotKey("u1", "quiz-1"))
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !ok {
		return domain.SessionSnapshot{}, false
	}
	snap, valid := domain.DecodeSnapshot(raw)
	if !valid {
		t.Fatalf("stored snapshot does not decode: %s", raw)
	}
	return snap, true
}

// answer selects and confirms option on the current question, then advances.
func answer(t *testing.T, s *app.Session, option int) domain.SessionView {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Select(ctx, option); err != nil {
		t.Fatalf("select %d: %v", option, err)
	}
	if _, err := s.Confirm(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	view, err := s.Advance(ctx)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return view
}

func quiz(n int, features domain.Features) domain.QuizDefinition {
	def := domain.QuizDefinition{ID: "quiz-1", Title: "Sample", TimeLimitMinutes: 30, Features: features}
	for i := 0; i < n; i++ {
		def.Questions = append(def.Questions, domain.Question{
			ID:                 "q" + strconv.Itoa(i+1),
			Text:               "Question",
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: i % 4,
			Explanation:        "because",
			Points:             1,
		})
	}
	return def
}
