package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// Session drives one user's attempt at one quiz. Every transition runs under
// mu and is persisted before it becomes visible; the recorder call in finish
// is the only step that runs unlocked.
type Session struct {
	key    string
	quizID string
	userID string

	store     SnapshotStore
	recorder  AttemptRecorder
	publisher CompletionPublisher
	sequencer *Sequencer
	settings  Settings
	now       func() time.Time
	newID     func() string
	timer     *Timer

	mu         sync.Mutex
	quiz       domain.QuizView
	snap       domain.SessionSnapshot
	mounted    bool
	submitting bool
	holders    int

	obsMu     sync.Mutex
	nextObs   int
	observers map[int]func(domain.SessionView)
	subs      map[chan domain.SessionView]struct{}
}

// Mount restores the session from the snapshot store. An absent or corrupt
// record leaves the session not started; an in-progress record whose clock
// has run out is timed out immediately.
func (s *Session) Mount(ctx context.Context) (domain.SessionView, error) {
	s.mu.Lock()
	if s.mounted {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	}

	snap, err := s.loadLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return domain.SessionView{}, err
	}
	s.snap = snap
	s.mounted = true

	now := s.now()
	switch snap.Phase() {
	case domain.PhaseSelecting, domain.PhaseConfirmed:
		sessionsResumed.Inc()
		if s.expiredLocked(now) {
			s.mu.Unlock()
			return s.Timeout(ctx)
		}
		s.startTimerLocked()
	case domain.PhaseSubmitting:
		if s.staleSubmissionLocked(now) {
			s.mu.Unlock()
			return s.Finish(ctx)
		}
		s.watchSubmissionLocked()
	}
	view := s.viewLocked()
	s.mu.Unlock()
	return view, nil
}

// Start begins a new attempt.
func (s *Session) Start(ctx context.Context) (domain.SessionView, error) {
	s.mu.Lock()
	switch s.snap.Phase() {
	case domain.PhaseCompleted:
		err := domain.ErrRetakeRequired
		if !s.quiz.Definition.Features.AllowRetakes {
			err = domain.ErrRetakeNotAllowed
		}
		return s.rejectLocked(err)
	case domain.PhaseNotStarted:
		if !s.quiz.CanAttempt {
			return s.rejectLocked(domain.ErrNotEligible)
		}
	}

	next, _, err := Transition(s.snap, Event{
		Kind:      EventStart,
		At:        s.now(),
		QuizID:    s.quizID,
		AttemptID: s.newID(),
		Order:     s.sequencer.Order(s.quiz.Definition),
	})
	if err != nil {
		return s.rejectLocked(err)
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		return s.rejectLocked(fmt.Errorf("clear snapshot: %w", err))
	}
	if err := s.saveLocked(ctx, next); err != nil {
		return s.rejectLocked(err)
	}
	s.snap = next
	s.startTimerLocked()
	sessionsStarted.Inc()
	return s.commitLocked(), nil
}

// Select records the in-flight choice for the current question.
func (s *Session) Select(ctx context.Context, option int) (domain.SessionView, error) {
	return s.apply(ctx, Event{Kind: EventSelect, Option: option})
}

// Confirm locks in the selected option.
func (s *Session) Confirm(ctx context.Context) (domain.SessionView, error) {
	return s.apply(ctx, Event{Kind: EventConfirm})
}

// Advance moves past a confirmed question, finishing after the last one.
func (s *Session) Advance(ctx context.Context) (domain.SessionView, error) {
	return s.apply(ctx, Event{Kind: EventAdvance})
}

// Timeout ends the session because the clock ran out. Stale calls after the
// session finished are no-ops.
func (s *Session) Timeout(ctx context.Context) (domain.SessionView, error) {
	return s.apply(ctx, Event{Kind: EventTimeout})
}

// Retake clears a completed session so Start can begin a new attempt.
func (s *Session) Retake(ctx context.Context) (domain.SessionView, error) {
	s.mu.Lock()
	switch s.snap.Phase() {
	case domain.PhaseNotStarted:
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	case domain.PhaseSubmitting:
		return s.rejectLocked(domain.ErrSubmitting)
	case domain.PhaseSelecting, domain.PhaseConfirmed:
		return s.rejectLocked(domain.ErrSessionInProgress)
	}
	if !s.quiz.Definition.Features.AllowRetakes {
		return s.rejectLocked(domain.ErrRetakeNotAllowed)
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		return s.rejectLocked(fmt.Errorf("delete snapshot: %w", err))
	}
	s.snap = domain.SessionSnapshot{}
	s.quiz.CanAttempt = true
	return s.commitLocked(), nil
}

// Reset abandons an in-progress session and deletes its snapshot.
func (s *Session) Reset(ctx context.Context) (domain.SessionView, error) {
	s.mu.Lock()
	switch s.snap.Phase() {
	case domain.PhaseNotStarted:
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	case domain.PhaseSubmitting:
		return s.rejectLocked(domain.ErrSubmitting)
	case domain.PhaseCompleted:
		return s.rejectLocked(domain.ErrSessionCompleted)
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		return s.rejectLocked(fmt.Errorf("delete snapshot: %w", err))
	}
	s.timer.Cancel()
	s.snap = domain.SessionSnapshot{}
	return s.commitLocked(), nil
}

// Result is non-nil only once the session is completed.
func (s *Session) Result() *domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Phase() != domain.PhaseCompleted {
		return nil
	}
	result := *s.snap.Result
	return &result
}

// Snapshot returns a copy of the current snapshot.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// View returns the current observable state.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Sync returns the current view after picking up a result recorded by
// another instance of this session.
func (s *Session) Sync(ctx context.Context) domain.SessionView {
	s.mu.Lock()
	if s.adoptRecordedLocked(ctx) {
		return s.commitLocked()
	}
	view := s.viewLocked()
	s.mu.Unlock()
	return view
}

// Remaining is the time left on the session clock, zero outside a running session.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(s.now())
}

// Retain registers a holder.
func (s *Session) Retain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders++
	if s.holders == 1 {
		liveSessions.Inc()
	}
}

// Release drops a holder. When none are left the countdown is canceled and
// the next Mount re-reads the store.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holders == 0 {
		return
	}
	s.holders--
	if s.holders == 0 {
		liveSessions.Dec()
		s.timer.Cancel()
		s.mounted = false
	}
}

// IsIdle reports whether no holder is attached.
func (s *Session) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holders == 0
}

func (s *Session) refresh(view domain.QuizView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiz = view
}

func (s *Session) apply(ctx context.Context, ev Event) (domain.SessionView, error) {
	s.mu.Lock()
	if answering(ev.Kind) && s.expiredLocked(s.now()) {
		// past the deadline only the timeout path is open; it retries the submission
		s.mu.Unlock()
		view, err := s.Timeout(ctx)
		if err != nil {
			return view, fmt.Errorf("%w: %w", domain.ErrTimeExpired, err)
		}
		return view, domain.ErrTimeExpired
	}
	next, effect, err := Transition(s.snap, ev)
	if err != nil {
		return s.rejectLocked(err)
	}
	if ev.Kind == EventTimeout {
		if effect == EffectNone {
			view := s.viewLocked()
			s.mu.Unlock()
			return view, nil
		}
		sessionTimeouts.Inc()
	}
	if err := s.saveLocked(ctx, next); err != nil {
		return s.rejectLocked(err)
	}
	s.snap = next
	view := s.commitLocked()

	if effect == EffectFinish {
		return s.finish(ctx, ev.Kind == EventTimeout)
	}
	return view, nil
}

func answering(kind EventKind) bool {
	return kind == EventSelect || kind == EventConfirm || kind == EventAdvance
}

// rejectLocked unlocks and returns the unchanged view with err.
func (s *Session) rejectLocked(err error) (domain.SessionView, error) {
	view := s.viewLocked()
	s.mu.Unlock()
	return view, err
}

// commitLocked unlocks and notifies observers of the new state.
func (s *Session) commitLocked() domain.SessionView {
	view := s.viewLocked()
	s.mu.Unlock()
	s.emit(view)
	return view
}

func (s *Session) loadLocked(ctx context.Context) (domain.SessionSnapshot, error) {
	raw, ok, err := s.store.Load(ctx, s.key)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return domain.SessionSnapshot{}, nil
	}
	snap, valid := domain.DecodeSnapshot(raw)
	if valid && snap.QuizID == s.quizID {
		return snap, nil
	}

	log.Printf("discarding unreadable snapshot %s", s.key)
	snapshotsDiscarded.Inc()
	if err := s.store.Delete(ctx, s.key); err != nil {
		log.Printf("delete snapshot %s: %v", s.key, err)
	}
	return domain.SessionSnapshot{}, nil
}

func (s *Session) saveLocked(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Session) remainingLocked(now time.Time) time.Duration {
	if s.snap.Status != domain.StatusInProgress {
		return 0
	}
	return Remaining(time.UnixMilli(s.snap.StartedAtEpochMs), s.quiz.Definition.TimeBudget(), now)
}

func (s *Session) expiredLocked(now time.Time) bool {
	return s.snap.Status == domain.StatusInProgress && s.remainingLocked(now) <= 0
}

// staleSubmissionLocked reports whether a completed-without-result snapshot
// has outlived the grace window, i.e. the submitting mount is gone.
func (s *Session) staleSubmissionLocked(now time.Time) bool {
	return now.UnixMilli()-s.snap.SubmittedAtEpochMs >= s.settings.SubmitGrace.Milliseconds()
}

func (s *Session) startTimerLocked() {
	anchor := time.UnixMilli(s.snap.StartedAtEpochMs)
	s.timer.Start(anchor, s.quiz.Definition.TimeBudget(), s.onTick, s.onExpire)
}

func (s *Session) onTick(time.Duration) {
	s.mu.Lock()
	if s.snap.Status != domain.StatusInProgress {
		s.mu.Unlock()
		return
	}
	view := s.viewLocked()
	s.mu.Unlock()
	s.emit(view)
}

func (s *Session) onExpire() {
	if _, err := s.Timeout(context.Background()); err != nil {
		log.Printf("session %s timeout: %v", s.key, err)
	}
}

// OnStateChange registers fn for every transition and timer tick. Callbacks
// run outside the session lock. The returned func unregisters fn.
func (s *Session) OnStateChange(fn func(domain.SessionView)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// Subscribe returns a channel that receives the current view followed by
// every change. The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)
	ch <- s.View()

	s.obsMu.Lock()
	s.subs[ch] = struct{}{}
	s.obsMu.Unlock()

	cancel := func() {
		s.obsMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.obsMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) emit(view domain.SessionView) {
	s.obsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- view:
		default:
			// slow reader: drop the oldest view, the newest one supersedes it
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	fns := make([]func(domain.SessionView), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}
