package app

import (
	"context"
	"fmt"
	"time"

	"quiz-session-service/internal/domain"

	"github.com/google/uuid"
)

// SnapshotStore is the durable key-value slot holding one encoded snapshot per key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// QuizProvider supplies quiz definitions and the user's attempt history.
type QuizProvider interface {
	GetQuiz(ctx context.Context, quizID, userID string) (domain.QuizView, error)
}

// AttemptRecorder scores and records a finished attempt. Implementations that
// already hold sub.AttemptID return the stored result with ErrAlreadySubmitted.
type AttemptRecorder interface {
	SubmitAttempt(ctx context.Context, sub domain.Submission) (domain.Result, error)
}

// CompletionPublisher is notified after a result has been stored.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, attempt domain.Attempt) error
}

// SessionRegistry holds the live Session objects of this process. Acquire and
// Release count holders; a session is dropped when its last holder leaves.
type SessionRegistry interface {
	Acquire(key string, create func() *Session) *Session
	Get(key string) (*Session, bool)
	Release(key string)
}

// Settings tunes the timer and the finish path.
type Settings struct {
	TickInterval  time.Duration
	SubmitTimeout time.Duration
	SubmitRetries int
	SubmitBackoff time.Duration
	SubmitGrace   time.Duration
}

// DefaultSettings are used for any zero field.
func DefaultSettings() Settings {
	return Settings{
		TickInterval:  time.Second,
		SubmitTimeout: 10 * time.Second,
		SubmitRetries: 3,
		SubmitBackoff: 500 * time.Millisecond,
		SubmitGrace:   30 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.TickInterval <= 0 {
		s.TickInterval = d.TickInterval
	}
	if s.SubmitTimeout <= 0 {
		s.SubmitTimeout = d.SubmitTimeout
	}
	if s.SubmitRetries < 0 {
		s.SubmitRetries = 0
	}
	if s.SubmitBackoff <= 0 {
		s.SubmitBackoff = d.SubmitBackoff
	}
	if s.SubmitGrace <= 0 {
		s.SubmitGrace = d.SubmitGrace
	}
	return s
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func WithSettings(settings Settings) Option {
	return func(s *QuizService) { s.settings = settings.withDefaults() }
}

func WithSequencer(seq *Sequencer) Option {
	return func(s *QuizService) { s.sequencer = seq }
}

func WithPublisher(pub CompletionPublisher) Option {
	return func(s *QuizService) { s.publisher = pub }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

// QuizService opens and closes timed quiz sessions.
type QuizService struct {
	store     SnapshotStore
	registry  SessionRegistry
	quizzes   QuizProvider
	recorder  AttemptRecorder
	publisher CompletionPublisher
	sequencer *Sequencer
	settings  Settings
	now       func() time.Time
	newID     func() string
}

func NewQuizService(store SnapshotStore, registry SessionRegistry, quizzes QuizProvider, recorder AttemptRecorder, opts ...Option) *QuizService {
	s := &QuizService{
		store:     store,
		registry:  registry,
		quizzes:   quizzes,
		recorder:  recorder,
		sequencer: NewSequencer(),
		settings:  DefaultSettings(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open fetches the quiz, attaches the caller to the live session for
// (userID, quizID) and mounts it from the snapshot store.
func (s *QuizService) Open(ctx context.Context, quizID, userID string) (*Session, domain.SessionView, error) {
	view, err := s.quizzes.GetQuiz(ctx, quizID, userID)
	if err != nil {
		return nil, domain.SessionView{}, fmt.Errorf("%w: %w", domain.ErrDefinitionUnavailable, err)
	}

	key := domain.SnapshotKey(userID, quizID)
	session := s.registry.Acquire(key, func() *Session {
		return s.NewSession(quizID, userID, view)
	})
	session.refresh(view)

	state, err := session.Mount(ctx)
	if err != nil {
		s.Close(quizID, userID)
		return nil, domain.SessionView{}, err
	}
	return session, state, nil
}

// Close detaches one holder. The last holder suspends the countdown; the
// snapshot stays as-is so the session resumes on the next Open.
func (s *QuizService) Close(quizID, userID string) {
	s.registry.Release(domain.SnapshotKey(userID, quizID))
}

// Result is the terminal read: the recorded result for a completed session,
// read straight from the snapshot store.
func (s *QuizService) Result(ctx context.Context, quizID, userID string) (*domain.Result, error) {
	if session, ok := s.registry.Get(domain.SnapshotKey(userID, quizID)); ok {
		if result := session.Result(); result != nil {
			return result, nil
		}
	}
	raw, ok, err := s.store.Load(ctx, domain.SnapshotKey(userID, quizID))
	if err != nil || !ok {
		return nil, err
	}
	snap, valid := domain.DecodeSnapshot(raw)
	if !valid || snap.Phase() != domain.PhaseCompleted {
		return nil, nil
	}
	return snap.Result, nil
}

// NewSession builds an unregistered session wired to the service dependencies.
// Open is the normal entry point; this is exported for registries and tests.
func (s *QuizService) NewSession(quizID, userID string, view domain.QuizView) *Session {
	return &Session{
		key:       domain.SnapshotKey(userID, quizID),
		quizID:    quizID,
		userID:    userID,
		quiz:      view,
		store:     s.store,
		recorder:  s.recorder,
		publisher: s.publisher,
		sequencer: s.sequencer,
		settings:  s.settings,
		now:       s.now,
		newID:     s.newID,
		timer:     NewTimer(s.settings.TickInterval, s.now),
		observers: make(map[int]func(domain.SessionView)),
		subs:      make(map[chan domain.SessionView]struct{}),
	}
}
