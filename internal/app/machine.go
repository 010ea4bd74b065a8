package app

import (
	"time"

	"quiz-session-service/internal/domain"
)

// EventKind names a state-machine input.
type EventKind string

const (
	EventStart           EventKind = "start"
	EventSelect          EventKind = "select"
	EventConfirm         EventKind = "confirm"
	EventAdvance         EventKind = "advance"
	EventTimeout         EventKind = "timeout"
	EventFinishBegin     EventKind = "finish_begin"
	EventFinishSucceeded EventKind = "finish_succeeded"
	EventFinishFailed    EventKind = "finish_failed"
)

// Event is a single input to Transition. Only the fields relevant to Kind are read.
type Event struct {
	Kind EventKind
	At   time.Time

	// start
	QuizID    string
	AttemptID string
	Order     []domain.Question

	// select
	Option int

	// finish_begin: the session clock has run out
	Expired bool

	// finish_succeeded
	Result domain.Result
}

// Effect is a follow-up the caller must run after persisting the new snapshot.
type Effect int

const (
	EffectNone Effect = iota
	EffectFinish
)

// Transition is the pure session state machine. It never mutates s; on error
// the returned snapshot equals s.
func Transition(s domain.SessionSnapshot, ev Event) (domain.SessionSnapshot, Effect, error) {
	switch ev.Kind {
	case EventStart:
		return start(s, ev)
	case EventSelect:
		return selectOption(s, ev.Option)
	case EventConfirm:
		return confirm(s)
	case EventAdvance:
		return advance(s)
	case EventTimeout:
		return timeout(s)
	case EventFinishBegin:
		return finishBegin(s, ev)
	case EventFinishSucceeded:
		return finishSucceeded(s, ev.Result)
	case EventFinishFailed:
		return finishFailed(s)
	default:
		return s, EffectNone, domain.ErrInvalidTransition
	}
}

func start(s domain.SessionSnapshot, ev Event) (domain.SessionSnapshot, Effect, error) {
	switch s.Phase() {
	case domain.PhaseNotStarted:
	case domain.PhaseSubmitting:
		return s, EffectNone, domain.ErrSubmitting
	case domain.PhaseCompleted:
		return s, EffectNone, domain.ErrSessionCompleted
	default:
		return s, EffectNone, domain.ErrSessionInProgress
	}
	if len(ev.Order) == 0 || ev.QuizID == "" || ev.AttemptID == "" {
		return s, EffectNone, domain.ErrInvalidTransition
	}
	return domain.SessionSnapshot{
		Version:          domain.SnapshotVersion,
		QuizID:           ev.QuizID,
		AttemptID:        ev.AttemptID,
		StartedAtEpochMs: ev.At.UnixMilli(),
		QuestionOrder:    ev.Order,
		CurrentIndex:     0,
		Answers:          make([]*int, len(ev.Order)),
		Status:           domain.StatusInProgress,
	}, EffectNone, nil
}

// answerable rejects answer actions outside an in-progress session.
func answerable(s domain.SessionSnapshot) error {
	switch s.Phase() {
	case domain.PhaseNotStarted:
		return domain.ErrSessionNotStarted
	case domain.PhaseSubmitting:
		return domain.ErrSubmitting
	case domain.PhaseCompleted:
		return domain.ErrSessionCompleted
	}
	return nil
}

func selectOption(s domain.SessionSnapshot, option int) (domain.SessionSnapshot, Effect, error) {
	if err := answerable(s); err != nil {
		return s, EffectNone, err
	}
	if s.IsConfirmed {
		return s, EffectNone, domain.ErrAlreadyConfirmed
	}
	q, _ := s.Current()
	if option < 0 || option >= len(q.Options) {
		return s, EffectNone, domain.ErrOptionOutOfRange
	}
	next := s.Clone()
	next.SelectedOption = domain.IntPtr(option)
	return next, EffectNone, nil
}

func confirm(s domain.SessionSnapshot) (domain.SessionSnapshot, Effect, error) {
	if err := answerable(s); err != nil {
		return s, EffectNone, err
	}
	if s.IsConfirmed {
		return s, EffectNone, domain.ErrAlreadyConfirmed
	}
	if s.SelectedOption == nil {
		return s, EffectNone, domain.ErrNoSelection
	}
	next := s.Clone()
	next.Answers[next.CurrentIndex] = domain.IntPtr(*s.SelectedOption)
	next.IsAnswered = true
	next.IsConfirmed = true
	return next, EffectNone, nil
}

func advance(s domain.SessionSnapshot) (domain.SessionSnapshot, Effect, error) {
	if err := answerable(s); err != nil {
		return s, EffectNone, err
	}
	if !s.IsConfirmed {
		return s, EffectNone, domain.ErrNotConfirmed
	}
	if s.CurrentIndex == len(s.QuestionOrder)-1 {
		return s, EffectFinish, nil
	}
	next := s.Clone()
	next.CurrentIndex++
	next.SelectedOption = nil
	next.IsAnswered = false
	next.IsConfirmed = false
	return next, EffectNone, nil
}

// timeout ends the whole session. An already confirmed answer wins over the
// clock; a stale timeout after finish is a no-op.
func timeout(s domain.SessionSnapshot) (domain.SessionSnapshot, Effect, error) {
	if answerable(s) != nil {
		return s, EffectNone, nil
	}
	if s.IsConfirmed {
		return s, EffectFinish, nil
	}
	next := s.Clone()
	next.SelectedOption = domain.IntPtr(domain.TimedOutAnswer)
	next.Answers[next.CurrentIndex] = domain.IntPtr(domain.TimedOutAnswer)
	next.IsAnswered = true
	next.IsConfirmed = true
	return next, EffectFinish, nil
}

func finishBegin(s domain.SessionSnapshot, ev Event) (domain.SessionSnapshot, Effect, error) {
	if err := answerable(s); err != nil {
		return s, EffectNone, err
	}
	if !s.IsConfirmed {
		return s, EffectNone, domain.ErrNotConfirmed
	}
	if s.CurrentIndex != len(s.QuestionOrder)-1 && !ev.Expired {
		return s, EffectNone, domain.ErrQuestionsRemaining
	}
	next := s.Clone()
	next.Status = domain.StatusCompleted
	next.SubmittedAtEpochMs = ev.At.UnixMilli()
	return next, EffectNone, nil
}

func finishSucceeded(s domain.SessionSnapshot, result domain.Result) (domain.SessionSnapshot, Effect, error) {
	switch s.Phase() {
	case domain.PhaseSubmitting:
	case domain.PhaseCompleted:
		return s, EffectNone, domain.ErrResultAlreadyRecorded
	default:
		return s, EffectNone, domain.ErrInvalidTransition
	}
	next := s.Clone()
	next.Result = &result
	return next, EffectNone, nil
}

func finishFailed(s domain.SessionSnapshot) (domain.SessionSnapshot, Effect, error) {
	switch s.Phase() {
	case domain.PhaseSubmitting:
	case domain.PhaseCompleted:
		return s, EffectNone, domain.ErrResultAlreadyRecorded
	default:
		return s, EffectNone, domain.ErrInvalidTransition
	}
	next := s.Clone()
	next.Status = domain.StatusInProgress
	next.SubmittedAtEpochMs = 0
	return next, EffectNone, nil
}
