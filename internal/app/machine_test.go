package app_test

import (
	"errors"
	"testing"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

func started(t *testing.T, n int) domain.SessionSnapshot {
	t.Helper()
	def := quiz(n, domain.Features{})
	snap, _, err := app.Transition(domain.SessionSnapshot{}, app.Event{
		Kind:      app.EventStart,
		At:        t0,
		QuizID:    def.ID,
		AttemptID: "a1",
		Order:     def.Questions,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return snap
}

func step(t *testing.T, s domain.SessionSnapshot, ev app.Event) (domain.SessionSnapshot, app.Effect) {
	t.Helper()
	next, effect, err := app.Transition(s, ev)
	if err != nil {
		t.Fatalf("%s: %v", ev.Kind, err)
	}
	return next, effect
}

func TestStartBuildsEmptyAnswerSheet(t *testing.T) {
	snap := started(t, 3)
	if snap.Phase() != domain.PhaseSelecting || len(snap.Answers) != 3 || snap.StartedAtEpochMs != t0.UnixMilli() {
		t.Fatalf("unexpected start snapshot %+v", snap)
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("start snapshot invalid: %v", err)
	}
	if _, _, err := app.Transition(domain.SessionSnapshot{}, app.Event{Kind: app.EventStart, QuizID: "q", AttemptID: "a"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected empty order to be rejected, got %v", err)
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	snap := started(t, 2)
	snap, _ = step(t, snap, app.Event{Kind: app.EventSelect, Option: 1})
	before := snap.Clone()

	next, _ := step(t, snap, app.Event{Kind: app.EventConfirm})
	if snap.IsConfirmed || snap.Answers[0] != nil {
		t.Fatalf("confirm mutated its input: %+v", snap)
	}
	if *before.SelectedOption != *snap.SelectedOption {
		t.Fatalf("selection changed on input")
	}
	if !next.IsConfirmed || *next.Answers[0] != 1 {
		t.Fatalf("expected confirmed answer, got %+v", next)
	}
}

func TestAdvanceOnLastQuestionRequestsFinish(t *testing.T) {
	snap := started(t, 1)
	snap, _ = step(t, snap, app.Event{Kind: app.EventSelect, Option: 0})
	snap, _ = step(t, snap, app.Event{Kind: app.EventConfirm})
	next, effect := step(t, snap, app.Event{Kind: app.EventAdvance})
	if effect != app.EffectFinish || next.CurrentIndex != 0 {
		t.Fatalf("expected finish effect without moving, got effect=%v index=%d", effect, next.CurrentIndex)
	}
}

func TestFinishLifecycle(t *testing.T) {
	snap := started(t, 2)
	snap, _ = step(t, snap, app.Event{Kind: app.EventSelect, Option: 0})
	snap, _ = step(t, snap, app.Event{Kind: app.EventConfirm})

	submitting, _ := step(t, snap, app.Event{Kind: app.EventFinishBegin, At: t0, Expired: true})
	if submitting.Phase() != domain.PhaseSubmitting || submitting.SubmittedAtEpochMs == 0 {
		t.Fatalf("expected submitting, got %+v", submitting)
	}

	rolledBack, _ := step(t, submitting, app.Event{Kind: app.EventFinishFailed})
	if rolledBack.Phase() != domain.PhaseConfirmed || rolledBack.SubmittedAtEpochMs != 0 {
		t.Fatalf("expected rollback to confirmed, got %+v", rolledBack)
	}

	done, _ := step(t, submitting, app.Event{Kind: app.EventFinishSucceeded, Result: domain.Result{Score: 1}})
	if done.Phase() != domain.PhaseCompleted {
		t.Fatalf("expected completed, got %s", done.Phase())
	}
	if _, _, err := app.Transition(done, app.Event{Kind: app.EventFinishSucceeded}); !errors.Is(err, domain.ErrResultAlreadyRecorded) {
		t.Fatalf("expected write-once result, got %v", err)
	}
	if _, _, err := app.Transition(snap, app.Event{Kind: app.EventFinishSucceeded}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected result outside submitting to be rejected, got %v", err)
	}
}

func TestTimeoutTransitions(t *testing.T) {
	snap := started(t, 2)
	next, effect := step(t, snap, app.Event{Kind: app.EventTimeout})
	if effect != app.EffectFinish || *next.Answers[0] != domain.TimedOutAnswer || !next.IsConfirmed {
		t.Fatalf("expected timed out answer, got %+v effect=%v", next, effect)
	}

	same, effect := step(t, domain.SessionSnapshot{}, app.Event{Kind: app.EventTimeout})
	if effect != app.EffectNone || same.Status != "" {
		t.Fatalf("expected no-op timeout before start")
	}
}

func TestUnknownEventRejected(t *testing.T) {
	if _, _, err := app.Transition(started(t, 1), app.Event{Kind: "jump"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
