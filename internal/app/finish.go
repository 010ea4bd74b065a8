package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"quiz-session-service/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

// Finish submits the session to the attempt recorder. It is idempotent: a
// completed session returns its stored result and an in-flight submission is
// never started twice.
func (s *Session) Finish(ctx context.Context) (domain.SessionView, error) {
	return s.finish(ctx, false)
}

func (s *Session) finish(ctx context.Context, timedOut bool) (domain.SessionView, error) {
	s.mu.Lock()
	now := s.now()
	switch s.snap.Phase() {
	case domain.PhaseCompleted:
		view := s.viewLocked()
		s.mu.Unlock()
		return view, nil
	case domain.PhaseSubmitting:
		if s.adoptRecordedLocked(ctx) {
			return s.commitLocked(), nil
		}
		if s.submitting || !s.staleSubmissionLocked(now) {
			view := s.viewLocked()
			s.mu.Unlock()
			return view, nil
		}
		// the mount that flipped the status is gone; resubmit under the same attempt id
	default:
		next, _, err := Transition(s.snap, Event{
			Kind:    EventFinishBegin,
			At:      now,
			Expired: timedOut || s.expiredLocked(now),
		})
		if err != nil {
			return s.rejectLocked(err)
		}
		if err := s.saveLocked(ctx, next); err != nil {
			return s.rejectLocked(err)
		}
		s.snap = next
	}
	s.submitting = true
	s.timer.Cancel()
	sub := s.submissionLocked()
	s.commitLocked()

	result, err := s.submit(ctx, sub)
	persistCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		submissions.WithLabelValues("failure").Inc()
		log.Printf("submit attempt %s failed: %v", sub.AttemptID, err)
		if next, _, terr := Transition(s.snap, Event{Kind: EventFinishFailed}); terr == nil {
			s.snap = next
			if serr := s.saveLocked(persistCtx, next); serr != nil {
				log.Printf("persist rollback %s: %v", s.key, serr)
			}
			if s.holders > 0 && !s.expiredLocked(s.now()) {
				s.startTimerLocked()
			}
		}
		view := s.commitLocked()
		return view, fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}

	submissions.WithLabelValues("success").Inc()
	next, _, terr := Transition(s.snap, Event{Kind: EventFinishSucceeded, Result: result})
	if terr != nil {
		log.Printf("drop result for attempt %s: %v", sub.AttemptID, terr)
		return s.rejectLocked(nil)
	}
	s.snap = next
	if err := s.saveLocked(persistCtx, next); err != nil {
		log.Printf("persist result %s: %v", s.key, err)
	}
	attempt := s.recordAttemptLocked(sub.ElapsedSeconds)
	view := s.commitLocked()

	if s.publisher != nil {
		if err := s.publisher.PublishCompletion(persistCtx, attempt); err != nil {
			log.Printf("publish completion %s: %v", attempt.ID, err)
		}
	}
	return view, nil
}

// recordAttemptLocked adds the completed attempt to the history shown in the
// view. An attempt the provider already listed is not added twice.
func (s *Session) recordAttemptLocked(elapsedSeconds int) domain.Attempt {
	attempt := domain.Attempt{
		ID:             s.snap.AttemptID,
		QuizID:         s.snap.QuizID,
		UserID:         s.userID,
		ElapsedSeconds: elapsedSeconds,
		Result:         *s.snap.Result,
		CompletedAt:    s.now(),
	}
	s.quiz.CanAttempt = s.quiz.Definition.Features.AllowRetakes
	for _, prior := range s.quiz.PriorAttempts {
		if prior.ID == attempt.ID {
			return attempt
		}
	}
	s.quiz.PriorAttempts = append(s.quiz.PriorAttempts, attempt)
	return attempt
}

// adoptRecordedLocked picks up a result that another Session instance stored
// for the same attempt while this one only observed the submitting phase.
func (s *Session) adoptRecordedLocked(ctx context.Context) bool {
	if s.submitting || s.snap.Phase() != domain.PhaseSubmitting {
		return false
	}
	stored, err := s.loadLocked(ctx)
	if err != nil {
		log.Printf("reload snapshot %s: %v", s.key, err)
		return false
	}
	if stored.AttemptID != s.snap.AttemptID || stored.Phase() != domain.PhaseCompleted {
		return false
	}
	s.snap = stored
	s.timer.Cancel()
	s.recordAttemptLocked(s.submissionLocked().ElapsedSeconds)
	return true
}

// watchSubmissionLocked polls the store while another instance submits and
// resubmits once the grace window passes without a result.
func (s *Session) watchSubmissionLocked() {
	anchor := time.UnixMilli(s.snap.SubmittedAtEpochMs)
	s.timer.Start(anchor, s.settings.SubmitGrace, s.onSubmissionTick, s.onSubmissionStale)
}

func (s *Session) onSubmissionTick(time.Duration) {
	s.mu.Lock()
	if !s.adoptRecordedLocked(context.Background()) {
		s.mu.Unlock()
		return
	}
	s.commitLocked()
}

func (s *Session) onSubmissionStale() {
	if _, err := s.Finish(context.Background()); err != nil {
		log.Printf("session %s resubmit: %v", s.key, err)
	}
}

func (s *Session) submissionLocked() domain.Submission {
	elapsedMs := s.snap.SubmittedAtEpochMs - s.snap.StartedAtEpochMs
	ids := make([]string, len(s.snap.QuestionOrder))
	for i, q := range s.snap.QuestionOrder {
		ids[i] = q.ID
	}
	return domain.Submission{
		AttemptID:      s.snap.AttemptID,
		QuizID:         s.snap.QuizID,
		UserID:         s.userID,
		QuestionIDs:    ids,
		Answers:        s.snap.Clone().Answers,
		ElapsedSeconds: int(math.Round(float64(elapsedMs) / 1000)),
	}
}

// submit calls the recorder with a per-call timeout, retrying transient
// failures with exponential backoff. A recorder that already holds the
// attempt counts as success.
func (s *Session) submit(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	started := time.Now()
	defer func() {
		submissionDuration.Observe(time.Since(started).Seconds())
	}()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.settings.SubmitBackoff

	var result domain.Result
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.settings.SubmitTimeout)
		defer cancel()

		r, err := s.recorder.SubmitAttempt(callCtx, sub)
		switch {
		case err == nil, errors.Is(err, domain.ErrAlreadySubmitted):
			result = r
			return nil
		case errors.Is(err, domain.ErrQuizNotFound):
			return backoff.Permanent(err)
		}
		return err
	}

	retries := backoff.WithMaxRetries(policy, uint64(s.settings.SubmitRetries))
	if err := backoff.Retry(op, backoff.WithContext(retries, ctx)); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}
