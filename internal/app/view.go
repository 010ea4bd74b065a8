package app

import (
	"time"

	"quiz-session-service/internal/domain"
)

func (s *Session) viewLocked() domain.SessionView {
	def := s.quiz.Definition
	snap := s.snap
	phase := snap.Phase()

	view := domain.SessionView{
		QuizID:           s.quizID,
		Title:            def.Title,
		Phase:            phase,
		TimeLimitSeconds: int(def.TimeBudget() / time.Second),
		PriorAttempts:    s.quiz.PriorAttempts,
		CanAttempt:       s.quiz.CanAttempt,
	}
	if phase == domain.PhaseNotStarted {
		view.RemainingSeconds = view.TimeLimitSeconds
		if !s.quiz.CanAttempt {
			view.Result = latestResult(s.quiz.PriorAttempts)
		}
		return view
	}

	fresh := snap.Clone()
	view.QuestionIndex = fresh.CurrentIndex
	view.Answers = fresh.Answers
	view.SelectedOption = fresh.SelectedOption
	view.IsAnswered = fresh.IsAnswered
	view.IsConfirmed = fresh.IsConfirmed

	if def.Features.ShowProgress {
		answered := 0
		for _, a := range fresh.Answers {
			if a != nil {
				answered++
			}
		}
		view.Progress = &domain.Progress{
			Current:  fresh.CurrentIndex + 1,
			Total:    len(fresh.QuestionOrder),
			Answered: answered,
		}
	}

	switch phase {
	case domain.PhaseSelecting, domain.PhaseConfirmed:
		q, _ := snap.Current()
		view.Question = &domain.QuestionView{ID: q.ID, Text: q.Text, Options: q.Options, Points: q.Points}
		view.RemainingSeconds = ceilSeconds(s.remainingLocked(s.now()))
		if def.Features.InstantFeedback && snap.IsConfirmed {
			view.Feedback = feedbackFor(q, *snap.Answers[snap.CurrentIndex])
		}
	case domain.PhaseCompleted:
		result := *snap.Result
		view.Result = &result
		view.CertificateEligible = domain.CertificateEligible(def, snap.Result)
		if def.Features.ShowExplanations {
			view.Review = reviewOf(fresh)
		}
	}
	return view
}

func feedbackFor(q domain.Question, answer int) *domain.Feedback {
	return &domain.Feedback{
		QuestionID:         q.ID,
		CorrectAnswerIndex: q.CorrectAnswerIndex,
		Correct:            answer == q.CorrectAnswerIndex,
		Explanation:        q.Explanation,
	}
}

func reviewOf(snap domain.SessionSnapshot) []domain.ReviewItem {
	items := make([]domain.ReviewItem, 0, len(snap.QuestionOrder))
	for i, q := range snap.QuestionOrder {
		items = append(items, domain.ReviewItem{
			QuestionID:         q.ID,
			Text:               q.Text,
			Options:            q.Options,
			Answer:             snap.Answers[i],
			CorrectAnswerIndex: q.CorrectAnswerIndex,
			Explanation:        q.Explanation,
		})
	}
	return items
}

func latestResult(attempts []domain.Attempt) *domain.Result {
	var latest *domain.Attempt
	for i := range attempts {
		if latest == nil || attempts[i].CompletedAt.After(latest.CompletedAt) {
			latest = &attempts[i]
		}
	}
	if latest == nil {
		return nil
	}
	result := latest.Result
	return &result
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
