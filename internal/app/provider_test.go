package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestCatalogProviderEligibility(t *testing.T) {
	once := quiz(1, domain.Features{})
	retakable := quiz(1, domain.Features{AllowRetakes: true})
	retakable.ID = "quiz-2"

	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.QuizDefinition{
		once.ID:      once,
		retakable.ID: retakable,
	}), time.Minute)
	ledger := memory.NewAttemptLedger(quizzes)
	provider := app.NewCatalogProvider(quizzes, ledger)
	ctx := context.Background()

	view, err := provider.GetQuiz(ctx, "quiz-1", "u1")
	if err != nil || !view.CanAttempt {
		t.Fatalf("expected first attempt allowed, got %+v err=%v", view, err)
	}

	for _, id := range []string{"quiz-1", "quiz-2"} {
		_, err := ledger.SubmitAttempt(ctx, domain.Submission{
			AttemptID:   "a-" + id,
			QuizID:      id,
			UserID:      "u1",
			QuestionIDs: []string{"q1"},
			Answers:     []*int{domain.IntPtr(0)},
		})
		if err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	view, _ = provider.GetQuiz(ctx, "quiz-1", "u1")
	if view.CanAttempt || len(view.PriorAttempts) != 1 {
		t.Fatalf("expected single-attempt quiz to be closed, got %+v", view)
	}
	view, _ = provider.GetQuiz(ctx, "quiz-2", "u1")
	if !view.CanAttempt {
		t.Fatalf("expected retakable quiz to stay open")
	}

	if _, err := provider.GetQuiz(ctx, "missing", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}
