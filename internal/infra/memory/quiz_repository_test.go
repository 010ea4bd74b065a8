package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.QuizDefinition{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.QuizDefinition{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "quiz-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestQuizRepositoryRemembersMissingQuizBriefly(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(nil)}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	repo.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("lookup %d: expected quiz not found, got %v", i, err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected one load for repeated misses, got %d", loader.calls)
	}

	now = now.Add(7 * time.Second)
	_, _ = repo.GetQuiz(context.Background(), "missing")
	if loader.calls != 2 {
		t.Fatalf("expected the miss to expire after a tenth of the ttl, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]func(*domain.QuizDefinition){
		"no questions":       func(q *domain.QuizDefinition) { q.Questions = nil },
		"answer key too big": func(q *domain.QuizDefinition) { q.Questions[0].CorrectAnswerIndex = 2 },
		"duplicate ids":      func(q *domain.QuizDefinition) { q.Questions[1].ID = q.Questions[0].ID },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			quiz := sampleQuiz()
			mutate(&quiz)
			loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.QuizDefinition{"quiz-1": quiz})}
			repo := NewQuizRepository(loader, time.Minute)

			for i := 0; i < 2; i++ {
				if _, err := repo.GetQuiz(context.Background(), "quiz-1"); !errors.Is(err, domain.ErrInvalidDefinition) {
					t.Fatalf("expected invalid definition, got %v", err)
				}
			}
			if loader.calls != 2 {
				t.Fatalf("invalid definitions must not be cached, loader calls %d", loader.calls)
			}
		})
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				ID:                 "q1",
				Text:               "What is 2 + 2?",
				Options:            []string{"3", "4"},
				CorrectAnswerIndex: 1,
				Points:             1,
			},
			{
				ID:                 "q2",
				Text:               "What is 3 * 3?",
				Options:            []string{"9", "6"},
				CorrectAnswerIndex: 0,
				Points:             2,
			},
		},
		Reward: domain.Reward{XP: 30, MaxScore: 3},
	}
}
