package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/grading"
)

// QuizSource resolves the definition an attempt is graded against.
type QuizSource interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// AttemptLedger is an in-process attempt recorder and history. Attempts are
// keyed by attempt id, so resubmitting one returns the stored result.
type AttemptLedger struct {
	quizzes QuizSource
	clock   func() time.Time

	mu       sync.Mutex
	attempts map[string]domain.Attempt
}

func NewAttemptLedger(quizzes QuizSource) *AttemptLedger {
	return &AttemptLedger{
		quizzes:  quizzes,
		clock:    time.Now,
		attempts: make(map[string]domain.Attempt),
	}
}

func (l *AttemptLedger) SubmitAttempt(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	l.mu.Lock()
	if prior, ok := l.attempts[sub.AttemptID]; ok {
		l.mu.Unlock()
		return prior.Result, domain.ErrAlreadySubmitted
	}
	l.mu.Unlock()

	def, err := l.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return domain.Result{}, err
	}
	result, err := grading.Grade(def, sub)
	if err != nil {
		return domain.Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prior, ok := l.attempts[sub.AttemptID]; ok {
		return prior.Result, domain.ErrAlreadySubmitted
	}
	l.attempts[sub.AttemptID] = domain.Attempt{
		ID:             sub.AttemptID,
		QuizID:         sub.QuizID,
		UserID:         sub.UserID,
		ElapsedSeconds: sub.ElapsedSeconds,
		Result:         result,
		CompletedAt:    l.clock(),
	}
	return result, nil
}

// PriorAttempts lists a user's attempts of a quiz, oldest first.
func (l *AttemptLedger) PriorAttempts(_ context.Context, quizID, userID string) ([]domain.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Attempt
	for _, attempt := range l.attempts {
		if attempt.QuizID == quizID && attempt.UserID == userID {
			out = append(out, attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out, nil
}
