package app

import (
	"context"
	"fmt"

	"quiz-session-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// AttemptHistory lists a user's recorded attempts of a quiz.
type AttemptHistory interface {
	PriorAttempts(ctx context.Context, quizID, userID string) ([]domain.Attempt, error)
}

// CatalogProvider composes quiz content and attempt history into a QuizProvider.
type CatalogProvider struct {
	quizzes  QuizRepository
	attempts AttemptHistory
}

func NewCatalogProvider(quizzes QuizRepository, attempts AttemptHistory) *CatalogProvider {
	return &CatalogProvider{quizzes: quizzes, attempts: attempts}
}

// GetQuiz returns the definition with the user's history. A user may attempt
// when the quiz allows retakes or nothing has been recorded yet.
func (p *CatalogProvider) GetQuiz(ctx context.Context, quizID, userID string) (domain.QuizView, error) {
	def, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizView{}, err
	}
	prior, err := p.attempts.PriorAttempts(ctx, quizID, userID)
	if err != nil {
		return domain.QuizView{}, fmt.Errorf("load attempts: %w", err)
	}
	return domain.QuizView{
		Definition:    def,
		PriorAttempts: prior,
		CanAttempt:    def.Features.AllowRetakes || len(prior) == 0,
	}, nil
}
