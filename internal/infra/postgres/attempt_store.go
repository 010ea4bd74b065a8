package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/grading"

	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizSource resolves the definition an attempt is graded against.
type QuizSource interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// AttemptStore records graded attempts in quiz_attempts and serves attempt
// history. The attempt id is the primary key, so a retried submission never
// creates a second row.
type AttemptStore struct {
	pool    *pgxpool.Pool
	quizzes QuizSource
}

func NewAttemptStore(pool *pgxpool.Pool, quizzes QuizSource) *AttemptStore {
	return &AttemptStore{pool: pool, quizzes: quizzes}
}

func (s *AttemptStore) SubmitAttempt(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	def, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return domain.Result{}, err
	}
	result, err := grading.Grade(def, sub)
	if err != nil {
		return domain.Result{}, err
	}

	questionIDs, err := json.Marshal(sub.QuestionIDs)
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal question ids: %w", err)
	}
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_attempts
			(id, quiz_id, user_id, question_ids, answers, elapsed_seconds, score, max_score, percentage, xp_earned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		sub.AttemptID, sub.QuizID, sub.UserID, questionIDs, answers, sub.ElapsedSeconds,
		result.Score, result.MaxScore, result.Percentage, result.XPEarned,
	)
	if err != nil {
		return domain.Result{}, fmt.Errorf("insert attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		stored, err := s.attempt(ctx, sub.AttemptID)
		if err != nil {
			return domain.Result{}, err
		}
		return stored.Result, domain.ErrAlreadySubmitted
	}
	return result, nil
}

// PriorAttempts lists a user's attempts of a quiz, oldest first.
func (s *AttemptStore) PriorAttempts(ctx context.Context, quizID, userID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, user_id, elapsed_seconds, score, max_score, percentage, xp_earned, completed_at
		FROM quiz_attempts
		WHERE quiz_id=$1 AND user_id=$2
		ORDER BY completed_at`, quizID, userID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.ElapsedSeconds,
			&a.Result.Score, &a.Result.MaxScore, &a.Result.Percentage, &a.Result.XPEarned, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AttemptStore) attempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var a domain.Attempt
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, user_id, elapsed_seconds, score, max_score, percentage, xp_earned, completed_at
		FROM quiz_attempts WHERE id=$1`, attemptID).
		Scan(&a.ID, &a.QuizID, &a.UserID, &a.ElapsedSeconds,
			&a.Result.Score, &a.Result.MaxScore, &a.Result.Percentage, &a.Result.XPEarned, &a.CompletedAt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt %s: %w", attemptID, err)
	}
	return a, nil
}
