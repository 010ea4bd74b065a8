// Package grading scores submitted attempts for the bundled attempt recorders.
package grading

import (
	"fmt"
	"math"

	"quiz-session-service/internal/domain"
)

// Grade scores sub against def. Answers are matched to questions by
// sub.QuestionIDs so shuffled sessions grade the same as ordered ones.
// Unanswered and timed-out questions earn nothing.
func Grade(def domain.QuizDefinition, sub domain.Submission) (domain.Result, error) {
	if len(sub.QuestionIDs) != len(sub.Answers) {
		return domain.Result{}, fmt.Errorf("grade %s: %d answers for %d questions", sub.AttemptID, len(sub.Answers), len(sub.QuestionIDs))
	}

	answers := make(map[string]*int, len(sub.Answers))
	for i, id := range sub.QuestionIDs {
		answers[id] = sub.Answers[i]
	}

	score, maxScore := 0, 0
	for _, q := range def.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		maxScore += points
		if a := answers[q.ID]; a != nil && *a == q.CorrectAnswerIndex {
			score += points
		}
	}

	result := domain.Result{Score: score, MaxScore: maxScore}
	if maxScore > 0 {
		result.Percentage = math.Round(float64(score)*10000/float64(maxScore)) / 100
		result.XPEarned = def.Reward.XP * score / maxScore
	}
	return result, nil
}
