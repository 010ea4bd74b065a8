package domain

import (
	"fmt"
	"time"
)

// DefaultTimeLimitMinutes applies when a quiz does not declare its own limit.
const DefaultTimeLimitMinutes = 30

// Question models an MCQ question; CorrectAnswerIndex points into Options.
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation,omitempty"`
	Points             int      `json:"points"` // defaults to 1 if zero
}

// Features are the per-quiz behaviour flags set by the author.
type Features struct {
	Randomize           bool `json:"randomize"`
	ShowProgress        bool `json:"showProgress"`
	AllowRetakes        bool `json:"allowRetakes"`
	ShowExplanations    bool `json:"showExplanations"`
	InstantFeedback     bool `json:"instantFeedback"`
	CertificateEligible bool `json:"certificateEligible"`
}

// Reward is display metadata; the attempt recorder decides what is actually earned.
type Reward struct {
	XP       int `json:"xp"`
	MaxScore int `json:"maxScore"`
}

// QuizDefinition is immutable quiz content owned by the definition provider.
type QuizDefinition struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	TimeLimitMinutes int        `json:"timeLimitMinutes,omitempty"`
	Questions        []Question `json:"questions"`
	Features         Features   `json:"features"`
	Reward           Reward     `json:"reward"`
}

// TimeBudget is the session-wide time allowance.
func (q QuizDefinition) TimeBudget() time.Duration {
	minutes := q.TimeLimitMinutes
	if minutes <= 0 {
		minutes = DefaultTimeLimitMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Validate rejects content a session cannot run: no questions, a question
// without options, or an answer key outside the options.
func (q QuizDefinition) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %s has no questions", ErrInvalidDefinition, q.ID)
	}
	seen := make(map[string]bool, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" || seen[question.ID] {
			return fmt.Errorf("%w: quiz %s has a missing or duplicate question id %q", ErrInvalidDefinition, q.ID, question.ID)
		}
		seen[question.ID] = true
		if question.CorrectAnswerIndex < 0 || question.CorrectAnswerIndex >= len(question.Options) {
			return fmt.Errorf("%w: question %s answer key %d outside %d options",
				ErrInvalidDefinition, question.ID, question.CorrectAnswerIndex, len(question.Options))
		}
	}
	return nil
}

// Attempt is a previously recorded attempt of a quiz by a user.
type Attempt struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	ElapsedSeconds int       `json:"elapsedSeconds"`
	Result         Result    `json:"result"`
	CompletedAt    time.Time `json:"completedAt"`
}

// QuizView is what the definition provider returns for a user.
type QuizView struct {
	Definition    QuizDefinition `json:"definition"`
	PriorAttempts []Attempt      `json:"priorAttempts"`
	CanAttempt    bool           `json:"canAttempt"`
}

// Submission is the payload handed to the attempt recorder when a session finishes.
// AttemptID doubles as the idempotency key. Answers follow QuestionIDs, the
// order the questions were presented in.
type Submission struct {
	AttemptID      string   `json:"attemptId"`
	QuizID         string   `json:"quizId"`
	UserID         string   `json:"userId"`
	QuestionIDs    []string `json:"questionIds"`
	Answers        []*int   `json:"answers"`
	ElapsedSeconds int      `json:"elapsedSeconds"`
}
