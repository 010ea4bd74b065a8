package domain

// QuestionView is a question as shown to the player, without the answer key.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Points  int      `json:"points"`
}

// Feedback is revealed after confirm when the quiz enables instant feedback.
type Feedback struct {
	QuestionID         string `json:"questionId"`
	CorrectAnswerIndex int    `json:"correctAnswerIndex"`
	Correct            bool   `json:"correct"`
	Explanation        string `json:"explanation,omitempty"`
}

// Progress is included when the quiz enables the progress display.
type Progress struct {
	Current  int `json:"current"`
	Total    int `json:"total"`
	Answered int `json:"answered"`
}

// ReviewItem is one row of the post-completion review.
type ReviewItem struct {
	QuestionID         string   `json:"questionId"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	Answer             *int     `json:"answer"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation,omitempty"`
}

// SessionView is the observable state pushed to presenters on every change.
type SessionView struct {
	QuizID              string        `json:"quizId"`
	Title               string        `json:"title"`
	Phase               Phase         `json:"phase"`
	QuestionIndex       int           `json:"questionIndex"`
	Question            *QuestionView `json:"question,omitempty"`
	SelectedOption      *int          `json:"selectedOption"`
	IsAnswered          bool          `json:"isAnswered"`
	IsConfirmed         bool          `json:"isConfirmed"`
	Answers             []*int        `json:"answers,omitempty"`
	Progress            *Progress     `json:"progress,omitempty"`
	RemainingSeconds    int           `json:"remainingSeconds"`
	TimeLimitSeconds    int           `json:"timeLimitSeconds"`
	Feedback            *Feedback     `json:"feedback,omitempty"`
	Result              *Result       `json:"result,omitempty"`
	CertificateEligible bool          `json:"certificateEligible"`
	Review              []ReviewItem  `json:"review,omitempty"`
	PriorAttempts       []Attempt     `json:"priorAttempts,omitempty"`
	CanAttempt          bool          `json:"canAttempt"`
}
