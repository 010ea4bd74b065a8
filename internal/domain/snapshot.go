package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SnapshotVersion is bumped whenever the persisted snapshot layout changes.
// Records carrying any other version are discarded on load.
const SnapshotVersion = 1

// TimedOutAnswer marks a question that was open when the session clock ran out.
const TimedOutAnswer = -1

// Status is the persisted lifecycle marker of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Phase is the state-machine position derived from a snapshot.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseSelecting  Phase = "selecting"
	PhaseConfirmed  Phase = "confirmed"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
)

// Result is the authoritative outcome returned by the attempt recorder.
type Result struct {
	Score      int     `json:"score"`
	MaxScore   int     `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	XPEarned   int     `json:"xpEarned"`
}

// SessionSnapshot is the resumable record of one user's attempt at one quiz.
type SessionSnapshot struct {
	Version            int        `json:"version"`
	QuizID             string     `json:"quizId"`
	AttemptID          string     `json:"attemptId"`
	StartedAtEpochMs   int64      `json:"startedAtEpochMs"`
	QuestionOrder      []Question `json:"questionOrder"`
	CurrentIndex       int        `json:"currentIndex"`
	Answers            []*int     `json:"answers"`
	SelectedOption     *int       `json:"selectedOption"`
	IsAnswered         bool       `json:"isAnswered"`
	IsConfirmed        bool       `json:"isConfirmed"`
	Status             Status     `json:"status"`
	SubmittedAtEpochMs int64      `json:"submittedAtEpochMs,omitempty"`
	Result             *Result    `json:"result,omitempty"`
}

// SnapshotKey identifies the single snapshot slot for a user and quiz.
func SnapshotKey(userID, quizID string) string {
	return userID + ":" + quizID
}

// Phase reports where the snapshot sits in the session state machine.
func (s SessionSnapshot) Phase() Phase {
	switch s.Status {
	case StatusInProgress:
		if s.IsConfirmed {
			return PhaseConfirmed
		}
		return PhaseSelecting
	case StatusCompleted:
		if s.Result == nil {
			return PhaseSubmitting
		}
		return PhaseCompleted
	default:
		return PhaseNotStarted
	}
}

// Current returns the question at CurrentIndex.
func (s SessionSnapshot) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionOrder) {
		return Question{}, false
	}
	return s.QuestionOrder[s.CurrentIndex], true
}

// Clone deep-copies the mutable parts of the snapshot. Questions are shared
// because definitions are immutable.
func (s SessionSnapshot) Clone() SessionSnapshot {
	out := s
	if s.Answers != nil {
		out.Answers = make([]*int, len(s.Answers))
		for i, a := range s.Answers {
			if a != nil {
				out.Answers[i] = IntPtr(*a)
			}
		}
	}
	if s.SelectedOption != nil {
		out.SelectedOption = IntPtr(*s.SelectedOption)
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}

// Validate checks the structural invariants of a started snapshot.
func (s SessionSnapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidSnapshot, s.Version)
	}
	if s.QuizID == "" || s.AttemptID == "" {
		return fmt.Errorf("%w: missing identifiers", ErrInvalidSnapshot)
	}
	if s.Status != StatusInProgress && s.Status != StatusCompleted {
		return fmt.Errorf("%w: status %q", ErrInvalidSnapshot, s.Status)
	}
	if s.StartedAtEpochMs <= 0 {
		return fmt.Errorf("%w: missing start anchor", ErrInvalidSnapshot)
	}
	n := len(s.QuestionOrder)
	if n == 0 || len(s.Answers) != n {
		return fmt.Errorf("%w: %d answers for %d questions", ErrInvalidSnapshot, len(s.Answers), n)
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= n {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidSnapshot, s.CurrentIndex)
	}
	for i, a := range s.Answers {
		if a == nil {
			if i < s.CurrentIndex {
				return fmt.Errorf("%w: question %d has no answer", ErrInvalidSnapshot, i)
			}
			continue
		}
		if !validChoice(s.QuestionOrder[i], *a) {
			return fmt.Errorf("%w: answer %d out of range", ErrInvalidSnapshot, i)
		}
	}
	if s.SelectedOption != nil && !validChoice(s.QuestionOrder[s.CurrentIndex], *s.SelectedOption) {
		return fmt.Errorf("%w: selection out of range", ErrInvalidSnapshot)
	}
	if s.IsConfirmed && (!s.IsAnswered || s.Answers[s.CurrentIndex] == nil) {
		return fmt.Errorf("%w: confirmed without answer", ErrInvalidSnapshot)
	}
	if s.Status == StatusInProgress && (s.Result != nil || s.SubmittedAtEpochMs != 0) {
		return fmt.Errorf("%w: in-progress snapshot carries submission data", ErrInvalidSnapshot)
	}
	return nil
}

func validChoice(q Question, choice int) bool {
	return choice == TimedOutAnswer || (choice >= 0 && choice < len(q.Options))
}

// EncodeSnapshot serializes a snapshot for the state store.
func EncodeSnapshot(s SessionSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a stored record. Any parse error, unknown field or
// invariant violation yields ok=false so callers treat the record as absent.
func DecodeSnapshot(raw []byte) (SessionSnapshot, bool) {
	if len(raw) == 0 {
		return SessionSnapshot{}, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var s SessionSnapshot
	if err := dec.Decode(&s); err != nil {
		return SessionSnapshot{}, false
	}
	if err := s.Validate(); err != nil {
		return SessionSnapshot{}, false
	}
	return s, true
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int {
	return &v
}
