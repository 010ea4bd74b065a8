package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidDefinition marks quiz content that cannot back a session.
	ErrInvalidDefinition = errors.New("invalid quiz definition")
	// ErrDefinitionUnavailable wraps any failure to fetch a quiz before a session exists.
	ErrDefinitionUnavailable = errors.New("quiz definition unavailable")
	// ErrNotEligible is returned by start when the provider reports canAttempt=false.
	ErrNotEligible = errors.New("user is not eligible to attempt this quiz")
	// ErrRetakeNotAllowed is returned when a completed quiz does not allow retakes.
	ErrRetakeNotAllowed = errors.New("quiz does not allow retakes")
	// ErrRetakeRequired is returned by start on a completed, retakable session.
	ErrRetakeRequired = errors.New("quiz already completed, retake first")
	// ErrSessionInProgress is returned by start while an unexpired session exists.
	ErrSessionInProgress = errors.New("quiz session already in progress")
	// ErrSessionNotStarted is returned for answer actions before start.
	ErrSessionNotStarted = errors.New("quiz session not started")
	// ErrSessionCompleted is returned for answer actions after finish.
	ErrSessionCompleted = errors.New("quiz session already completed")
	// ErrSubmitting is returned while the finish submission is in flight.
	ErrSubmitting = errors.New("quiz submission in progress")
	// ErrTimeExpired is returned for answer actions after the session clock ran out.
	ErrTimeExpired = errors.New("quiz time has run out")
	// ErrAlreadyConfirmed is returned when changing a locked-in answer.
	ErrAlreadyConfirmed = errors.New("answer already confirmed")
	// ErrNoSelection is returned by confirm without a selected option.
	ErrNoSelection = errors.New("no option selected")
	// ErrNotConfirmed is returned by advance before the current answer is confirmed.
	ErrNotConfirmed = errors.New("current answer not confirmed")
	// ErrQuestionsRemaining is returned by finish before the last question while time remains.
	ErrQuestionsRemaining = errors.New("questions remaining")
	// ErrInvalidTransition is returned for events that make no sense in the current phase.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrOptionOutOfRange indicates a selected option index does not exist.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrResultAlreadyRecorded guards the write-once result.
	ErrResultAlreadyRecorded = errors.New("result already recorded")
	// ErrSubmissionFailed is surfaced when the attempt recorder could not be reached.
	ErrSubmissionFailed = errors.New("attempt submission failed")
	// ErrAlreadySubmitted is returned by recorders that already hold this attempt id.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrInvalidSnapshot marks a stored snapshot that failed shape validation.
	ErrInvalidSnapshot = errors.New("invalid session snapshot")
)
