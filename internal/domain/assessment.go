package domain

import "time"

// StartRequest opens a backend assessment session for a completed profile.
type StartRequest struct {
	AttemptID string
	Language  string
	Profile   Profile
}

// StartResult carries the new backend session id and its first question.
type StartResult struct {
	SessionID string
	Question  string
}

// AnswerRequest submits one answer to an open backend session.
type AnswerRequest struct {
	SessionID string
	// Answer is the backend answer code; Label is what the user selected.
	Answer         string
	Label          string
	Language       string
	IdempotencyKey string
}

// AnswerResult is either the next question or a completion signal.
type AnswerResult struct {
	Question  string
	Completed bool
}

// Transition is one committed state change, published to observers.
type Transition struct {
	UserID string    `json:"user_id"`
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
}
