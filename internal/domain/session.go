// Package domain contains core domain types for the assessment conversation service.
package domain

import (
	"fmt"
	"slices"
	"time"
)

// recentMessageLimit bounds the number of inbound message ids remembered per record.
const recentMessageLimit = 16

// State is a conversation state-machine state.
type State uint8

// Conversation states.
const (
	StateNew State = iota
	StateLanguageSelect
	StateAskName
	StateAskDOB
	StateAskGestational
	StateAskGestationalWeeks
	StateAssessment
	StateCompleted
)

var stateNames = [...]string{
	StateNew:                 "new",
	StateLanguageSelect:      "language_select",
	StateAskName:             "ask_name",
	StateAskDOB:              "ask_dob",
	StateAskGestational:      "ask_gestational",
	StateAskGestationalWeeks: "ask_gestational_weeks",
	StateAssessment:          "assessment",
	StateCompleted:           "completed",
}

// AllStates returns every defined state in flow order.
func AllStates() []State {
	states := make([]State, len(stateNames))
	for i := range stateNames {
		states[i] = State(i)
	}
	return states
}

// Valid reports whether s is a defined state.
func (s State) Valid() bool {
	return int(s) < len(stateNames)
}

// String returns the stable wire name of the state.
func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("state(%d)", uint8(s))
	}
	return stateNames[s]
}

// Terminal reports whether the state only accepts a restart.
func (s State) Terminal() bool {
	return s == StateCompleted
}

// ParseState maps a wire name back to a State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown conversation state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid conversation state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Prompt is a rendered outbound message.
type Prompt struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons,omitempty"`
}

// AssessmentResult is what the backend reports when a session is closed.
type AssessmentResult struct {
	Reference         string  `json:"reference"`
	TotalQuestions    int     `json:"total_questions"`
	AgeMonths         float64 `json:"age_months"`
	UsingCorrectedAge bool    `json:"using_corrected_age"`
	OverallStatus     string  `json:"overall_status"`
}

// SessionRecord is the full persisted state of one user's conversation.
// PendingClose is set when the backend reported completion but the close
// call has not succeeded yet.
type SessionRecord struct {
	UserID                string            `json:"user_id"`
	State                 State             `json:"state"`
	Language              string            `json:"language,omitempty"`
	Profile               Profile           `json:"profile"`
	AttemptID             string            `json:"attempt_id,omitempty"`
	BackendSessionID      string            `json:"backend_session_id,omitempty"`
	QuestionIndex         int               `json:"question_index"`
	QuestionTotalEstimate int               `json:"question_total_estimate"`
	CurrentQuestion       string            `json:"current_question,omitempty"`
	Result                *AssessmentResult `json:"result,omitempty"`
	PendingClose          bool              `json:"pending_close,omitempty"`
	Outbox                []Prompt          `json:"outbox,omitempty"`
	LastSeenMessageID     string            `json:"last_seen_message_id,omitempty"`
	RecentMessageIDs      []string          `json:"recent_message_ids,omitempty"`
	LastActivityAt        time.Time         `json:"last_activity_at"`
	CreatedAt             time.Time         `json:"created_at"`
}

// NewSessionRecord returns a fresh record in StateNew.
func NewSessionRecord(userID string, now time.Time) *SessionRecord {
	return &SessionRecord{
		UserID:         userID,
		State:          StateNew,
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

// Reset clears everything collected for the current attempt and returns the
// record to StateNew. Deduplication history is kept so redelivered messages
// from before the reset stay ignored.
func (r *SessionRecord) Reset() {
	r.State = StateNew
	r.Language = ""
	r.Profile = Profile{}
	r.AttemptID = ""
	r.BackendSessionID = ""
	r.QuestionIndex = 0
	r.QuestionTotalEstimate = 0
	r.CurrentQuestion = ""
	r.Result = nil
	r.PendingClose = false
	r.Outbox = nil
}

// Expired reports whether the record has been idle for longer than ttl.
// A non-positive ttl disables expiry.
func (r *SessionRecord) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(r.LastActivityAt) > ttl
}

// HasSeen reports whether messageID was already processed for this record.
func (r *SessionRecord) HasSeen(messageID string) bool {
	if messageID == "" {
		return false
	}
	return messageID == r.LastSeenMessageID || slices.Contains(r.RecentMessageIDs, messageID)
}

// RememberMessage marks messageID as processed.
func (r *SessionRecord) RememberMessage(messageID string) {
	if messageID == "" {
		return
	}
	r.LastSeenMessageID = messageID
	if slices.Contains(r.RecentMessageIDs, messageID) {
		return
	}
	r.RecentMessageIDs = append(r.RecentMessageIDs, messageID)
	if n := len(r.RecentMessageIDs); n > recentMessageLimit {
		r.RecentMessageIDs = slices.Clone(r.RecentMessageIDs[n-recentMessageLimit:])
	}
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Profile = r.Profile.Clone()
	if r.Result != nil {
		res := *r.Result
		c.Result = &res
	}
	if r.Outbox != nil {
		c.Outbox = make([]Prompt, len(r.Outbox))
		for i, p := range r.Outbox {
			c.Outbox[i] = Prompt{Text: p.Text, Buttons: slices.Clone(p.Buttons)}
		}
	}
	c.RecentMessageIDs = slices.Clone(r.RecentMessageIDs)
	return &c
}
