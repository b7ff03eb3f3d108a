package domain

import "time"

// InboundEvent is a gateway-agnostic representation of one user message.
// Button replies carry the selected label in Text, exactly like typed text.
type InboundEvent struct {
	UserID      string
	SenderName  string
	MessageID   string
	Text        string
	Timestamp   time.Time
	Unsupported bool
	// Kind is the gateway message type, kept for logging.
	Kind string
}
