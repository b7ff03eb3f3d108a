package inbound

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
)

// ErrMalformedPayload is returned when the webhook body cannot be decoded.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Normalizer turns raw webhook bodies into InboundEvents.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a normalizer. A nil logger uses slog.Default().
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Decode parses a webhook body, which may be a single payload object or an array of them.
func Decode(raw []byte) ([]Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	switch raw[0] {
	case '[':
		var items []Payload
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return items, nil
	case '{':
		var item Payload
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return []Payload{item}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported top-level JSON value", ErrMalformedPayload)
	}
}

// Normalize decodes raw and returns the events it carries, in delivery order.
// Echoes of our own sends are dropped, non-message events are skipped and a
// message id repeated within the batch is only kept once.
func (n *Normalizer) Normalize(raw []byte) ([]domain.InboundEvent, error) {
	payloads, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	var events []domain.InboundEvent
	seen := make(map[string]struct{})
	for _, p := range payloads {
		if p.Event.Type != "messages" || p.Event.Event != "post" {
			n.logger.Debug("Skipping non-message webhook event", "type", p.Event.Type, "event", p.Event.Event)
			continue
		}
		for _, m := range p.Messages {
			ev, ok := n.normalizeMessage(m)
			if !ok {
				continue
			}
			if ev.MessageID != "" {
				if _, dup := seen[ev.MessageID]; dup {
					n.logger.Debug("Dropping duplicate message in batch", "message_id", ev.MessageID)
					continue
				}
				seen[ev.MessageID] = struct{}{}
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func (n *Normalizer) normalizeMessage(m Message) (domain.InboundEvent, bool) {
	if m.FromMe {
		n.logger.Debug("Skipping own message", "message_id", m.ID)
		return domain.InboundEvent{}, false
	}

	sender := strings.TrimSpace(m.From)
	if sender == "" {
		sender = senderFromChatID(m.ChatID)
	}
	if sender == "" {
		n.logger.Warn("Dropping message without sender", "message_id", m.ID, "type", m.Type)
		return domain.InboundEvent{}, false
	}

	ev := domain.InboundEvent{
		UserID:     sender,
		SenderName: m.FromName,
		MessageID:  m.ID,
		Kind:       m.Type,
	}
	if m.Timestamp > 0 {
		ev.Timestamp = time.Unix(m.Timestamp, 0).UTC()
	}

	text, ok := messageText(m)
	if !ok {
		n.logger.Info("Unsupported message type", "message_id", m.ID, "user_id", sender, "type", m.Type)
		ev.Unsupported = true
		return ev, true
	}
	ev.Text = text
	return ev, true
}

// messageText extracts typed text or the selected button label.
func messageText(m Message) (string, bool) {
	switch m.Type {
	case "text":
		if m.Text != nil {
			return m.Text.Body, true
		}
	case "button":
		if m.ButtonResponse != nil {
			return m.ButtonResponse.Text, true
		}
	case "reply", "interactive":
		if m.Reply == nil {
			return "", false
		}
		if m.Reply.ButtonsReply != nil {
			return m.Reply.ButtonsReply.Title, true
		}
		if m.Reply.ListReply != nil {
			return m.Reply.ListReply.Title, true
		}
	}
	return "", false
}

// senderFromChatID strips the WhatsApp JID suffix, e.g. "9196...@s.whatsapp.net".
func senderFromChatID(chatID string) string {
	if i := strings.IndexByte(chatID, '@'); i > 0 {
		return chatID[:i]
	}
	return ""
}

// IsDuplicate reports whether ev was already processed for rec. Callers must
// hold the user's lock so the check and the later commit are atomic.
func IsDuplicate(ev domain.InboundEvent, rec *domain.SessionRecord) bool {
	return rec != nil && rec.HasSeen(ev.MessageID)
}
