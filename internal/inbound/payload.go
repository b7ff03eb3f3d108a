// Package inbound converts messaging-gateway webhook payloads into canonical events.
package inbound

// Webhook payload shapes as delivered by the Whapi gateway.

// Payload is one webhook delivery item.
type Payload struct {
	Messages  []Message        `json:"messages,omitempty"`
	Statuses  []map[string]any `json:"statuses,omitempty"`
	Event     EventInfo        `json:"event"`
	ChannelID string           `json:"channel_id"`
}

// EventInfo describes the webhook event kind.
type EventInfo struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

// Message is an individual message inside a payload.
type Message struct {
	ID             string          `json:"id"`
	FromMe         bool            `json:"from_me"`
	Type           string          `json:"type"`
	ChatID         string          `json:"chat_id"`
	Timestamp      int64           `json:"timestamp"`
	From           string          `json:"from"`
	FromName       string          `json:"from_name,omitempty"`
	Source         string          `json:"source,omitempty"`
	Text           *TextBody       `json:"text,omitempty"`
	ButtonResponse *ButtonResponse `json:"button_response,omitempty"`
	Reply          *Reply          `json:"reply,omitempty"`
}

// TextBody is the content of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// ButtonResponse is a legacy quick-reply button selection.
type ButtonResponse struct {
	Text string `json:"text"`
}

// Reply is an interactive reply (reply button or list row).
type Reply struct {
	Type         string     `json:"type"`
	ButtonsReply *ReplyItem `json:"buttons_reply,omitempty"`
	ListReply    *ReplyItem `json:"list_reply,omitempty"`
}

// ReplyItem is the selected interactive option.
type ReplyItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
