// Package whapi sends prompts through the Whapi.cloud WhatsApp gateway.
package whapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// MaxReplyButtons is the largest set WhatsApp renders as reply buttons.
	// Larger sets are sent as a single-section list.
	MaxReplyButtons = 3
	// DefaultMaxOptions is the largest list Whapi accepts in one section.
	DefaultMaxOptions = 10

	defaultBaseURL   = "https://gate.whapi.cloud"
	defaultListLabel = "Choose an option"
	defaultTimeout   = 30 * time.Second
	maxErrorBody     = 4 << 10
)

// ErrTooManyOptions is returned for prompts with more buttons than MaxOptions.
var ErrTooManyOptions = errors.New("too many options for gateway")

// SendError reports a failed send.
type SendError struct {
	Recipient  string
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("whapi send to %s: status %d: %s", e.Recipient, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("whapi send to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Options configure a Client.
type Options struct {
	BaseURL    string
	MaxOptions int
	// ListLabel is the text of the button that opens a list message.
	ListLabel  string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client is a Whapi.cloud messaging client.
type Client struct {
	baseURL    string
	token      string
	maxOptions int
	listLabel  string
	http       *http.Client
	logger     *slog.Logger
}

// New creates a Client authenticated with token.
func New(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.MaxOptions <= 0 {
		opts.MaxOptions = DefaultMaxOptions
	}
	if opts.ListLabel == "" {
		opts.ListLabel = defaultListLabel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      token,
		maxOptions: opts.MaxOptions,
		listLabel:  opts.ListLabel,
		http:       hc,
		logger:     logger,
	}
}

// MaxOptions reports the largest button set Send accepts.
func (c *Client) MaxOptions() int { return c.maxOptions }

type textMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type interactiveMessage struct {
	To     string            `json:"to"`
	Type   string            `json:"type"`
	Body   interactiveBody   `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveBody struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons []replyButton `json:"buttons,omitempty"`
	List    *listAction   `json:"list,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listAction struct {
	Label    string        `json:"label"`
	Sections []listSection `json:"sections"`
}

type listSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Send delivers p to recipient: plain text when p has no buttons, reply
// buttons for up to three options, a list message otherwise.
func (c *Client) Send(ctx context.Context, recipient string, p domain.Prompt) error {
	if len(p.Buttons) > c.maxOptions {
		return &SendError{Recipient: recipient, Err: fmt.Errorf("%w: %d > %d", ErrTooManyOptions, len(p.Buttons), c.maxOptions)}
	}
	if len(p.Buttons) == 0 {
		return c.post(ctx, recipient, "/messages/text", textMessage{To: recipient, Body: p.Text})
	}
	return c.post(ctx, recipient, "/messages/interactive", c.buildInteractive(recipient, p))
}

func (c *Client) buildInteractive(recipient string, p domain.Prompt) interactiveMessage {
	msg := interactiveMessage{
		To:   recipient,
		Body: interactiveBody{Text: p.Text},
	}
	if len(p.Buttons) <= MaxReplyButtons {
		msg.Type = "button"
		for i, title := range p.Buttons {
			msg.Action.Buttons = append(msg.Action.Buttons, replyButton{
				Type:  "quick_reply",
				ID:    fmt.Sprintf("btn_%d", i),
				Title: title,
			})
		}
		return msg
	}

	msg.Type = "list"
	rows := make([]listRow, len(p.Buttons))
	for i, title := range p.Buttons {
		rows[i] = listRow{ID: fmt.Sprintf("opt_%d", i), Title: title}
	}
	msg.Action.List = &listAction{Label: c.listLabel, Sections: []listSection{{Rows: rows}}}
	return msg
}

func (c *Client) post(ctx context.Context, recipient, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Recipient: recipient, Err: fmt.Errorf("marshal message: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &SendError{Recipient: recipient, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Failed to send message", "to", recipient, "path", path, "error", err)
		return &SendError{Recipient: recipient, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Gateway rejected message", "to", recipient, "path", path, "status", resp.StatusCode)
		return &SendError{Recipient: recipient, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	c.logger.Debug("Sent message", "to", recipient, "path", path)
	return nil
}
