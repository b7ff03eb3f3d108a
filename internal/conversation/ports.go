// Package conversation implements the assessment conversation flow: a pure
// state machine that turns inbound events into prompts and backend calls,
// and a driver that executes those calls under a per-user lock.
package conversation

import (
	"context"
	"errors"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/templates"
)

// Resolver renders localized prompts. *templates.Catalog implements it.
type Resolver interface {
	Render(key templates.Key, lang string, params templates.Params) (domain.Prompt, error)
	Buttons(key templates.Key, lang string) []string
	LanguageFor(label string) (string, bool)
	Validate(maxOptions int) error
}

// Gateway is the assessment backend session lifecycle.
type Gateway interface {
	Start(ctx context.Context, req domain.StartRequest) (domain.StartResult, error)
	SubmitAnswer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error)
	Close(ctx context.Context, sessionID string) (domain.AssessmentResult, error)
}

// Dispatcher delivers prompts to a user over the messaging gateway.
type Dispatcher interface {
	Send(ctx context.Context, recipient string, prompt domain.Prompt) error
	// MaxOptions is the largest button set the gateway accepts.
	MaxOptions() int
}

// Observer receives every committed state change.
type Observer interface {
	Observe(t domain.Transition)
}

// isTransient classifies a gateway error. This is the only classifier:
// errors that report their own kind through a Transient method are
// trusted; everything else, including timeouts and cancellations, is
// retry-eligible.
func isTransient(err error) bool {
	var classified interface{ Transient() bool }
	if errors.As(err, &classified) {
		return classified.Transient()
	}
	return true
}

// permanentError is a local failure that retrying the same input cannot fix.
type permanentError string

func (e permanentError) Error() string   { return string(e) }
func (e permanentError) Transient() bool { return false }
