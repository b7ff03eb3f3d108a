package conversation

import (
	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/templates"
)

// CallKind names a backend operation requested by the engine.
type CallKind uint8

const (
	CallStart CallKind = iota + 1
	CallSubmit
	CallClose
)

func (k CallKind) String() string {
	switch k {
	case CallStart:
		return "start"
	case CallSubmit:
		return "submit_answer"
	case CallClose:
		return "close"
	default:
		return "unknown"
	}
}

// Call is a backend operation the driver must execute before the engine
// can finish a transition. Exactly one of the request fields is meaningful
// for a given Kind.
type Call struct {
	Kind      CallKind
	Start     domain.StartRequest
	Answer    domain.AnswerRequest
	SessionID string
}

// Outcome is the result of executing a Call.
type Outcome struct {
	Start  domain.StartResult
	Answer domain.AnswerResult
	Result domain.AssessmentResult
	Err    error
}

// Step is what the engine decided for one event.
//
// Record is the proposed next record. When Commit is false the record must
// be discarded and the inbound message left unconsumed, so the user can
// resend it. Prompts are sent in order. A non-nil Call must be executed and
// its Outcome fed back through Engine.Resume before the step is final.
type Step struct {
	Record  *domain.SessionRecord
	Prompts []domain.Prompt
	Call    *Call
	Commit  bool
	// Failure is the backend error the prompts report, if any.
	Failure error
}

type command uint8

const (
	commandNone command = iota
	commandRestart
	commandHelp
)

var commandWords = map[string]command{
	"restart":    commandRestart,
	"start over": commandRestart,
	"new":        commandRestart,
	"help":       commandHelp,
	"info":       commandHelp,
}

func parseCommand(text string) command {
	return commandWords[templates.Normalize(text)]
}
