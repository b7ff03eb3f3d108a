package conversation

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/templates"
	"github.com/google/uuid"
)

// Engine defaults.
const (
	DefaultMaxOptions    = 10
	DefaultQuestionTotal = 12
	MinGestationalWeeks  = 24
	MaxGestationalWeeks  = 42
)

var (
	// ErrIllegalTransition is returned when a handler attempts an edge
	// that is not in the transition table.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrUnhandledState is returned for a record in a state with no handler.
	ErrUnhandledState = errors.New("no handler for state")
	// ErrSessionAlreadyStarted guards against assigning a second backend
	// session id within one assessment attempt.
	ErrSessionAlreadyStarted = errors.New("backend session already started")
	// ErrEmptyQuestion is returned when the backend neither completed the
	// session nor sent a next question. It is permanent: the answer was
	// accepted and the user is told the assessment cannot continue.
	ErrEmptyQuestion error = permanentError("backend returned no question")
)

// transitions lists the forward edges of the flow. Staying in the same
// state is always allowed; restart is handled by SessionRecord.Reset.
var transitions = map[domain.State][]domain.State{
	domain.StateNew:                 {domain.StateLanguageSelect},
	domain.StateLanguageSelect:      {domain.StateAskName},
	domain.StateAskName:             {domain.StateAskDOB},
	domain.StateAskDOB:              {domain.StateAskGestational},
	domain.StateAskGestational:      {domain.StateAskGestationalWeeks, domain.StateAssessment},
	domain.StateAskGestationalWeeks: {domain.StateAssessment},
	domain.StateAssessment:          {domain.StateCompleted},
	domain.StateCompleted:           nil,
}

// CanTransition reports whether from -> to is an edge of the flow.
func CanTransition(from, to domain.State) bool {
	return from == to || slices.Contains(transitions[from], to)
}

// EngineOptions tune the engine. Zero values select the defaults.
type EngineOptions struct {
	// MaxOptions is the gateway's button limit; every button set in the
	// resolver is checked against it at construction.
	MaxOptions    int
	QuestionTotal int
	Now           func() time.Time
	NewAttemptID  func() string
}

type stateHandler func(e *Engine, rec *domain.SessionRecord, text string) (Step, error)

// Engine is the conversation state machine. It holds no per-user state
// and never performs I/O, so one Engine serves every user concurrently.
type Engine struct {
	resolver Resolver
	opts     EngineOptions
	handlers map[domain.State]stateHandler
}

// NewEngine builds an engine and validates the resolver's button sets.
func NewEngine(resolver Resolver, opts EngineOptions) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("conversation: nil resolver")
	}
	if opts.MaxOptions <= 0 {
		opts.MaxOptions = DefaultMaxOptions
	}
	if opts.QuestionTotal <= 0 {
		opts.QuestionTotal = DefaultQuestionTotal
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewAttemptID == nil {
		opts.NewAttemptID = uuid.NewString
	}
	if err := resolver.Validate(opts.MaxOptions); err != nil {
		return nil, fmt.Errorf("templates do not fit gateway: %w", err)
	}

	return &Engine{
		resolver: resolver,
		opts:     opts,
		handlers: map[domain.State]stateHandler{
			domain.StateNew:                 (*Engine).handleNew,
			domain.StateLanguageSelect:      (*Engine).handleLanguage,
			domain.StateAskName:             (*Engine).handleName,
			domain.StateAskDOB:              (*Engine).handleDOB,
			domain.StateAskGestational:      (*Engine).handleGestational,
			domain.StateAskGestationalWeeks: (*Engine).handleGestationalWeeks,
			domain.StateAssessment:          (*Engine).handleAnswer,
			domain.StateCompleted:           (*Engine).handleCompleted,
		},
	}, nil
}

// Handle decides the next step for ev. rec is not modified.
func (e *Engine) Handle(rec *domain.SessionRecord, ev domain.InboundEvent) (Step, error) {
	if rec == nil {
		return Step{}, errors.New("conversation: nil record")
	}
	next := rec.Clone()
	text := strings.TrimSpace(ev.Text)

	if next.State == domain.StateNew {
		next.Reset()
		return e.handleNew(next, text)
	}

	if !ev.Unsupported {
		switch parseCommand(text) {
		case commandRestart:
			next.Reset()
			return e.handleNew(next, text)
		case commandHelp:
			if next.State == domain.StateCompleted {
				return e.handleCompleted(next, text)
			}
			return e.reply(next, message{key: templates.KeyHelp})
		}
	}

	if next.State == domain.StateCompleted {
		return e.handleCompleted(next, text)
	}
	if ev.Unsupported {
		return e.reply(next, message{key: templates.KeyUnsupported})
	}

	h, ok := e.handlers[next.State]
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrUnhandledState, next.State)
	}
	step, err := h(e, next, text)
	if err != nil {
		return Step{}, err
	}
	if step.Call != nil && step.Call.Kind == CallSubmit {
		step.Call.Answer.IdempotencyKey = idempotencyKey(next.AttemptID, ev.MessageID)
	}
	return step, nil
}

// Resume finishes a step after its Call was executed.
func (e *Engine) Resume(rec *domain.SessionRecord, call Call, out Outcome) (Step, error) {
	next := rec.Clone()

	switch call.Kind {
	case CallStart:
		if out.Err != nil {
			return e.failure(next, out.Err, false)
		}
		if next.BackendSessionID != "" {
			return Step{}, ErrSessionAlreadyStarted
		}
		next.AttemptID = call.Start.AttemptID
		next.BackendSessionID = out.Start.SessionID
		next.QuestionIndex = 0
		next.QuestionTotalEstimate = e.opts.QuestionTotal
		next.CurrentQuestion = out.Start.Question
		next.Result = nil
		next.PendingClose = false
		if err := move(next, domain.StateAssessment); err != nil {
			return Step{}, err
		}
		return e.reply(next,
			message{key: templates.KeyStartingAssessment, params: templates.Params{"name": next.Profile.Name}},
			e.question(next),
		)

	case CallSubmit:
		if out.Err != nil {
			return e.failure(next, out.Err, false)
		}
		if out.Answer.Completed {
			next.PendingClose = true
			return Step{Record: next, Call: &Call{Kind: CallClose, SessionID: next.BackendSessionID}, Commit: true}, nil
		}
		if out.Answer.Question == "" {
			return e.failure(next, ErrEmptyQuestion, true)
		}
		next.QuestionIndex++
		next.CurrentQuestion = out.Answer.Question
		return e.reply(next, e.question(next))

	case CallClose:
		if out.Err != nil {
			return e.failure(next, out.Err, true)
		}
		result := out.Result
		next.Result = &result
		next.PendingClose = false
		if err := move(next, domain.StateCompleted); err != nil {
			return Step{}, err
		}
		return e.handleCompleted(next, "")
	}
	return Step{}, fmt.Errorf("conversation: unknown call kind %d", call.Kind)
}

func (e *Engine) handleNew(rec *domain.SessionRecord, _ string) (Step, error) {
	if err := move(rec, domain.StateLanguageSelect); err != nil {
		return Step{}, err
	}
	return e.reply(rec, message{key: templates.KeyWelcome})
}

func (e *Engine) handleLanguage(rec *domain.SessionRecord, text string) (Step, error) {
	code, ok := e.resolver.LanguageFor(text)
	if !ok {
		return e.reply(rec, message{key: templates.KeyInvalidLanguage})
	}
	rec.Language = code
	if err := move(rec, domain.StateAskName); err != nil {
		return Step{}, err
	}
	return e.reply(rec, message{key: templates.KeyAskName})
}

func (e *Engine) handleName(rec *domain.SessionRecord, text string) (Step, error) {
	if text == "" {
		return e.reply(rec, message{key: templates.KeyInvalidName})
	}
	rec.Profile.Name = text
	if err := move(rec, domain.StateAskDOB); err != nil {
		return Step{}, err
	}
	return e.reply(rec, message{key: templates.KeyAskDOB, params: templates.Params{"name": text}})
}

func (e *Engine) handleDOB(rec *domain.SessionRecord, text string) (Step, error) {
	dob, err := ParseDate(text, e.opts.Now())
	if err != nil {
		return e.reply(rec, message{key: templates.KeyInvalidDOB})
	}
	rec.Profile.DateOfBirth = dob
	if err := move(rec, domain.StateAskGestational); err != nil {
		return Step{}, err
	}
	return e.reply(rec, message{key: templates.KeyAskGestational, params: templates.Params{"name": rec.Profile.Name}})
}

const (
	yesIndex = 0
	noIndex  = 1
)

func (e *Engine) handleGestational(rec *domain.SessionRecord, text string) (Step, error) {
	idx, ok := templates.Match(text, e.resolver.Buttons(templates.KeyAskGestational, rec.Language))
	if !ok || (idx != yesIndex && idx != noIndex) {
		return e.reply(rec, message{key: templates.KeyInvalidYesNo})
	}

	premature := idx == yesIndex
	rec.Profile.Premature = &premature
	rec.Profile.GestationalWeeks = nil
	if !premature {
		return e.startAssessment(rec)
	}

	if err := move(rec, domain.StateAskGestationalWeeks); err != nil {
		return Step{}, err
	}
	return e.reply(rec, message{key: templates.KeyAskGestationalWeeks, params: templates.Params{
		"name": rec.Profile.Name,
		"min":  MinGestationalWeeks,
		"max":  MaxGestationalWeeks,
	}})
}

func (e *Engine) handleGestationalWeeks(rec *domain.SessionRecord, text string) (Step, error) {
	weeks, err := strconv.Atoi(text)
	if err != nil || weeks < MinGestationalWeeks || weeks > MaxGestationalWeeks {
		return e.reply(rec, message{key: templates.KeyInvalidGestationalWeeks, params: templates.Params{
			"min": MinGestationalWeeks,
			"max": MaxGestationalWeeks,
		}})
	}
	rec.Profile.GestationalWeeks = &weeks
	return e.startAssessment(rec)
}

func (e *Engine) startAssessment(rec *domain.SessionRecord) (Step, error) {
	if err := rec.Profile.Validate(); err != nil {
		return Step{}, err
	}
	if rec.BackendSessionID != "" {
		return Step{}, ErrSessionAlreadyStarted
	}
	return Step{
		Record: rec,
		Call: &Call{Kind: CallStart, Start: domain.StartRequest{
			AttemptID: e.opts.NewAttemptID(),
			Language:  rec.Language,
			Profile:   rec.Profile.Clone(),
		}},
		Commit: true,
	}, nil
}

func (e *Engine) handleAnswer(rec *domain.SessionRecord, text string) (Step, error) {
	if rec.PendingClose {
		return Step{Record: rec, Call: &Call{Kind: CallClose, SessionID: rec.BackendSessionID}, Commit: true}, nil
	}

	labels := e.resolver.Buttons(templates.KeyQuestion, rec.Language)
	idx, ok := templates.Match(text, labels)
	if !ok || idx >= len(templates.AnswerCodes) {
		return e.reply(rec, message{key: templates.KeyInvalidAnswer}, e.question(rec))
	}
	return Step{
		Record: rec,
		Call: &Call{Kind: CallSubmit, Answer: domain.AnswerRequest{
			SessionID: rec.BackendSessionID,
			Answer:    templates.AnswerCodes[idx],
			Label:     labels[idx],
			Language:  rec.Language,
		}},
		Commit: true,
	}, nil
}

func (e *Engine) handleCompleted(rec *domain.SessionRecord, _ string) (Step, error) {
	if rec.Result == nil {
		return e.reply(rec, message{key: templates.KeyRestartHint})
	}
	summary, err := e.summary(rec)
	if err != nil {
		return Step{}, err
	}
	return e.reply(rec, summary, message{key: templates.KeyRestartHint})
}

// failure reports a backend error to the user. committed is true when an
// earlier call in the same event already changed backend state, in which
// case the record must be kept.
func (e *Engine) failure(rec *domain.SessionRecord, cause error, committed bool) (Step, error) {
	transient := isTransient(cause)
	key := templates.KeyPermanentError
	if transient {
		key = templates.KeyTransientError
	}
	step, err := e.reply(rec, message{key: key})
	if err != nil {
		return Step{}, err
	}
	step.Commit = committed || !transient
	step.Failure = cause
	return step, nil
}

type message struct {
	key    templates.Key
	params templates.Params
}

func (e *Engine) reply(rec *domain.SessionRecord, msgs ...message) (Step, error) {
	prompts := make([]domain.Prompt, 0, len(msgs))
	for _, m := range msgs {
		p, err := e.resolver.Render(m.key, rec.Language, m.params)
		if err != nil {
			return Step{}, fmt.Errorf("render %s: %w", m.key, err)
		}
		prompts = append(prompts, p)
	}
	return Step{Record: rec, Prompts: prompts, Commit: true}, nil
}

func (e *Engine) question(rec *domain.SessionRecord) message {
	total := rec.QuestionTotalEstimate
	if total <= 0 {
		total = e.opts.QuestionTotal
	}
	return message{key: templates.KeyQuestion, params: templates.Params{
		"current":  rec.QuestionIndex + 1,
		"total":    total,
		"question": rec.CurrentQuestion,
	}}
}

func (e *Engine) summary(rec *domain.SessionRecord) (message, error) {
	note := ""
	if rec.Result.UsingCorrectedAge {
		p, err := e.resolver.Render(templates.KeyCorrectedAgeNote, rec.Language, nil)
		if err != nil {
			return message{}, fmt.Errorf("render %s: %w", templates.KeyCorrectedAgeNote, err)
		}
		note = p.Text
	}
	return message{key: templates.KeyAssessmentComplete, params: templates.Params{
		"name":            rec.Profile.Name,
		"age_months":      strconv.FormatFloat(rec.Result.AgeMonths, 'f', 1, 64),
		"corrected_note":  note,
		"total_questions": rec.Result.TotalQuestions,
		"overall_status":  rec.Result.OverallStatus,
		"results_url":     rec.Result.Reference,
	}}, nil
}

func move(rec *domain.SessionRecord, to domain.State) error {
	if !CanTransition(rec.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, rec.State, to)
	}
	rec.State = to
	return nil
}

func idempotencyKey(attemptID, messageID string) string {
	if messageID == "" {
		return ""
	}
	return attemptID + ":" + messageID
}
