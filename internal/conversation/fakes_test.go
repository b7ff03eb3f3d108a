package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/templates"
)

var testNow = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

type kindError struct {
	transient bool
}

func (e *kindError) Error() string {
	if e.transient {
		return "backend unavailable"
	}
	return "backend rejected request"
}

func (e *kindError) Transient() bool { return e.transient }

var (
	errTransient = &kindError{transient: true}
	errPermanent = &kindError{transient: false}
)

type fakeGateway struct {
	mu sync.Mutex

	starts     []domain.StartRequest
	submits    []domain.AnswerRequest
	closes     []string
	successful int

	startErrs  []error
	submitErrs []error
	closeErrs  []error
	// completeAfter makes SubmitAnswer report completion on the n-th successful submission.
	completeAfter int
	result        domain.AssessmentResult
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (g *fakeGateway) Start(_ context.Context, req domain.StartRequest) (domain.StartResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.starts = append(g.starts, req)
	if err := popErr(&g.startErrs); err != nil {
		return domain.StartResult{}, err
	}
	return domain.StartResult{SessionID: "backend-session-1", Question: "Does your child smile back at you?"}, nil
}

func (g *fakeGateway) SubmitAnswer(_ context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits = append(g.submits, req)
	if err := popErr(&g.submitErrs); err != nil {
		return domain.AnswerResult{}, err
	}
	g.successful++
	if g.completeAfter > 0 && g.successful >= g.completeAfter {
		return domain.AnswerResult{Completed: true}, nil
	}
	return domain.AnswerResult{Question: "Does your child wave bye-bye?"}, nil
}

func (g *fakeGateway) Close(_ context.Context, sessionID string) (domain.AssessmentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closes = append(g.closes, sessionID)
	if err := popErr(&g.closeErrs); err != nil {
		return domain.AssessmentResult{}, err
	}
	return g.result, nil
}

func (g *fakeGateway) counts() (starts, submits, successful, closes int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.starts), len(g.submits), g.successful, len(g.closes)
}

type sentPrompt struct {
	to     string
	prompt domain.Prompt
}

type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []sentPrompt
	failNext int
	// okBeforeFail sends succeed before failNext applies.
	okBeforeFail int
	// delay simulates a slow gateway and lets tests observe overlap.
	delay    time.Duration
	inFlight map[string]int
	maxSeen  map[string]int
	// block holds sends to a recipient until the channel is closed.
	block map[string]chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{inFlight: map[string]int{}, maxSeen: map[string]int{}, block: map[string]chan struct{}{}}
}

var errSendFailed = errors.New("gateway returned 502")

func (d *fakeDispatcher) Send(ctx context.Context, to string, p domain.Prompt) error {
	d.mu.Lock()
	d.inFlight[to]++
	if d.inFlight[to] > d.maxSeen[to] {
		d.maxSeen[to] = d.inFlight[to]
	}
	gate := d.block[to]
	delay := d.delay
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight[to]--
		d.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		if d.okBeforeFail == 0 {
			d.failNext--
			return errSendFailed
		}
		d.okBeforeFail--
	}
	d.sent = append(d.sent, sentPrompt{to: to, prompt: p})
	return nil
}

func (d *fakeDispatcher) MaxOptions() int { return DefaultMaxOptions }

func (d *fakeDispatcher) prompts(to string) []domain.Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.Prompt
	for _, s := range d.sent {
		if s.to == to {
			out = append(out, s.prompt)
		}
	}
	return out
}

func (d *fakeDispatcher) failSends(n int) {
	d.mu.Lock()
	d.failNext = n
	d.mu.Unlock()
}

// failAfter lets n sends through and fails the next one.
func (d *fakeDispatcher) failAfter(n int) {
	d.mu.Lock()
	d.okBeforeFail = n
	d.failNext = 1
	d.mu.Unlock()
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []domain.Transition
}

func (o *recordingObserver) Observe(t domain.Transition) {
	o.mu.Lock()
	o.transitions = append(o.transitions, t)
	o.mu.Unlock()
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(templates.NewCatalog(), EngineOptions{
		Now:          func() time.Time { return testNow },
		NewAttemptID: func() string { return "attempt-1" },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func mustRender(t *testing.T, key templates.Key, lang string, params templates.Params) domain.Prompt {
	t.Helper()
	p, err := templates.NewCatalog().Render(key, lang, params)
	if err != nil {
		t.Fatalf("render %s: %v", key, err)
	}
	return p
}

func boolPtr(b bool) *bool { return &b }

func intPtr(n int) *int { return &n }

// recordIn builds a record that has legitimately reached state.
func recordIn(state domain.State) *domain.SessionRecord {
	rec := domain.NewSessionRecord("919800000001", testNow.Add(-time.Minute))
	rec.State = state
	if state == domain.StateNew || state == domain.StateLanguageSelect {
		return rec
	}
	rec.Language = "en"
	if state == domain.StateAskName {
		return rec
	}
	rec.Profile.Name = "Aarav"
	if state == domain.StateAskDOB {
		return rec
	}
	rec.Profile.DateOfBirth = domain.Date{Year: 2024, Month: time.March, Day: 15}
	if state == domain.StateAskGestational {
		return rec
	}
	rec.Profile.Premature = boolPtr(true)
	if state == domain.StateAskGestationalWeeks {
		return rec
	}
	rec.Profile.GestationalWeeks = intPtr(34)
	rec.AttemptID = "attempt-0"
	rec.BackendSessionID = "backend-session-0"
	rec.QuestionIndex = 4
	rec.QuestionTotalEstimate = 12
	rec.CurrentQuestion = "Does your child stack two blocks?"
	if state == domain.StateAssessment {
		return rec
	}
	rec.Result = &domain.AssessmentResult{
		Reference:      "https://results.example/?session_id=backend-session-0",
		TotalQuestions: 12,
		AgeMonths:      18.5,
		OverallStatus:  "On track",
	}
	return rec
}
