package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
	"github.com/brainytots/wa-connect/internal/inbound"
	"github.com/brainytots/wa-connect/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName             = "github.com/brainytots/wa-connect/internal/conversation"
	defaultOutboundTimeout = 5 * time.Second
)

// ErrMissingUser is returned for events without a sender id.
var ErrMissingUser = errors.New("event has no user id")

// Config wires a Service.
type Config struct {
	Engine     *Engine
	Store      store.Store
	Gateway    Gateway
	Dispatcher Dispatcher
	// Observer is optional.
	Observer Observer
	// OutboundTimeout bounds each backend call and each send.
	OutboundTimeout time.Duration
	Now             func() time.Time
	Logger          *slog.Logger
	Tracer          trace.Tracer
}

// Service drives the Engine for inbound events. Events for the same user
// are processed one at a time; different users proceed in parallel.
type Service struct {
	engine     *Engine
	store      store.Store
	gateway    Gateway
	dispatcher Dispatcher
	observer   Observer
	locks      *keyedMutex
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewService validates cfg and returns a ready Service.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Engine == nil:
		return nil, errors.New("conversation: engine is required")
	case cfg.Store == nil:
		return nil, errors.New("conversation: store is required")
	case cfg.Gateway == nil:
		return nil, errors.New("conversation: gateway is required")
	case cfg.Dispatcher == nil:
		return nil, errors.New("conversation: dispatcher is required")
	}
	if limit := cfg.Dispatcher.MaxOptions(); limit > 0 {
		if err := cfg.Engine.resolver.Validate(limit); err != nil {
			return nil, fmt.Errorf("templates do not fit dispatcher: %w", err)
		}
	}

	s := &Service{
		engine:     cfg.Engine,
		store:      cfg.Store,
		gateway:    cfg.Gateway,
		dispatcher: cfg.Dispatcher,
		observer:   cfg.Observer,
		locks:      newKeyedMutex(),
		timeout:    cfg.OutboundTimeout,
		now:        cfg.Now,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
	}
	if s.timeout <= 0 {
		s.timeout = defaultOutboundTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// ProcessBatch processes a batch with one goroutine per user. Each user's
// events keep their batch order. A failed event does not stop the rest of
// the batch; the errors are joined in order of each user's first event.
func (s *Service) ProcessBatch(ctx context.Context, events []domain.InboundEvent) error {
	var order []string
	byUser := make(map[string][]domain.InboundEvent)
	for _, ev := range events {
		if _, ok := byUser[ev.UserID]; !ok {
			order = append(order, ev.UserID)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}

	errs := make([][]error, len(order))
	var g errgroup.Group
	for i, user := range order {
		g.Go(func() error {
			for _, ev := range byUser[user] {
				if err := s.Process(ctx, ev); err != nil {
					errs[i] = append(errs[i], fmt.Errorf("message %s from %s: %w", ev.MessageID, ev.UserID, err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []error
	for _, e := range errs {
		all = append(all, e...)
	}
	return errors.Join(all...)
}

// Process handles one inbound event end to end: load, dedup, decide,
// call the backend, send, then persist.
//
// The record is saved only after every prompt was sent. If a backend call
// already changed remote state and a send then fails, the record is saved
// with the unsent prompts in its outbox. The user's next event re-sends
// them and is consumed as the reply; it is not handed to the Engine.
func (s *Service) Process(ctx context.Context, ev domain.InboundEvent) (err error) {
	ctx, span := s.tracer.Start(ctx, "conversation.process",
		trace.WithAttributes(
			attribute.String("user.id", ev.UserID),
			attribute.String("message.id", ev.MessageID),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if ev.UserID == "" {
		return ErrMissingUser
	}

	unlock, err := s.locks.Lock(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}
	defer unlock()

	rec, err := s.store.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		s.logger.Error("Failed to load session", "user_id", ev.UserID, "error", err)
		return fmt.Errorf("load session: %w", err)
	}
	log := s.logger.With("user_id", ev.UserID, "state", rec.State.String(), "message_id", ev.MessageID)
	span.SetAttributes(attribute.String("conversation.state", rec.State.String()))

	if inbound.IsDuplicate(ev, rec) {
		log.Debug("Duplicate message ignored")
		return nil
	}

	flushed, err := s.flushOutbox(ctx, rec, log)
	if err != nil {
		return err
	}
	if flushed > 0 {
		return s.commit(ctx, ev, rec.State, rec)
	}

	from := rec.State
	step, err := s.engine.Handle(rec, ev)
	if err != nil {
		log.Error("Engine failed to handle event", "error", err)
		return fmt.Errorf("handle event: %w", err)
	}

	backendCommitted := false
	for step.Call != nil {
		call := *step.Call
		out := s.execute(ctx, ev.UserID, call)
		if out.Err == nil {
			backendCommitted = true
		}
		step, err = s.engine.Resume(step.Record, call, out)
		if err != nil {
			log.Error("Engine failed to resume after backend call", "call", call.Kind.String(), "error", err)
			return fmt.Errorf("resume after %s: %w", call.Kind, err)
		}
	}
	if step.Failure != nil {
		log.Warn("Backend call failed", "transient", isTransient(step.Failure), "error", step.Failure)
	}

	sent, sendErr := s.sendAll(ctx, ev.UserID, step.Prompts)
	if sendErr != nil {
		if step.Commit && backendCommitted {
			step.Record.Outbox = append(step.Record.Outbox, step.Prompts[sent:]...)
			log.Warn("Prompt send failed after backend change, queued for re-send",
				"queued", len(step.Prompts)-sent, "error", sendErr)
			if err := s.commit(ctx, ev, from, step.Record); err != nil {
				return errors.Join(fmt.Errorf("send prompt: %w", sendErr), err)
			}
			return fmt.Errorf("send prompt: %w", sendErr)
		}
		log.Error("Prompt send failed, state not advanced", "error", sendErr)
		return fmt.Errorf("send prompt: %w", sendErr)
	}

	if !step.Commit {
		return fmt.Errorf("backend unavailable: %w", step.Failure)
	}
	return s.commit(ctx, ev, from, step.Record)
}

func (s *Service) commit(ctx context.Context, ev domain.InboundEvent, from domain.State, rec *domain.SessionRecord) error {
	now := s.now()
	rec.LastActivityAt = now
	rec.RememberMessage(ev.MessageID)
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("Failed to save session", "user_id", rec.UserID, "state", rec.State.String(), "error", err)
		return fmt.Errorf("save session: %w", err)
	}

	if rec.State != from {
		s.logger.Info("Conversation transition",
			"user_id", rec.UserID, "from", from.String(), "to", rec.State.String())
		if s.observer != nil {
			s.observer.Observe(domain.Transition{UserID: rec.UserID, From: from, To: rec.State, At: now})
		}
	}
	return nil
}

// flushOutbox re-sends queued prompts and returns how many were delivered.
// The caller persists rec after a complete flush.
func (s *Service) flushOutbox(ctx context.Context, rec *domain.SessionRecord, log *slog.Logger) (int, error) {
	if len(rec.Outbox) == 0 {
		return 0, nil
	}
	sent, sendErr := s.sendAll(ctx, rec.UserID, rec.Outbox)
	rec.Outbox = rec.Outbox[sent:]
	if len(rec.Outbox) == 0 {
		rec.Outbox = nil
	}
	if sendErr != nil {
		log.Warn("Outbox re-send failed", "remaining", len(rec.Outbox), "error", sendErr)
		if sent > 0 {
			if err := s.store.Save(ctx, rec); err != nil {
				log.Error("Failed to save session after outbox flush", "error", err)
				return sent, errors.Join(fmt.Errorf("flush outbox: %w", sendErr), fmt.Errorf("save session: %w", err))
			}
		}
		return sent, fmt.Errorf("flush outbox: %w", sendErr)
	}
	log.Info("Outbox delivered", "count", sent)
	return sent, nil
}

func (s *Service) execute(ctx context.Context, userID string, call Call) Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "backend."+call.Kind.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	var out Outcome
	switch call.Kind {
	case CallStart:
		out.Start, out.Err = s.gateway.Start(ctx, call.Start)
	case CallSubmit:
		out.Answer, out.Err = s.gateway.SubmitAnswer(ctx, call.Answer)
	case CallClose:
		out.Result, out.Err = s.gateway.Close(ctx, call.SessionID)
	default:
		out.Err = fmt.Errorf("unknown call kind %d", call.Kind)
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	return out
}

// sendAll sends prompts in order and returns how many were delivered.
func (s *Service) sendAll(ctx context.Context, to string, prompts []domain.Prompt) (int, error) {
	for i, p := range prompts {
		if err := s.send(ctx, to, p); err != nil {
			return i, err
		}
	}
	return len(prompts), nil
}

func (s *Service) send(ctx context.Context, to string, p domain.Prompt) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "dispatcher.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("prompt.buttons", len(p.Buttons))))
	defer span.End()

	if err := s.dispatcher.Send(ctx, to, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
