// Package flow runs one user event through the conversation: debounce, load,
// engine decision, collaborators and a version-checked write, retrying on
// write conflicts.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwax12/newbotcursor/core/logger"
	"github.com/bryanwax12/newbotcursor/internal/debounce"
	"github.com/bryanwax12/newbotcursor/internal/engine"
	"github.com/bryanwax12/newbotcursor/internal/orders"
	"github.com/bryanwax12/newbotcursor/internal/session"
	"github.com/bryanwax12/newbotcursor/internal/steps"
	"github.com/bryanwax12/newbotcursor/internal/templates"
)

// DefaultMaxAttempts bounds load/decide/write rounds per event.
const DefaultMaxAttempts = 3

// Reasons reported for collaborator failures that carry no business reason.
const (
	ReasonFinalizeError = "finalize_error"
	ReasonTemplateError = "template_error"
	ReasonNotFound      = "not_found"
	ReasonNotOwned      = "not_owned"
)

// Finalizer creates the order for a confirmed draft. It must be idempotent
// per draft id.
type Finalizer interface {
	Finalize(ctx context.Context, draftID string, userID int64, fields map[string]string, generated ...string) (string, error)
}

// TemplateLoader returns the field map of a template owned by ownerID.
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, templateID string, ownerID int64) (map[string]string, error)
}

// Reply is what the transport renders after an event.
type Reply struct {
	Outcome engine.Outcome
	// Session is the state after the event, nil when the user has none.
	Session *session.Session
	// Prompt describes the current step of an active session.
	Prompt *steps.Prompt
}

// Service is safe for concurrent use.
type Service struct {
	machine     *engine.Machine
	store       session.Store
	guard       *debounce.Guard
	finalizer   Finalizer
	templates   TemplateLoader
	maxAttempts int
	newDraftID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithDebounce installs a debounce guard.
func WithDebounce(g *debounce.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithFinalizer sets the order-creation collaborator.
func WithFinalizer(f Finalizer) Option {
	return func(s *Service) { s.finalizer = f }
}

// WithTemplates sets the template collaborator.
func WithTemplates(t TemplateLoader) Option {
	return func(s *Service) { s.templates = t }
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithDraftIDs overrides draft id generation.
func WithDraftIDs(gen func() string) Option {
	return func(s *Service) { s.newDraftID = gen }
}

// New returns a Service.
func New(machine *engine.Machine, store session.Store, opts ...Option) *Service {
	s := &Service{
		machine:     machine,
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		newDraftID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) reply(out engine.Outcome, sess *session.Session) Reply {
	r := Reply{Outcome: out, Session: sess}
	if sess != nil && !sess.Terminal() {
		p := s.machine.Registry().PromptFor(sess.Cursor, sess)
		r.Prompt = &p
	}
	return r
}

// Start returns the user's active session or creates a new one.
func (s *Service) Start(ctx context.Context, userID int64) (Reply, error) {
	fresh := s.machine.NewSession(userID, s.newDraftID())
	sess, err := s.store.CreateOrGet(ctx, fresh)
	if err != nil {
		s.logStoreError(ctx, userID, "create_or_get", err)
		return Reply{}, err
	}
	kind := engine.Resumed
	if sess.DraftID == fresh.DraftID {
		kind = engine.Started
	}
	s.logAdvance(ctx, sess, engine.Outcome{Kind: kind, Step: sess.Cursor}, 1, time.Now())
	return s.reply(engine.Outcome{Kind: kind, Step: sess.Cursor}, sess), nil
}

// Restart cancels the active session, if any, and starts a new one.
func (s *Service) Restart(ctx context.Context, userID int64) (Reply, error) {
	if _, err := s.apply(ctx, userID, engine.Cancel()); err != nil {
		return Reply{}, err
	}
	s.guard.Forget(userID)
	return s.Start(ctx, userID)
}

// StartWithTemplate starts a session seeded from a template. An active
// session that already holds answers is left alone and reported as a
// template_not_at_start rejection so the user can restart first.
func (s *Service) StartWithTemplate(ctx context.Context, userID int64, templateID string) (Reply, error) {
	r, err := s.Start(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if !engine.AtStart(r.Session) {
		out := engine.Outcome{Kind: engine.Rejected, Reason: engine.ReasonTemplateNotAtStart, Step: r.Session.Cursor}
		return s.reply(out, r.Session), nil
	}
	return s.apply(ctx, userID, engine.UseTemplate(templateID))
}

// Resume returns the active session with its prompt, or a no_session outcome.
func (s *Service) Resume(ctx context.Context, userID int64) (Reply, error) {
	sess, err := s.store.Load(ctx, userID)
	if err != nil {
		s.logStoreError(ctx, userID, "load", err)
		return Reply{}, err
	}
	if sess == nil {
		return Reply{Outcome: engine.Outcome{Kind: engine.NoSession}}, nil
	}
	return s.reply(engine.Outcome{Kind: engine.Resumed, Step: sess.Cursor}, sess), nil
}

// Active reports whether the user has a session in progress. Storage errors
// count as no session.
func (s *Service) Active(ctx context.Context, userID int64) bool {
	sess, err := s.store.Load(ctx, userID)
	return err == nil && sess != nil
}

// Handle applies one event from userID. Only session storage failures are
// returned as errors; every other result is an outcome.
func (s *Service) Handle(ctx context.Context, userID int64, ev engine.Event) (Reply, error) {
	if !s.guard.Allow(userID, string(ev.Kind), ev.Fingerprint()) {
		logger.Debug(ctx, logger.ComponentFlow, "flow.debounced",
			slog.Int64("user_id", userID),
			slog.String("kind", string(ev.Kind)),
		)
		return Reply{Outcome: engine.Outcome{Kind: engine.Debounced}}, nil
	}
	return s.apply(ctx, userID, ev)
}

func (s *Service) apply(ctx context.Context, userID int64, ev engine.Event) (Reply, error) {
	start := time.Now()
	var (
		base     *session.Session // session the previous attempt decided on
		intended *session.Session // what the previous attempt tried to write
		prevOut  engine.Outcome

		finalized   bool
		orderID     string
		finalizeErr error

		loaded   bool
		fields   map[string]string
		loadErr  error
		attempts int
		closing  int
	)

	for attempts = 1; attempts <= s.maxAttempts; attempts++ {
		cur, err := s.store.Load(ctx, userID)
		if err != nil {
			s.logStoreError(ctx, userID, "load", err)
			return Reply{}, err
		}
		if cur == nil {
			if base != nil {
				// The session ended while this event was in flight.
				switch {
				case ev.Kind == engine.EventCancel:
					return Reply{Outcome: engine.Outcome{Kind: engine.Cancelled, Step: base.Cursor}}, nil
				case ev.Kind == engine.EventConfirm && orderID != "":
					return Reply{Outcome: engine.Outcome{Kind: engine.Completed, OrderID: orderID, Step: base.Cursor}}, nil
				}
			}
			return Reply{Outcome: engine.Outcome{Kind: engine.NoSession}}, nil
		}

		if finalized && finalizeErr == nil {
			// The order exists; a concurrent edit must not reopen its draft.
			if cur.DraftID != base.DraftID {
				out := engine.Outcome{Kind: engine.Completed, OrderID: orderID, Step: base.Cursor}
				s.logAdvance(ctx, base, out, attempts, start)
				return Reply{Outcome: out}, nil
			}
			next, out := s.machine.Finalized(cur, orderID)
			ok, err := s.store.CompareAndSwap(ctx, next, cur.Version)
			if err != nil {
				s.logStoreError(ctx, userID, "compare_and_swap", err)
				return Reply{}, err
			}
			if ok {
				s.logAdvance(ctx, next, out, attempts, start)
				return s.reply(out, next), nil
			}
			if closing < s.maxAttempts {
				// closing the draft does not spend the event's retry budget
				closing++
				attempts--
			}
			continue
		}

		if base != nil && ev.CursorBound() {
			if engine.Applied(intended, cur, base.Cursor) {
				s.logAdvance(ctx, cur, prevOut, attempts, start)
				return s.reply(prevOut, cur), nil
			}
			if cur.DraftID != base.DraftID || cur.Cursor != base.Cursor {
				out := engine.Outcome{Kind: engine.Stale, Step: cur.Cursor}
				s.logAdvance(ctx, cur, out, attempts, start)
				return s.reply(out, cur), nil
			}
		}

		next, out := s.machine.Advance(cur, ev)
		switch out.Kind {
		case engine.ReadyForFinalization:
			orderID, finalizeErr = s.finalize(ctx, cur)
			finalized = true
			if finalizeErr != nil {
				out = engine.Outcome{Kind: engine.FinalizeFailed, Reason: finalizeReason(finalizeErr), Step: cur.Cursor}
				s.logAdvance(ctx, cur, out, attempts, start)
				return s.reply(out, cur), nil
			}
			next, out = s.machine.Complete(cur, orderID)
		case engine.LoadTemplate:
			if !loaded {
				fields, loadErr = s.loadTemplate(ctx, out.TemplateID, userID)
				loaded = true
			}
			if loadErr != nil {
				out = engine.Outcome{Kind: engine.TemplateFailed, Reason: templateReason(loadErr), TemplateID: out.TemplateID, Step: cur.Cursor}
				s.logAdvance(ctx, cur, out, attempts, start)
				return s.reply(out, cur), nil
			}
			next, out = s.machine.ApplyTemplate(cur, out.TemplateID, fields)
		}

		if next == nil {
			s.logAdvance(ctx, cur, out, attempts, start)
			return s.reply(out, cur), nil
		}

		ok, err := s.store.CompareAndSwap(ctx, next, cur.Version)
		if err != nil {
			s.logStoreError(ctx, userID, "compare_and_swap", err)
			return Reply{}, err
		}
		if ok {
			s.logAdvance(ctx, next, out, attempts, start)
			return s.reply(out, next), nil
		}

		logger.Warn(ctx, logger.ComponentFlow, "flow.conflict",
			slog.Int64("user_id", userID),
			slog.String("draft_id", cur.DraftID),
			slog.String("step", string(cur.Cursor)),
			slog.Int64("version", cur.Version),
			slog.Int("attempts", attempts),
		)
		base, intended, prevOut = cur, next, out
	}

	out := engine.Outcome{Kind: engine.Conflict}
	cur, err := s.store.Load(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	s.logAdvance(ctx, cur, out, s.maxAttempts, start)
	return s.reply(out, cur), nil
}

func (s *Service) finalize(ctx context.Context, sess *session.Session) (string, error) {
	if s.finalizer == nil {
		return "", errors.New("flow: no finalizer configured")
	}
	id, err := s.finalizer.Finalize(ctx, sess.DraftID, sess.UserID, sess.Values(), sess.AutoGenerated()...)
	if err != nil {
		logger.Warn(ctx, logger.ComponentFlow, "flow.finalize",
			slog.String("status", "fail"),
			slog.Int64("user_id", sess.UserID),
			slog.String("draft_id", sess.DraftID),
			slog.String("err", err.Error()),
		)
	}
	return id, err
}

func (s *Service) loadTemplate(ctx context.Context, templateID string, userID int64) (map[string]string, error) {
	if s.templates == nil {
		return nil, errors.New("flow: no template loader configured")
	}
	return s.templates.LoadTemplate(ctx, templateID, userID)
}

func finalizeReason(err error) string {
	var rej *orders.RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonFinalizeError
}

func templateReason(err error) string {
	switch {
	case errors.Is(err, templates.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, templates.ErrNotOwned):
		return ReasonNotOwned
	}
	return ReasonTemplateError
}

func (s *Service) logAdvance(ctx context.Context, sess *session.Session, out engine.Outcome, attempts int, start time.Time) {
	attrs := []slog.Attr{
		slog.String("outcome", string(out.Kind)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	}
	if sess != nil {
		attrs = append(attrs,
			slog.Int64("user_id", sess.UserID),
			slog.String("draft_id", sess.DraftID),
			slog.String("step", string(sess.Cursor)),
			slog.Int64("version", sess.Version),
		)
	}
	if out.Reason != "" {
		attrs = append(attrs, slog.String("reason", out.Reason))
	}
	if out.OrderID != "" {
		attrs = append(attrs, slog.String("order_id", out.OrderID))
	}
	logger.Info(ctx, logger.ComponentFlow, "flow.advance", attrs...)
}

func (s *Service) logStoreError(ctx context.Context, userID int64, op string, err error) {
	logger.Error(ctx, logger.ComponentFlow, "flow.store",
		slog.String("status", "error"),
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
}
