// Package reconcile merges the three event sources of a conversation —
// local user sends, transport completions, and realtime push deliveries
// — into a single append-only session log with exactly one assistant
// reply per accepted send.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dermassist/dermassist/internal/dedupe"
	"github.com/dermassist/dermassist/internal/models"
	"github.com/dermassist/dermassist/internal/session"
)

// ErrReplyPending is returned by Send while a previous turn is still
// awaiting its reply. New sends are rejected, not queued, so a reply
// can never be misattributed to the wrong prompt.
var ErrReplyPending = errors.New("a reply is already pending for this conversation")

// ErrClosed is returned by Send after the engine has been torn down.
var ErrClosed = errors.New("conversation engine is closed")

// DefaultFailureNotice is appended when the transport call fails before
// any reply was observed for the turn.
const DefaultFailureNotice = "I'm having trouble reaching the assistant right now. Please try sending your message again."

const (
	defaultWindow  = 30 * time.Second
	defaultTimeout = 60 * time.Second
)

// Transport performs the assistant request for one turn. The call is
// tagged with the turn's correlation id so the backend can echo it on
// the push feed. Implementations fail with an error on network failure,
// timeout, or a non-success status.
type Transport interface {
	SendChat(ctx context.Context, correlationID string, history []models.Message, text string) (models.Reply, error)
}

// Config carries the per-engine settings.
type Config struct {
	// UserID scopes push matching; only events for this identity are
	// considered.
	UserID string

	// Greeting, when non-empty, is appended as the first assistant
	// message on construction.
	Greeting string

	// FailureNotice overrides DefaultFailureNotice when non-empty.
	FailureNotice string

	// Window bounds how long a turn stays matchable for pushes lacking a
	// correlation id, and how long a failure-settled turn can still be
	// superseded by the real answer. Defaults to 30s.
	Window time.Duration

	// Timeout bounds each transport call. Defaults to 60s.
	Timeout time.Duration

	Logger *slog.Logger
}

// turn is the single pending-reply slot. At most one exists at a time.
type turn struct {
	correlationID string
	startedAt     time.Time
}

// settled records the most recently finished turn so that a late or
// redelivered event for it can be recognized. A failure-settled turn
// stays open for exactly one superseding push within the window.
type settled struct {
	correlationID string
	startedAt     time.Time
	byFailure     bool
}

// Reconciler is the turn state machine. All three event sources funnel
// through its mutex, so no two state transitions ever interleave; ties
// between transport and push are resolved by observation order.
type Reconciler struct {
	mu        sync.Mutex
	store     *session.Store
	transport Transport
	claims    *dedupe.Claims
	logger    *slog.Logger

	userID        string
	failureNotice string
	window        time.Duration
	timeout       time.Duration

	pending *turn
	last    *settled
	closed  bool

	now func() time.Time
}

// New creates an engine with a fresh session store. The store is owned
// by the engine; callers read it through Messages.
func New(transport Transport, cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notice := cfg.FailureNotice
	if notice == "" {
		notice = DefaultFailureNotice
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	store := session.New()
	r := &Reconciler{
		store:         store,
		transport:     transport,
		claims:        dedupe.New(window),
		logger:        logger.With(slog.String("module", "reconcile"), slog.String("conversationID", store.ConversationID())),
		userID:        cfg.UserID,
		failureNotice: notice,
		window:        window,
		timeout:       timeout,
		now:           time.Now,
	}

	if cfg.Greeting != "" {
		store.Append(models.Message{Origin: models.OriginAssistant, Body: cfg.Greeting})
	}
	return r
}

// ConversationID returns the id of the underlying session.
func (r *Reconciler) ConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.ConversationID()
}

// Messages returns a snapshot of the session log.
func (r *Reconciler) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.List()
}

// ReplyPending reports whether a turn is awaiting its reply.
func (r *Reconciler) ReplyPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Observe registers a store observer. Must be called before the first
// send.
func (r *Reconciler) Observe(fn session.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Observe(fn)
}

// Send accepts a user message. It appends the message, opens a turn
// tagged with a fresh correlation id, and dispatches the transport call
// without blocking on it. While a turn is pending it returns
// ErrReplyPending and leaves the store untouched.
func (r *Reconciler) Send(ctx context.Context, text string) (uint64, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrClosed
	}
	if r.pending != nil {
		r.mu.Unlock()
		return 0, ErrReplyPending
	}

	// Starting a new turn retires the previous one: its correlation id
	// can never match again.
	r.retireLastLocked()

	// Snapshot before the append: providers treat history as prior
	// context and add the new message themselves.
	history := r.store.List()
	id := r.store.Append(models.Message{Origin: models.OriginUser, Body: text})
	t := &turn{
		correlationID: uuid.NewString(),
		startedAt:     r.now(),
	}
	r.pending = t
	r.mu.Unlock()

	go r.dispatch(ctx, t, history, text)
	return id, nil
}

// dispatch runs the transport call outside the lock and feeds the
// outcome back through the serialized entry point.
func (r *Reconciler) dispatch(ctx context.Context, t *turn, history []models.Message, text string) {
	// The turn outlives the request that started it; only the transport
	// timeout bounds the call.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	reply, err := r.transport.SendChat(ctx, t.correlationID, history, text)
	if err != nil {
		r.failTransport(t, err)
		return
	}
	r.completeTransport(t, reply)
}

// completeTransport settles the turn with the transport reply, unless a
// push already settled it or the engine was torn down — then the
// completion is a duplicate and discarded without touching the store.
func (r *Reconciler) completeTransport(t *turn, reply models.Reply) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.pending != t {
		r.logger.Debug("discarding duplicate transport completion",
			slog.String("correlationID", t.correlationID))
		return
	}

	// Consume the turn's claim so redelivered pushes are dropped.
	r.claims.Claim(t.correlationID)
	r.store.Append(models.Message{
		Origin:         models.OriginAssistant,
		Body:           reply.Text,
		OffersFollowUp: reply.OffersFollowUp,
	})
	r.settleLocked(t, false)
}

// failTransport settles the turn with a synthetic failure notice. The
// notice keeps the correlation id and the claim stays unconsumed: the
// real answer may still arrive over the push feed and supersede the
// notice exactly once.
func (r *Reconciler) failTransport(t *turn, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.pending != t {
		return
	}

	r.logger.Warn("transport call failed, settling turn with failure notice",
		slog.String("correlationID", t.correlationID),
		slog.String("error", cause.Error()))

	r.store.Append(models.Message{
		Origin:        models.OriginAssistant,
		Body:          r.failureNotice,
		CorrelationID: t.correlationID,
		FailureNotice: true,
	})
	r.settleLocked(t, true)
}

// HandlePush feeds one push feed record through the state machine. It
// reports whether the event appended a message; duplicates, stale
// events, and events for other identities are discarded silently.
func (r *Reconciler) HandlePush(evt models.PushEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || evt.UserID != r.userID {
		return false
	}

	if t := r.pending; t != nil && r.matchesOpenLocked(t, evt) {
		r.claims.Claim(t.correlationID)
		r.store.Append(models.Message{
			Origin:         models.OriginAssistant,
			Body:           evt.ResponseText,
			OffersFollowUp: evt.OffersFollowUp,
		})
		r.settleLocked(t, false)
		return true
	}

	if lt := r.last; lt != nil && lt.byFailure && r.matchesSettledLocked(lt, evt) {
		if !r.claims.Claim(lt.correlationID) {
			return false
		}
		// The real answer supersedes the failure notice, exactly once.
		r.store.ClearCorrelation(lt.correlationID)
		lt.byFailure = false
		r.store.Append(models.Message{
			Origin:         models.OriginAssistant,
			Body:           evt.ResponseText,
			OffersFollowUp: evt.OffersFollowUp,
		})
		return true
	}

	r.logger.Debug("discarding unmatched push event",
		slog.String("correlationID", evt.CorrelationID))
	return false
}

// matchesOpenLocked decides whether a push event belongs to the open
// turn: an explicit correlation id match, or — when the payload carries
// none — same user identity while the turn's window is open. The looser
// match is safe because at most one turn is ever pending.
func (r *Reconciler) matchesOpenLocked(t *turn, evt models.PushEvent) bool {
	if evt.CorrelationID != "" {
		return evt.CorrelationID == t.correlationID
	}
	return r.now().Sub(t.startedAt) <= r.window
}

func (r *Reconciler) matchesSettledLocked(lt *settled, evt models.PushEvent) bool {
	if r.now().Sub(lt.startedAt) > r.window {
		return false
	}
	if evt.CorrelationID != "" {
		return evt.CorrelationID == lt.correlationID
	}
	return true
}

// settleLocked closes the turn and returns the engine to the idle
// state; a new send is accepted immediately.
func (r *Reconciler) settleLocked(t *turn, byFailure bool) {
	if !byFailure {
		r.store.ClearCorrelation(t.correlationID)
	}
	r.last = &settled{
		correlationID: t.correlationID,
		startedAt:     t.startedAt,
		byFailure:     byFailure,
	}
	r.pending = nil
}

func (r *Reconciler) retireLastLocked() {
	if r.last == nil {
		return
	}
	if r.last.byFailure {
		// The notice can no longer be superseded once a new turn begins.
		r.store.ClearCorrelation(r.last.correlationID)
	}
	r.claims.Release(r.last.correlationID)
	r.last = nil
}

// Close tears the engine down. Late transport completions and push
// deliveries for a closed engine are ignored rather than surfaced as
// errors, and the discarded store is never mutated again.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.pending = nil
	r.last = nil
	r.claims.Close()
}
