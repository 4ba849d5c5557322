package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dermassist/dermassist/internal/models"
	"github.com/dermassist/dermassist/internal/reconcile"
)

// PushFeed is the realtime subscription source for server-originated
// assistant replies.
type PushFeed interface {
	Subscribe(ctx context.Context, userID string) (<-chan models.PushEvent, error)
}

// Archiver persists appended messages outside the engine. Archive
// failures are logged, never surfaced to the conversation.
type Archiver interface {
	ArchiveMessage(conversationID string, msg models.Message) error
}

// SessionConfig carries the settings applied to every new engine.
type SessionConfig struct {
	Greeting string
	Window   time.Duration
	Timeout  time.Duration
}

// Sessions tracks one conversation engine per authenticated identity.
// Engines are created lazily on first use; an identity change (login or
// logout) resets the identity's engine, discarding its session store
// and cancelling its push subscription.
type Sessions struct {
	transport reconcile.Transport
	feed      PushFeed // may be nil when no push feed is configured
	archive   Archiver // may be nil
	cfg       SessionConfig
	logger    *slog.Logger

	mu       sync.Mutex
	engines  map[string]*engine
	onAppend func(userID string, msg models.Message)
}

type engine struct {
	rec    *reconcile.Reconciler
	cancel context.CancelFunc
}

// NewSessions creates an empty registry.
func NewSessions(transport reconcile.Transport, feed PushFeed, archive Archiver, cfg SessionConfig, logger *slog.Logger) *Sessions {
	return &Sessions{
		transport: transport,
		feed:      feed,
		archive:   archive,
		cfg:       cfg,
		logger:    logger.With(slog.String("module", "sessions")),
		engines:   make(map[string]*engine),
	}
}

// OnAppend registers a callback invoked for every message appended to
// any engine's store. Must be set before the registry starts serving.
func (s *Sessions) OnAppend(fn func(userID string, msg models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAppend = fn
}

// For returns the engine for an identity, creating it on first use.
func (s *Sessions) For(userID string) *reconcile.Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[userID]; ok {
		return e.rec
	}
	return s.startLocked(userID)
}

func (s *Sessions) startLocked(userID string) *reconcile.Reconciler {
	rec := reconcile.New(s.transport, reconcile.Config{
		UserID:   userID,
		Greeting: s.cfg.Greeting,
		Window:   s.cfg.Window,
		Timeout:  s.cfg.Timeout,
		Logger:   s.logger,
	})

	notify := func(conversationID string, msg models.Message) {
		if s.archive != nil {
			if err := s.archive.ArchiveMessage(conversationID, msg); err != nil {
				s.logger.Error("failed to archive message",
					slog.String("conversationID", conversationID),
					slog.Uint64("messageID", msg.ID),
					slog.String("error", err.Error()))
			}
		}
		if s.onAppend != nil {
			s.onAppend(userID, msg)
		}
	}

	// The greeting was appended at construction, before any observer
	// could attach; replay the snapshot so collaborators see it too.
	for _, msg := range rec.Messages() {
		notify(rec.ConversationID(), msg)
	}
	rec.Observe(notify)

	ctx, cancel := context.WithCancel(context.Background())
	if s.feed != nil {
		events, err := s.feed.Subscribe(ctx, userID)
		if err != nil {
			s.logger.Error("failed to subscribe to push feed",
				slog.String("userID", userID),
				slog.String("error", err.Error()))
		} else {
			go func() {
				for evt := range events {
					rec.HandlePush(evt)
				}
			}()
		}
	}

	s.engines[userID] = &engine{rec: rec, cancel: cancel}
	s.logger.Info("conversation engine started",
		slog.String("userID", userID),
		slog.String("conversationID", rec.ConversationID()))
	return rec
}

// Reset tears down the identity's engine, if any. The next use of the
// identity starts a fresh conversation; late callbacks aimed at the old
// engine are ignored by it.
func (s *Sessions) Reset(userID string) {
	s.mu.Lock()
	e, ok := s.engines[userID]
	delete(s.engines, userID)
	s.mu.Unlock()

	if !ok {
		return
	}
	e.cancel()
	e.rec.Close()
	s.logger.Info("conversation engine reset", slog.String("userID", userID))
}

// Shutdown tears down every engine.
func (s *Sessions) Shutdown() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*engine)
	s.mu.Unlock()

	for _, e := range engines {
		e.cancel()
		e.rec.Close()
	}
}
