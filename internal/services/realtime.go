package services

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dermassist/dermassist/internal/models"
)

const (
	realtimeBufferSize = 16
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Realtime subscribes to the push feed over a websocket. The feed
// delivers server-originated assistant replies at least once and in no
// particular order relative to transport completions; deduplication is
// the consumer's concern.
type Realtime struct {
	feedURL string
	dialer  *websocket.Dialer

	logger *slog.Logger
}

// NewRealtime creates a subscriber for the given feed URL.
func NewRealtime(feedURL string, logger *slog.Logger) *Realtime {
	return &Realtime{
		feedURL: feedURL,
		dialer:  websocket.DefaultDialer,
		logger:  logger.With(slog.String("module", "realtime")),
	}
}

// Subscribe opens a feed subscription scoped to one user identity. The
// returned channel yields decoded push events until ctx is cancelled,
// then closes. Connection drops are retried with capped backoff; events
// published while disconnected are the feed's responsibility to
// redeliver.
func (r *Realtime) Subscribe(ctx context.Context, userID string) (<-chan models.PushEvent, error) {
	endpoint, err := url.Parse(r.feedURL)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("user_id", userID)
	endpoint.RawQuery = q.Encode()

	ch := make(chan models.PushEvent, realtimeBufferSize)
	go r.run(ctx, endpoint.String(), userID, ch)
	return ch, nil
}

func (r *Realtime) run(ctx context.Context, endpoint, userID string, ch chan<- models.PushEvent) {
	defer close(ch)

	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := r.dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			r.logger.Warn("push feed dial failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		r.readLoop(ctx, conn, ch)
	}
}

// readLoop pumps events from one connection until it drops or ctx ends.
func (r *Realtime) readLoop(ctx context.Context, conn *websocket.Conn, ch chan<- models.PushEvent) {
	defer conn.Close()

	// Unblock ReadJSON when the subscription is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var evt models.PushEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("push feed connection dropped", slog.String("error", err.Error()))
			}
			return
		}

		select {
		case ch <- evt:
		case <-ctx.Done():
			return
		}
	}
}
