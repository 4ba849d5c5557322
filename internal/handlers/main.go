package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmaxmax/go-sse"

	"github.com/dermassist/dermassist/internal/format"
	"github.com/dermassist/dermassist/internal/models"
)

// userIDHeader carries the authenticated identity set by the upstream
// auth proxy. Identity management itself is out of scope here.
const userIDHeader = "X-User-ID"

var messageSSEType = sse.Type("message")

// Main wires the conversation engines to their HTTP surface: the send
// and snapshot endpoints for the widget, and a server-sent-events
// stream notifying it of appended messages on a per-user topic.
type Main struct {
	sseSrv   *sse.Server
	sessions *Sessions

	logger *slog.Logger
}

// NewMain creates a Main around the given session registry. The SSE
// server subscribes each client to its own identity's topic only.
func NewMain(sessions *Sessions, logger *slog.Logger) *Main {
	m := &Main{
		sessions: sessions,
		logger:   logger.With(slog.String("module", "handlers")),
	}

	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			userID := identity(s.Req)
			if userID == "" {
				return sse.Subscription{}, false
			}
			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      []string{sse.DefaultTopic, userTopic(userID)},
			}, true
		},
	}

	sessions.OnAppend(m.publishMessage)
	return m
}

func userTopic(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// identity resolves the authenticated user for a request. The SSE
// endpoint also accepts a query parameter because EventSource clients
// cannot set headers.
func identity(r *http.Request) string {
	if userID := r.Header.Get(userIDHeader); userID != "" {
		return userID
	}
	return r.URL.Query().Get("user_id")
}

// messageView is the wire shape of one rendered message.
type messageView struct {
	ID             uint64        `json:"id"`
	Origin         models.Origin `json:"origin"`
	Body           string        `json:"body"`
	HTML           string        `json:"html,omitempty"`
	OffersFollowUp bool          `json:"offersFollowUp,omitempty"`
	FailureNotice  bool          `json:"failureNotice,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func (m *Main) renderMessage(msg models.Message) messageView {
	view := messageView{
		ID:             msg.ID,
		Origin:         msg.Origin,
		Body:           msg.Body,
		OffersFollowUp: msg.OffersFollowUp,
		FailureNotice:  msg.FailureNotice,
		CreatedAt:      msg.CreatedAt,
	}

	if msg.Origin == models.OriginAssistant {
		html, err := format.Render(msg.Body, msg.OffersFollowUp)
		if err != nil {
			m.logger.Error("failed to render message",
				slog.Uint64("messageID", msg.ID),
				slog.String("error", err.Error()))
		} else {
			view.HTML = html
		}
	}
	return view
}

// publishMessage pushes an appended message to the owning identity's
// SSE topic.
func (m *Main) publishMessage(userID string, msg models.Message) {
	payload, err := json.Marshal(m.renderMessage(msg))
	if err != nil {
		m.logger.Error("failed to marshal sse payload", slog.String("error", err.Error()))
		return
	}

	e := &sse.Message{Type: messageSSEType}
	e.AppendData(string(payload))
	if err := m.sseSrv.Publish(e, userTopic(userID)); err != nil {
		m.logger.Error("failed to publish message",
			slog.Uint64("messageID", msg.ID),
			slog.String("error", err.Error()))
	}
}

// HandleSSE serves the event stream for the requesting identity.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown tears down the engines and the SSE server. A close event is
// broadcast so clients stop reconnecting.
func (m *Main) Shutdown(ctx context.Context) error {
	m.sessions.Shutdown()

	e := &sse.Message{Type: sse.Type("close")}
	e.AppendData("bye")
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
