package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dermassist/dermassist/internal/reconcile"
)

// HandleSend accepts one user message for the requesting identity. A
// send attempted while a reply is still pending is rejected with 409
// and does not touch the session; the widget re-enables input once the
// pending turn settles.
func (m *Main) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := identity(r)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	rec := m.sessions.For(userID)
	id, err := rec.Send(r.Context(), payload.Message)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrReplyPending):
			respondError(w, http.StatusConflict, "a reply is still pending")
		case errors.Is(err, reconcile.ErrClosed):
			respondError(w, http.StatusConflict, "conversation was reset, retry")
		default:
			m.logger.Error("failed to accept message", slog.String("error", err.Error()))
			respondError(w, http.StatusInternalServerError, "failed to accept message")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"id":             id,
		"conversationId": rec.ConversationID(),
	})
}

// HandleMessages returns the identity's session snapshot with assistant
// bodies rendered for display.
func (m *Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := identity(r)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	rec := m.sessions.For(userID)
	msgs := rec.Messages()
	views := make([]messageView, len(msgs))
	for i, msg := range msgs {
		views[i] = m.renderMessage(msg)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"conversationId": rec.ConversationID(),
		"replyPending":   rec.ReplyPending(),
		"messages":       views,
	})
}

// HandleReset discards the identity's conversation. Called on logout or
// login so the next open of the widget starts a fresh session.
func (m *Main) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := identity(r)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "user identity is required")
		return
	}

	m.sessions.Reset(userID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleHealth reports liveness.
func (m *Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
