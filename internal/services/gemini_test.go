package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dermassist/dermassist/internal/models"
)

func TestGeminiSendChat(t *testing.T) {
	var gotReq geminiGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "Sounds like *dermatitis*.\n\n🏥 [SUGGEST_APPOINTMENT]"}},
				}},
			},
		})
	}))
	defer srv.Close()

	g := NewGemini("test-key", "gemini-1.5-pro", "You are DermAssist.", srv.URL)

	history := []models.Message{
		{Origin: models.OriginUser, Body: "hello"},
		{Origin: models.OriginAssistant, Body: "hi there"},
		{Origin: models.OriginAssistant, Body: "failure notice", FailureNotice: true},
	}
	reply, err := g.SendChat(context.Background(), "corr-1", history, "I have an itchy rash")
	if err != nil {
		t.Fatalf("SendChat() error = %v", err)
	}

	if reply.Text != "Sounds like *dermatitis*." {
		t.Errorf("Text = %q", reply.Text)
	}
	if !reply.OffersFollowUp {
		t.Error("follow-up marker not detected")
	}
	if reply.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q", reply.CorrelationID)
	}

	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "You are DermAssist." {
		t.Error("system prompt not forwarded")
	}
	// History plus the new user message; the failure notice is excluded.
	if len(gotReq.Contents) != 3 {
		t.Fatalf("request carried %d contents, want 3", len(gotReq.Contents))
	}
	if gotReq.Contents[1].Role != "model" {
		t.Errorf("assistant history role = %q, want model", gotReq.Contents[1].Role)
	}
	if gotReq.Contents[2].Parts[0].Text != "I have an itchy rash" {
		t.Errorf("user message not last: %+v", gotReq.Contents[2])
	}
}

func TestGeminiSendChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	}))
	defer srv.Close()

	g := NewGemini("test-key", "gemini-1.5-pro", "", srv.URL)

	if _, err := g.SendChat(context.Background(), "corr-1", nil, "hello"); err == nil {
		t.Fatal("SendChat() returned nil error for an API error")
	}
}
