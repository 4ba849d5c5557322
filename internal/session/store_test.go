package session_test

import (
	"testing"

	"github.com/dermassist/dermassist/internal/models"
	"github.com/dermassist/dermassist/internal/session"
)

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	s := session.New()

	ids := make([]uint64, 0, 5)
	for range 5 {
		ids = append(ids, s.Append(models.Message{Origin: models.OriginUser, Body: "hi"}))
	}

	for i, id := range ids {
		if id != uint64(i+1) {
			t.Fatalf("id[%d] = %d, want %d", i, id, i+1)
		}
	}

	msgs := s.List()
	if len(msgs) != 5 {
		t.Fatalf("List() returned %d messages, want 5", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("ids not strictly increasing: %d after %d", msgs[i].ID, msgs[i-1].ID)
		}
	}
}

func TestAppendSetsCreatedAt(t *testing.T) {
	s := session.New()
	s.Append(models.Message{Origin: models.OriginUser, Body: "hi"})

	if s.List()[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned at append time")
	}
}

func TestListReturnsSnapshot(t *testing.T) {
	s := session.New()
	s.Append(models.Message{Origin: models.OriginUser, Body: "original"})

	snapshot := s.List()
	snapshot[0].Body = "mutated"

	if got := s.List()[0].Body; got != "original" {
		t.Errorf("snapshot mutation leaked into the store: %q", got)
	}
}

func TestCorrelationTracking(t *testing.T) {
	s := session.New()
	s.Append(models.Message{
		Origin:        models.OriginAssistant,
		Body:          "pending reply",
		CorrelationID: "corr-1",
	})

	if !s.Has("corr-1") {
		t.Fatal("Has(corr-1) = false, want true")
	}
	if s.Has("corr-2") {
		t.Fatal("Has(corr-2) = true, want false")
	}

	s.ClearCorrelation("corr-1")

	if s.Has("corr-1") {
		t.Error("correlation id still present after clear")
	}
	if got := s.List()[0].CorrelationID; got != "" {
		t.Errorf("message still carries correlation id %q after clear", got)
	}
	if got := s.List()[0].Body; got != "pending reply" {
		t.Errorf("clearing the marker altered the body: %q", got)
	}

	// Clearing an unknown id is a no-op.
	s.ClearCorrelation("corr-2")
}

func TestObserversNotifiedSynchronously(t *testing.T) {
	s := session.New()

	var seen []models.Message
	s.Observe(func(conversationID string, msg models.Message) {
		if conversationID != s.ConversationID() {
			t.Errorf("observer got conversation %q, want %q", conversationID, s.ConversationID())
		}
		seen = append(seen, msg)
	})

	s.Append(models.Message{Origin: models.OriginUser, Body: "one"})
	s.Append(models.Message{Origin: models.OriginAssistant, Body: "two"})

	if len(seen) != 2 {
		t.Fatalf("observer saw %d messages, want 2", len(seen))
	}
	if seen[0].ID != 1 || seen[1].ID != 2 {
		t.Errorf("observer saw ids %d, %d; want 1, 2", seen[0].ID, seen[1].ID)
	}
}

func TestConversationIDsAreUnique(t *testing.T) {
	if session.New().ConversationID() == session.New().ConversationID() {
		t.Error("two stores share a conversation id")
	}
}
