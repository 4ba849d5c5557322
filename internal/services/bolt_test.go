package services

import (
	"path/filepath"
	"testing"

	"github.com/dermassist/dermassist/internal/models"
)

func TestBoltArchiveRoundTrip(t *testing.T) {
	archive, err := NewBoltArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewBoltArchive() error = %v", err)
	}
	defer archive.Close()

	msgs := []models.Message{
		{ID: 1, Origin: models.OriginUser, Body: "I have an itchy rash"},
		{ID: 2, Origin: models.OriginAssistant, Body: "Sounds like dermatitis.", OffersFollowUp: true},
	}
	for _, msg := range msgs {
		if err := archive.ArchiveMessage("conv-1", msg); err != nil {
			t.Fatalf("ArchiveMessage() error = %v", err)
		}
	}

	got, err := archive.Transcript("conv-1")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("transcript out of sequence order: %+v", got)
	}
	if !got[1].OffersFollowUp {
		t.Error("follow-up flag lost in the archive")
	}
}

func TestBoltArchiveIdempotent(t *testing.T) {
	archive, err := NewBoltArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewBoltArchive() error = %v", err)
	}
	defer archive.Close()

	msg := models.Message{ID: 1, Origin: models.OriginUser, Body: "hello"}
	if err := archive.ArchiveMessage("conv-1", msg); err != nil {
		t.Fatalf("ArchiveMessage() error = %v", err)
	}
	if err := archive.ArchiveMessage("conv-1", msg); err != nil {
		t.Fatalf("ArchiveMessage() second write error = %v", err)
	}

	got, err := archive.Transcript("conv-1")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("duplicate archive produced %d entries, want 1", len(got))
	}
}

func TestBoltArchiveUnknownConversation(t *testing.T) {
	archive, err := NewBoltArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewBoltArchive() error = %v", err)
	}
	defer archive.Close()

	got, err := archive.Transcript("missing")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unknown conversation yielded %d messages", len(got))
	}
}
