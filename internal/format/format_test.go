package format_test

import (
	"strings"
	"testing"

	"github.com/dermassist/dermassist/internal/format"
)

func TestRenderKeyTerms(t *testing.T) {
	out, err := format.Render("It sounds like *dermatitis* to me.", false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "<strong>dermatitis</strong>") {
		t.Errorf("key term not rendered as strong emphasis: %s", out)
	}
}

func TestRenderBullets(t *testing.T) {
	body := "Some quick recommendations:\n\n• Keep the area clean and dry\n• Avoid scratching"

	out, err := format.Render(body, false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "<li>Keep the area clean and dry</li>") {
		t.Errorf("bullet marker not rendered as list item: %s", out)
	}
	if !strings.Contains(out, "<li>Avoid scratching</li>") {
		t.Errorf("second bullet missing: %s", out)
	}
}

func TestRenderPreservesOrder(t *testing.T) {
	body := "🔍 Symptoms include redness.\n\n💡 Moisturize regularly."

	out, err := format.Render(body, false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	first := strings.Index(out, "Symptoms include redness")
	second := strings.Index(out, "Moisturize regularly")
	if first < 0 || second < 0 || second < first {
		t.Errorf("section order not preserved: %s", out)
	}
}

func TestRenderFollowUpBlock(t *testing.T) {
	withFollowUp, err := format.Render("See a dermatologist.", true)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(withFollowUp, "Book Appointment") {
		t.Error("follow-up block missing when offersFollowUp is set")
	}

	without, err := format.Render("See a dermatologist.", false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(without, "Book Appointment") {
		t.Error("follow-up block present when offersFollowUp is not set")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	body := "🔍 *Psoriasis* symptoms:\n\n• Red patches\n• White scales"

	a, err := format.Render(body, true)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := format.Render(body, true)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if a != b {
		t.Errorf("same input produced different markup:\n%s\n%s", a, b)
	}
}

func TestRenderLeavesStandardMarkdownAlone(t *testing.T) {
	out, err := format.Render("Already **bold** here.", false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("standard strong emphasis mangled: %s", out)
	}
}
