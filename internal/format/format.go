// Package format renders assistant reply text into display-ready HTML.
// Rendering is purely presentational: the same input always produces
// the same markup, and message ordering and content semantics are never
// altered.
package format

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/renderer/html"
)

// followUpHTML is the call-to-action block surfaced when a reply offers
// a dermatologist follow-up.
const followUpHTML = `<div class="follow-up"><p>Would you like to consult with a dermatologist?</p><a href="#appointment">🏥 Book Appointment</a></div>`

// keyTerm matches the assistant dialect's single-asterisk emphasis for
// key terms, e.g. *dermatitis*.
var keyTerm = regexp.MustCompile(`\*([^*\n]+)\*`)

var md = goldmark.New(
	goldmark.WithExtensions(
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// Render converts one assistant reply body into HTML. Key terms wrapped
// in single asterisks become strong emphasis, "•" bullet markers become
// list items, and emoji-led section lines survive as their own lines.
// When offersFollowUp is set the appointment call-to-action block is
// appended after the rendered body.
func Render(body string, offersFollowUp bool) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(normalize(body)), &buf); err != nil {
		return "", err
	}

	out := buf.String()
	if offersFollowUp {
		out += followUpHTML
	}
	return out, nil
}

// normalize rewrites the reply dialect into standard markdown.
func normalize(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "• "); ok {
			lines[i] = "- " + rest
			continue
		}
		lines[i] = trimmed
	}
	normalized := strings.Join(lines, "\n")

	// The dialect uses single asterisks for key terms; leave input alone
	// if it already contains standard markdown strong emphasis.
	if !strings.Contains(normalized, "**") {
		normalized = keyTerm.ReplaceAllString(normalized, "**$1**")
	}
	return strings.TrimSpace(normalized)
}
