package services

import (
	"strings"

	"github.com/dermassist/dermassist/internal/models"
)

// followUpMarker is the token the assistant is instructed to emit when
// a reply should offer booking a dermatologist appointment. It is
// stripped from the displayed text and mapped to the follow-up flag.
const followUpMarker = "[SUGGEST_APPOINTMENT]"

// parseReply turns raw model output into a Reply, detecting and
// removing the follow-up marker and its optional emoji prefix.
func parseReply(correlationID, text string) models.Reply {
	offersFollowUp := strings.Contains(text, followUpMarker)
	if offersFollowUp {
		text = strings.ReplaceAll(text, "🏥 "+followUpMarker, "")
		text = strings.ReplaceAll(text, followUpMarker, "")
	}

	return models.Reply{
		Text:           strings.TrimSpace(text),
		OffersFollowUp: offersFollowUp,
		CorrelationID:  correlationID,
	}
}

// historyRole maps session origins onto the role names the chat APIs
// expect.
func historyRole(origin models.Origin) string {
	if origin == models.OriginAssistant {
		return "assistant"
	}
	return "user"
}
