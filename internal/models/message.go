package models

import "time"

// Origin identifies which side of the conversation produced a message.
type Origin string

const (
	// OriginUser marks a message typed by the authenticated user.
	OriginUser Origin = "user"
	// OriginAssistant marks a reply produced by the assistant, whether it
	// arrived over the transport call, over the push feed, or as a
	// synthetic failure notice.
	OriginAssistant Origin = "assistant"
)

// Message is a single entry in a conversation log. The ID is a sequence
// number assigned by the session store at append time; senders never
// choose their own ids.
type Message struct {
	ID             uint64    `json:"id"`
	Origin         Origin    `json:"origin"`
	Body           string    `json:"body"`
	OffersFollowUp bool      `json:"offersFollowUp,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	// CorrelationID is set on an assistant message only while its turn is
	// still awaiting confirmation from the second source. It is cleared
	// once the turn settles for good.
	CorrelationID string `json:"correlationId,omitempty"`

	// FailureNotice marks the synthetic assistant message appended when
	// the transport call failed before any reply was observed.
	FailureNotice bool `json:"failureNotice,omitempty"`
}
