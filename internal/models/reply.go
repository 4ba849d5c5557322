package models

import "time"

// Reply is the completed result of one transport call.
type Reply struct {
	Text           string
	OffersFollowUp bool

	// CorrelationID echoes the tag the request was dispatched with, when
	// the backend returns one.
	CorrelationID string
}

// PushEvent is a single record delivered by the realtime push feed.
// Delivery is at-least-once and unordered relative to transport
// completion, so consumers must tolerate duplicates and stale events.
type PushEvent struct {
	UserID         string    `json:"userId"`
	ResponseText   string    `json:"responseText"`
	OffersFollowUp bool      `json:"offersFollowUp"`
	CreatedAt      time.Time `json:"createdAt"`
	CorrelationID  string    `json:"correlationId,omitempty"`
}
