package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dermassist/dermassist/internal/models"
)

// Observer is invoked synchronously after a message has been appended,
// so it never observes partial state.
type Observer func(conversationID string, msg models.Message)

// Store is the append-only message log for one conversation and the
// single source of truth for rendering. It performs no locking of its
// own: every mutation funnels through the reconciler's serialized entry
// point, which owns the store exclusively.
type Store struct {
	conversationID string
	messages       []models.Message
	nextID         uint64
	correlated     map[string]int // correlation id -> message index
	observers      []Observer

	now func() time.Time
}

// New creates an empty store with a freshly assigned conversation id.
func New() *Store {
	return &Store{
		conversationID: uuid.NewString(),
		nextID:         1,
		correlated:     make(map[string]int),
		now:            time.Now,
	}
}

// ConversationID returns the opaque identifier assigned at creation.
func (s *Store) ConversationID() string {
	return s.conversationID
}

// Append assigns the next sequence id and the creation timestamp, adds
// the message to the log, and notifies observers. It is the only way a
// message enters the log; entries are never edited or deleted.
func (s *Store) Append(msg models.Message) uint64 {
	msg.ID = s.nextID
	s.nextID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}

	s.messages = append(s.messages, msg)
	if msg.CorrelationID != "" {
		s.correlated[msg.CorrelationID] = len(s.messages) - 1
	}

	for _, observe := range s.observers {
		observe(s.conversationID, msg)
	}
	return msg.ID
}

// List returns a snapshot copy of the log in insertion order. Insertion
// order is display order; the log is never re-sorted by timestamp.
func (s *Store) List() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len reports the number of messages in the log.
func (s *Store) Len() int {
	return len(s.messages)
}

// Has reports whether a message in the log still carries the given
// correlation id, i.e. its turn has not fully settled.
func (s *Store) Has(correlationID string) bool {
	_, ok := s.correlated[correlationID]
	return ok
}

// ClearCorrelation removes the pending marker from the message tagged
// with the given correlation id. The message body and ordering are
// untouched; only the settlement bookkeeping changes.
func (s *Store) ClearCorrelation(correlationID string) {
	idx, ok := s.correlated[correlationID]
	if !ok {
		return
	}
	s.messages[idx].CorrelationID = ""
	delete(s.correlated, correlationID)
}

// Observe registers a callback for future appends. Observers must be
// registered before the store is handed to its writer.
func (s *Store) Observe(fn Observer) {
	s.observers = append(s.observers, fn)
}
