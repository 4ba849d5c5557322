package services

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/dermassist/dermassist/internal/models"
)

// BoltArchive mirrors the in-memory session log into a BoltDB file so
// transcripts survive the session. It observes the store from outside
// the engine; the engine itself keeps no durable state.
type BoltArchive struct {
	db *bolt.DB
}

// NewBoltArchive opens (or creates, with 0600 permissions) the archive
// database at the given path.
func NewBoltArchive(path string) (BoltArchive, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltArchive{}, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return BoltArchive{db: db}, nil
}

func conversationBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("conversation-%s", conversationID))
}

func messageKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// ArchiveMessage stores one appended message under its conversation,
// keyed by the sequence id the session store assigned. Archiving the
// same message twice overwrites it with identical content, so the
// operation is idempotent.
func (b BoltArchive) ArchiveMessage(conversationID string, msg models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(conversationBucketName(conversationID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		v, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bkt.Put(messageKey(msg.ID), v)
	})
}

// Transcript returns the archived messages for a conversation in
// sequence order. A conversation that was never archived yields an
// empty transcript.
func (b BoltArchive) Transcript(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(conversationBucketName(conversationID))
		if bkt == nil {
			return nil
		}

		return bkt.ForEach(func(_, v []byte) error {
			var msg models.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, msg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Close releases the underlying database file.
func (b BoltArchive) Close() error {
	return b.db.Close()
}
