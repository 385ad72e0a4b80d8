package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a 1:1 channel. The pair is stored ordered so the unique index covers
// the unordered pair.
type Conversation struct {
	ID                 uuid.UUID  `gorm:"size:36;primaryKey" json:"id"`
	ParticipantA       uuid.UUID  `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair,priority:1" json:"participant_a"`
	ParticipantB       uuid.UUID  `gorm:"size:36;not null;uniqueIndex:idx_conversation_pair,priority:2;index" json:"participant_b"`
	LastMessagePreview string     `gorm:"size:255" json:"last_message_preview"`
	LastMessageAt      *time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// OrderedPair returns the two identities in storage order.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	return c.ParticipantA == id || c.ParticipantB == id
}

// Other returns the participant that is not id.
func (c *Conversation) Other(id uuid.UUID) uuid.UUID {
	if c.ParticipantA == id {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// ConversationSummary is a directory row as seen by one viewer.
type ConversationSummary struct {
	ID                 uuid.UUID  `json:"id"`
	Other              Profile    `json:"other_participant"`
	LastMessagePreview string     `json:"last_message_preview"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	UnreadCount        int64      `json:"unread_count"`
}
