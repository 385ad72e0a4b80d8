package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	previewLength = 80
	imagePreview  = "Sent an image"
)

type Message struct {
	ID             uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"size:36;index;not null" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"size:36;index;not null" json:"sender_id"`
	ReceiverID     uuid.UUID `gorm:"size:36;index;not null" json:"receiver_id"`
	Content        *string   `gorm:"type:text" json:"content"`
	ImageURL       *string   `json:"image_url"`
	ImageRef       *string   `json:"-"`
	Read           bool      `gorm:"column:is_read;default:false;index" json:"read"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

// Preview is the directory text for the message.
func (m *Message) Preview() string {
	if m.Content == nil || *m.Content == "" {
		if m.ImageURL != nil {
			return imagePreview
		}
		return ""
	}
	s := *m.Content
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength-1]) + "…"
}
