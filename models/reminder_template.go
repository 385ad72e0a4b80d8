package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultReminderTemplate = "Hi [ClientName], a reminder of your tattoo session with [ArtistName] on [Date]. Reply in the InkSnap chat if anything changes."

// ReminderTemplate is the SMS text an artist sends ahead of confirmed sessions.
type ReminderTemplate struct {
	ArtistID  uuid.UUID `gorm:"size:36;primaryKey" json:"artist_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Render replaces the template placeholders.
func (t *ReminderTemplate) Render(clientName, artistName string, at time.Time) string {
	msg := DefaultReminderTemplate
	if t != nil && t.IsActive && strings.TrimSpace(t.Message) != "" {
		msg = t.Message
	}
	r := strings.NewReplacer(
		"[ClientName]", clientName,
		"[ArtistName]", artistName,
		"[Date]", at.Format("Mon Jan 2, 15:04"),
	)
	return r.Replace(msg)
}
