package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingDeclined  BookingStatus = "declined_by_artist"
	BookingCancelled BookingStatus = "cancelled_by_client"
)

// CanTransition reports whether status may move to next. Only pending moves, and only
// into one of the three terminal states.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	if s != BookingPending {
		return false
	}
	switch next {
	case BookingConfirmed, BookingDeclined, BookingCancelled:
		return true
	}
	return false
}

type BookingRole string

const (
	RoleArtist BookingRole = "artist"
	RoleClient BookingRole = "client"
)

type BookingAction string

const (
	ActionConfirm BookingAction = "confirm"
	ActionDecline BookingAction = "decline"
	ActionCancel  BookingAction = "cancel"
)

// Target is the status the action moves a pending booking into.
func (a BookingAction) Target() (BookingStatus, bool) {
	switch a {
	case ActionConfirm:
		return BookingConfirmed, true
	case ActionDecline:
		return BookingDeclined, true
	case ActionCancel:
		return BookingCancelled, true
	}
	return "", false
}

// Role is who may perform the action.
func (a BookingAction) Role() BookingRole {
	if a == ActionCancel {
		return RoleClient
	}
	return RoleArtist
}

type Booking struct {
	ID               uuid.UUID     `gorm:"size:36;primaryKey" json:"id"`
	ClientID         uuid.UUID     `gorm:"size:36;index;not null" json:"client_id"`
	ArtistID         uuid.UUID     `gorm:"size:36;index;not null" json:"artist_id"`
	RequestedAt      time.Time     `gorm:"not null;index" json:"requested_at"`
	Service          *string       `json:"service"`
	Notes            *string       `gorm:"type:text" json:"notes"`
	ClientPhone      *string       `gorm:"size:32" json:"client_phone"`
	ImageURL         *string       `json:"image_url"`
	ImageRef         *string       `json:"-"`
	ConventionDateID *uuid.UUID    `gorm:"size:36" json:"convention_date_id"`
	Status           BookingStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	ReminderSentAt   *time.Time    `json:"-"`
	CreatedAt        time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Artist *User `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BookingPending
	}
	return
}

// BookingFilter scopes a booking list to one side of the relationship.
type BookingFilter struct {
	ArtistID *uuid.UUID
	ClientID *uuid.UUID
}

// BookingUpdate is a status change scoped to the acting identity.
type BookingUpdate struct {
	ID      uuid.UUID
	ActorID uuid.UUID
	Role    BookingRole
	From    BookingStatus
	To      BookingStatus
}
