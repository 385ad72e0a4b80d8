package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID         uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	ArtistID   uuid.UUID `gorm:"size:36;not null;index;uniqueIndex:idx_review_pair,priority:2" json:"artist_id"`
	ReviewerID uuid.UUID `gorm:"size:36;not null;uniqueIndex:idx_review_pair,priority:1" json:"reviewer_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time `json:"created_at"`

	Reviewer *User `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

type Follow struct {
	FollowerID uuid.UUID `gorm:"size:36;primaryKey" json:"follower_id"`
	FollowedID uuid.UUID `gorm:"size:36;primaryKey;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a portfolio/feed entry.
type Post struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	ArtistID  uuid.UUID `gorm:"size:36;index;not null" json:"artist_id"`
	Caption   string    `gorm:"type:text" json:"caption"`
	ImageURL  string    `gorm:"not null" json:"image_url"`
	ImageRef  string    `json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
