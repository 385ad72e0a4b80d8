package models

import (
	"inksnap-backend/utils"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          uuid.UUID `gorm:"size:36;primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;size:190;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	Username    string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	DisplayName string    `gorm:"size:120;not null" json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	IsArtist    bool      `gorm:"default:false" json:"is_artist"`
	Bio         string    `gorm:"type:text" json:"bio"`
	Location    string    `gorm:"size:190" json:"location"`

	LastLogin *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Initialize UUID and hash the password before creating
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	return
}

// Profile is the public projection of the user row.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
		IsArtist:    u.IsArtist,
		Bio:         u.Bio,
		Location:    u.Location,
	}
}
