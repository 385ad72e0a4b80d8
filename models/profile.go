package models

import (
	"strings"

	"github.com/google/uuid"
)

// Profile is the one canonical public shape of an identity.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Username    string    `json:"username"`
	AvatarURL   *string   `json:"avatar_url"`
	IsArtist    bool      `json:"is_artist"`
	Bio         string    `json:"bio,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// NormalizeProfile builds a Profile for an identity whose profile row may not exist yet.
// The row wins when present. Otherwise fields come from the provider metadata, which may
// carry them flat or nested under a "profile" key.
func NormalizeProfile(id uuid.UUID, row *User, metadata map[string]any) Profile {
	if row != nil {
		p := row.Profile()
		if p.ID == uuid.Nil {
			p.ID = id
		}
		return p
	}

	meta := flattenMetadata(metadata)
	p := Profile{
		ID:          id,
		DisplayName: firstString(meta, "display_name", "full_name", "name"),
		Username:    firstString(meta, "username", "user_name"),
		Bio:         firstString(meta, "bio"),
		Location:    firstString(meta, "location"),
	}
	if avatar := firstString(meta, "avatar_url", "profile_photo", "picture"); avatar != "" {
		p.AvatarURL = &avatar
	}
	switch v := meta["is_artist"].(type) {
	case bool:
		p.IsArtist = v
	case string:
		p.IsArtist = strings.EqualFold(v, "true")
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	return p
}

func flattenMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if k == "profile" {
			continue
		}
		out[k] = v
	}
	// nested keys override flat ones
	if nested, ok := metadata["profile"].(map[string]any); ok {
		for k, v := range nested {
			out[k] = v
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
