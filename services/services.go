// Package services holds the synchronization core: the conversation directory, message
// channels, the booking tracker and the per-session unread counter, plus the thin
// composition services built on the same gateway.
package services

import (
	"bytes"
	"io"
	"log/slog"

	"inksnap-backend/gateway"
)

// Deps are the gateway pieces a session needs.
type Deps struct {
	Store    gateway.Store
	Storage  gateway.Storage
	Realtime gateway.Realtime
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Attachment is a file picked by the user and not uploaded yet.
type Attachment struct {
	Name string
	Data []byte
}

func (a *Attachment) reader() io.Reader {
	return bytes.NewReader(a.Data)
}

const (
	folderChat     = "chat"
	folderBookings = "bookings"
	folderPosts    = "posts"
)
