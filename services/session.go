package services

import (
	"context"
	"log/slog"
	"sync"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

// Session is one signed-in tab. It owns the unread counter and at most one open
// message channel.
type Session struct {
	deps     Deps
	identity uuid.UUID
	log      *slog.Logger

	Unread    *UnreadCounter
	Directory *ConversationDirectory
	Bookings  *BookingTracker
	sender    *MessageSender

	mu       sync.Mutex
	channel  *MessageChannel
	watchers []gateway.Subscription
	closed   bool
}

func NewSession(deps Deps, identity uuid.UUID) *Session {
	log := deps.logger().With(slog.String("identity", identity.String()))
	unread := NewUnreadCounter(deps.Store, identity)
	return &Session{
		deps:      deps,
		identity:  identity,
		log:       log,
		Unread:    unread,
		Directory: NewConversationDirectory(deps.Store, unread, identity),
		Bookings:  NewBookingTracker(deps.Store, deps.Storage, identity, log),
		sender:    NewMessageSender(deps.Store, deps.Storage, log),
	}
}

func (s *Session) Identity() uuid.UUID { return s.identity }

// Channel returns the open channel, or nil.
func (s *Session) Channel() *MessageChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// OpenConversation tears down the current channel and mounts one for conversationID.
// The channel is returned even when its history failed to load so the caller can show
// the error state.
func (s *Session) OpenConversation(ctx context.Context, conversationID uuid.UUID, listener ChannelListener) (*MessageChannel, error) {
	conv, err := s.deps.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(s.identity) {
		return nil, apperrors.ErrNotParticipant
	}

	otherID := conv.Other(s.identity)
	row, err := s.deps.Store.GetUser(ctx, otherID)
	if err != nil && !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, err
	}
	other := models.NormalizeProfile(otherID, row, nil)

	s.Directory.Select(conv.ID)

	ch := newMessageChannel(s.deps, s.sender, s.Directory, conv, s.identity, other, listener)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.ErrChannelClosed
	}
	previous := s.channel
	s.channel = ch
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	if err := ch.Mount(ctx); err != nil {
		return ch, err
	}
	return ch, nil
}

// CloseConversation closes the open channel, if any.
func (s *Session) CloseConversation() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// WatchBookings delivers every booking insert or update the identity takes part in.
// Cached tracker lists are patched before fn runs.
func (s *Session) WatchBookings(fn func(models.Booking)) {
	deliver := func(ev gateway.Event) {
		b, ok := ev.Record.(models.Booking)
		if !ok {
			return
		}
		s.Bookings.Apply(b)
		fn(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, column := range []string{"artist_id", "client_id"} {
		s.watchers = append(s.watchers, s.deps.Realtime.Subscribe(gateway.Filter{
			Table:  gateway.TableBookings,
			Column: column,
			Value:  s.identity.String(),
		}, deliver))
	}
}

// Close releases every subscription the session holds.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ch := s.channel
	s.channel = nil
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	for _, w := range watchers {
		w.Unsubscribe()
	}
}
