package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

// BookingRequest is what a client submits from the booking form.
type BookingRequest struct {
	ArtistID         uuid.UUID
	RequestedAt      *time.Time
	Service          string
	Notes            string
	ClientPhone      string
	ConventionDateID *uuid.UUID
	Attachment       *Attachment
}

// BookingTracker lists and transitions the bookings an identity takes part in. Lists are
// cached per role and patched with server rows after a transition.
type BookingTracker struct {
	store    gateway.BookingStore
	storage  gateway.Storage
	identity uuid.UUID
	log      *slog.Logger

	mu    sync.Mutex
	lists map[models.BookingRole][]models.Booking
}

func NewBookingTracker(store gateway.BookingStore, storage gateway.Storage, identity uuid.UUID, log *slog.Logger) *BookingTracker {
	if log == nil {
		log = slog.Default()
	}
	return &BookingTracker{
		store:    store,
		storage:  storage,
		identity: identity,
		log:      log,
		lists:    map[models.BookingRole][]models.Booking{},
	}
}

// ListForArtist returns the artist's inbound requests, newest first.
func (t *BookingTracker) ListForArtist(ctx context.Context, artistID uuid.UUID) ([]models.Booking, error) {
	rows, err := t.store.ListBookings(ctx, models.BookingFilter{ArtistID: &artistID})
	if err != nil {
		return nil, err
	}
	if artistID == t.identity {
		t.cache(models.RoleArtist, rows)
	}
	return nonNil(rows), nil
}

// ListForClient returns the client's outbound requests, newest first.
func (t *BookingTracker) ListForClient(ctx context.Context, clientID uuid.UUID) ([]models.Booking, error) {
	rows, err := t.store.ListBookings(ctx, models.BookingFilter{ClientID: &clientID})
	if err != nil {
		return nil, err
	}
	if clientID == t.identity {
		t.cache(models.RoleClient, rows)
	}
	return nonNil(rows), nil
}

// Cached returns the last fetched list for role.
func (t *BookingTracker) Cached(role models.BookingRole) []models.Booking {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Booking{}, t.lists[role]...)
}

// Between returns the bookings between the identity and other, for the chat side panel.
func (t *BookingTracker) Between(ctx context.Context, other uuid.UUID) ([]models.Booking, error) {
	rows, err := t.store.ListBookingsBetween(ctx, t.identity, other)
	if err != nil {
		return nil, err
	}
	return nonNil(rows), nil
}

// Create submits a booking request from the identity. The requested time is checked here;
// every other field rule belongs to the store.
func (t *BookingTracker) Create(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	if req.RequestedAt == nil || req.RequestedAt.IsZero() {
		return nil, apperrors.ErrMissingRequestedAt
	}

	booking := &models.Booking{
		ClientID:         t.identity,
		ArtistID:         req.ArtistID,
		RequestedAt:      *req.RequestedAt,
		Service:          optional(req.Service),
		Notes:            optional(req.Notes),
		ClientPhone:      optional(req.ClientPhone),
		ConventionDateID: req.ConventionDateID,
	}

	var uploaded *gateway.StoredObject
	if req.Attachment != nil {
		obj, err := t.storage.Upload(ctx, gateway.UploadInput{Folder: folderBookings, Name: req.Attachment.Name, Body: req.Attachment.reader()})
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeUpload {
				return nil, err
			}
			return nil, apperrors.Upload("could not upload reference image", err)
		}
		uploaded = obj
		booking.ImageURL = &obj.URL
		booking.ImageRef = &obj.Ref
	}

	if err := t.store.InsertBooking(ctx, booking); err != nil {
		if uploaded != nil {
			if delErr := t.storage.Delete(context.WithoutCancel(ctx), uploaded.Ref); delErr != nil {
				t.log.Warn("orphaned upload", slog.String("ref", uploaded.Ref), slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	t.mu.Lock()
	if list, ok := t.lists[models.RoleClient]; ok {
		t.lists[models.RoleClient] = append([]models.Booking{*booking}, list...)
	}
	t.mu.Unlock()
	return booking, nil
}

// Transition applies action as the identity. The update only matches a pending booking the
// identity holds the required role on; anything else is an authorization failure.
func (t *BookingTracker) Transition(ctx context.Context, bookingID uuid.UUID, action models.BookingAction) (*models.Booking, error) {
	target, ok := action.Target()
	if !ok {
		return nil, apperrors.ErrUnknownAction
	}
	if cached, found := t.lookup(bookingID); found && !cached.Status.CanTransition(target) {
		return nil, apperrors.ErrBookingNotPending
	}

	updated, err := t.store.UpdateBookingStatus(ctx, models.BookingUpdate{
		ID:      bookingID,
		ActorID: t.identity,
		Role:    action.Role(),
		From:    models.BookingPending,
		To:      target,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.ErrBookingUnauthorized
	}

	t.Apply(*updated)
	return updated, nil
}

// Apply replaces any cached entry with the given server row.
func (t *BookingTracker) Apply(b models.Booking) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for role, list := range t.lists {
		for i := range list {
			if list[i].ID == b.ID {
				list[i] = b
			}
		}
		t.lists[role] = list
	}
}

func (t *BookingTracker) lookup(id uuid.UUID) (models.Booking, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, list := range t.lists {
		for _, b := range list {
			if b.ID == id {
				return b, true
			}
		}
	}
	return models.Booking{}, false
}

func (t *BookingTracker) cache(role models.BookingRole, rows []models.Booking) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lists[role] = append([]models.Booking{}, rows...)
}

func nonNil(rows []models.Booking) []models.Booking {
	if rows == nil {
		return []models.Booking{}
	}
	return rows
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
