package gateway

import (
	"context"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/models"
	"inksnap-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *GormStore) bookings(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Preload("Client").Preload("Artist")
}

// ListBookings returns newest created first; ids break ties so repeated reads agree.
func (s *GormStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	q := s.bookings(ctx)
	switch {
	case filter.ArtistID != nil:
		q = q.Where("artist_id = ?", *filter.ArtistID)
	case filter.ClientID != nil:
		q = q.Where("client_id = ?", *filter.ClientID)
	default:
		return nil, apperrors.Validation("booking list needs an artist or a client")
	}

	bookings := []models.Booking{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&bookings).Error; err != nil {
		return nil, storeErr("ListBookings.Find", err, nil)
	}
	return bookings, nil
}

func (s *GormStore) ListBookingsBetween(ctx context.Context, a, b uuid.UUID) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.bookings(ctx).
		Where("(client_id = ? AND artist_id = ?) OR (client_id = ? AND artist_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Order("id DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, storeErr("ListBookingsBetween.Find", err, nil)
	}
	return bookings, nil
}

func (s *GormStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.bookings(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, storeErr("GetBooking.First", err, apperrors.ErrBookingNotFound)
	}
	return &booking, nil
}

// InsertBooking holds the row-level rules the client leaves to the store.
func (s *GormStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking.RequestedAt.IsZero() {
		return apperrors.ErrMissingRequestedAt
	}
	if booking.ClientID == booking.ArtistID {
		return apperrors.Validation("cannot book yourself")
	}
	if booking.ClientPhone != nil {
		if !utils.ValidatePhone(*booking.ClientPhone) {
			return apperrors.ErrInvalidPhone
		}
		phone := utils.NormalizePhone(*booking.ClientPhone)
		booking.ClientPhone = &phone
	}

	artist, err := s.GetUser(ctx, booking.ArtistID)
	if err != nil {
		return err
	}
	if !artist.IsArtist {
		return apperrors.Validation("bookings can only be requested from artists")
	}

	booking.Status = models.BookingPending
	if err := s.conn(ctx).Omit("Client", "Artist").Create(booking).Error; err != nil {
		return storeErr("InsertBooking.Create", err, nil)
	}

	s.publish(bookingEvent(EventInsert, booking))
	return nil
}

// UpdateBookingStatus scopes the update to the booking, the acting identity's column for
// the role, and the expected current status.
func (s *GormStore) UpdateBookingStatus(ctx context.Context, update models.BookingUpdate) (*models.Booking, error) {
	column := "client_id"
	if update.Role == models.RoleArtist {
		column = "artist_id"
	}

	res := s.conn(ctx).Model(&models.Booking{}).
		Where("id = ? AND "+column+" = ? AND status = ?", update.ID, update.ActorID, update.From).
		Updates(map[string]any{
			"status":     update.To,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, storeErr("UpdateBookingStatus.Updates", res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	booking, err := s.GetBooking(ctx, update.ID)
	if err != nil {
		return nil, err
	}
	s.publish(bookingEvent(EventUpdate, booking))
	return booking, nil
}

func (s *GormStore) ListUpcomingBookings(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := s.bookings(ctx).
		Where("status = ? AND requested_at >= ? AND requested_at < ?", status, from, to).
		Where("reminder_sent_at IS NULL AND client_phone IS NOT NULL").
		Order("requested_at").
		Find(&bookings).Error
	if err != nil {
		return nil, storeErr("ListUpcomingBookings.Find", err, nil)
	}
	return bookings, nil
}

func (s *GormStore) MarkBookingReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.conn(ctx).Model(&models.Booking{}).Where("id = ?", id).UpdateColumn("reminder_sent_at", at).Error
	if err != nil {
		return storeErr("MarkBookingReminded.Update", err, nil)
	}
	return nil
}

func (s *GormStore) RecordReminder(ctx context.Context, log *models.ReminderLog) error {
	if err := s.conn(ctx).Create(log).Error; err != nil {
		return storeErr("RecordReminder.Create", err, nil)
	}
	return nil
}

func (s *GormStore) CountPendingForArtist(ctx context.Context, artistID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Booking{}).
		Where("artist_id = ? AND status = ?", artistID, models.BookingPending).
		Count(&n).Error
	if err != nil {
		return 0, storeErr("CountPendingForArtist.Count", err, nil)
	}
	return n, nil
}

func bookingEvent(kind string, b *models.Booking) Event {
	return Event{
		Table: TableBookings,
		Type:  kind,
		Fields: map[string]string{
			"id":        b.ID.String(),
			"artist_id": b.ArtistID.String(),
			"client_id": b.ClientID.String(),
			"status":    string(b.Status),
		},
		Record: *b,
	}
}
