package services

import (
	"context"
	"testing"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway/mocks"
	"inksnap-backend/models"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestAt(t *testing.T, value string) *time.Time {
	t.Helper()
	at, err := time.Parse("2006-01-02T15:04", value)
	require.NoError(t, err)
	return &at
}

func bookingIDs(list []models.Booking) []uuid.UUID {
	ids := make([]uuid.UUID, len(list))
	for i, b := range list {
		ids[i] = b.ID
	}
	return ids
}

func TestBookingTracker_ConfirmIsVisibleToBothSides(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)

	clientSide := env.session(t, client).Bookings
	artistSide := env.session(t, artist).Bookings

	booking, err := clientSide.Create(ctx, BookingRequest{
		ArtistID:    artist.ID,
		RequestedAt: requestAt(t, "2025-06-01T14:00"),
		Service:     "fine line forearm",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, booking.Status)

	confirmed, err := artistSide.Transition(ctx, booking.ID, models.ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, confirmed.Status)

	forClient, err := clientSide.ListForClient(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, forClient, 1)
	assert.Equal(t, models.BookingConfirmed, forClient[0].Status)

	forArtist, err := artistSide.ListForArtist(ctx, artist.ID)
	require.NoError(t, err)
	require.Len(t, forArtist, 1)
	assert.Equal(t, models.BookingConfirmed, forArtist[0].Status)
	assert.True(t, forArtist[0].UpdatedAt.After(forArtist[0].CreatedAt))
}

func TestBookingTracker_ConfirmByNonArtistChangesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)
	stranger := env.store.addUser("sam", true)

	booking, err := env.session(t, client).Bookings.Create(ctx, BookingRequest{ArtistID: artist.ID, RequestedAt: requestAt(t, "2025-06-01T14:00")})
	require.NoError(t, err)

	for _, actor := range []*models.User{client, stranger} {
		_, err := env.session(t, actor).Bookings.Transition(ctx, booking.ID, models.ActionConfirm)
		require.ErrorIs(t, err, apperrors.ErrBookingUnauthorized)
	}
	_, err = env.session(t, artist).Bookings.Transition(ctx, booking.ID, models.ActionCancel)
	require.ErrorIs(t, err, apperrors.ErrBookingUnauthorized)

	stored, err := env.store.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, stored.Status)
}

func TestBookingTracker_OnlyPendingTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)
	clientSide := env.session(t, client).Bookings
	artistSide := env.session(t, artist).Bookings

	booking, err := clientSide.Create(ctx, BookingRequest{ArtistID: artist.ID, RequestedAt: requestAt(t, "2025-06-01T14:00")})
	require.NoError(t, err)
	_, err = clientSide.Transition(ctx, booking.ID, models.ActionCancel)
	require.NoError(t, err)

	// not cached on the artist side: the scoped update matches no row
	_, err = artistSide.Transition(ctx, booking.ID, models.ActionConfirm)
	assert.ErrorIs(t, err, apperrors.ErrBookingUnauthorized)

	// cached on the artist side: rejected before the store is asked
	_, err = artistSide.ListForArtist(ctx, artist.ID)
	require.NoError(t, err)
	_, err = artistSide.Transition(ctx, booking.ID, models.ActionDecline)
	assert.ErrorIs(t, err, apperrors.ErrBookingNotPending)

	_, err = artistSide.Transition(ctx, booking.ID, models.BookingAction("reopen"))
	assert.ErrorIs(t, err, apperrors.ErrUnknownAction)

	stored, err := env.store.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, stored.Status)
}

func TestBookingTracker_TransitionReplacesCachedEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)
	artistSide := env.session(t, artist).Bookings

	_, err := env.session(t, client).Bookings.Create(ctx, BookingRequest{ArtistID: artist.ID, RequestedAt: requestAt(t, "2025-06-01T14:00")})
	require.NoError(t, err)
	list, err := artistSide.ListForArtist(ctx, artist.ID)
	require.NoError(t, err)

	updated, err := artistSide.Transition(ctx, list[0].ID, models.ActionDecline)
	require.NoError(t, err)

	cached := artistSide.Cached(models.RoleArtist)
	require.Len(t, cached, 1)
	assert.Equal(t, *updated, cached[0])
	assert.Equal(t, models.BookingDeclined, cached[0].Status)
}

func TestBookingTracker_ListIsStableWithoutMutations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	artist := env.store.addUser("ari", true)
	for _, name := range []string{"cleo", "dan", "eve"} {
		client := env.store.addUser(name, false)
		_, err := env.session(t, client).Bookings.Create(ctx, BookingRequest{ArtistID: artist.ID, RequestedAt: requestAt(t, "2025-06-01T14:00")})
		require.NoError(t, err)
	}

	tracker := env.session(t, artist).Bookings
	first, err := tracker.ListForArtist(ctx, artist.ID)
	require.NoError(t, err)
	second, err := tracker.ListForArtist(ctx, artist.ID)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, bookingIDs(first), bookingIDs(second))
	assert.True(t, first[0].CreatedAt.After(first[2].CreatedAt))
}

func TestBookingTracker_CreateValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)
	tracker := env.session(t, client).Bookings

	_, err := tracker.Create(ctx, BookingRequest{ArtistID: artist.ID})
	assert.ErrorIs(t, err, apperrors.ErrMissingRequestedAt)

	env.storage.uploadErr = apperrors.Upload("storage offline", nil)
	_, err = tracker.Create(ctx, BookingRequest{
		ArtistID:    artist.ID,
		RequestedAt: requestAt(t, "2025-06-01T14:00"),
		Attachment:  &Attachment{Name: "ref.png", Data: []byte("png")},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpload))

	list, err := tracker.ListForClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBookingTracker_CreateWithImageKeepsReference(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)

	booking, err := env.session(t, client).Bookings.Create(ctx, BookingRequest{
		ArtistID:    artist.ID,
		RequestedAt: requestAt(t, "2025-06-01T14:00"),
		Notes:       "  left shoulder  ",
		Attachment:  &Attachment{Name: "ref.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	require.NotNil(t, booking.ImageURL)
	require.NotNil(t, booking.Notes)
	assert.Equal(t, "left shoulder", *booking.Notes)
	assert.Nil(t, booking.Service)
	assert.Equal(t, 1, env.storage.count())
}

func TestBookingTracker_EmptyUpdateIsAuthorizationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBookingStore(ctrl)
	actor, bookingID := uuid.New(), uuid.New()

	store.EXPECT().
		UpdateBookingStatus(gomock.Any(), models.BookingUpdate{
			ID:      bookingID,
			ActorID: actor,
			Role:    models.RoleClient,
			From:    models.BookingPending,
			To:      models.BookingCancelled,
		}).
		Return(nil, nil)

	tracker := NewBookingTracker(store, mocks.NewMockStorage(ctrl), actor, nil)
	_, err := tracker.Transition(context.Background(), bookingID, models.ActionCancel)
	assert.ErrorIs(t, err, apperrors.ErrBookingUnauthorized)
}

func TestBookingTracker_GatewayErrorsPropagate(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBookingStore(ctrl)
	artist := uuid.New()
	down := apperrors.Gateway("bookings unavailable", nil)

	store.EXPECT().ListBookings(gomock.Any(), models.BookingFilter{ArtistID: &artist}).Return(nil, down)

	tracker := NewBookingTracker(store, mocks.NewMockStorage(ctrl), artist, nil)
	_, err := tracker.ListForArtist(context.Background(), artist)
	assert.ErrorIs(t, err, down)
	assert.Empty(t, tracker.Cached(models.RoleArtist))
}

func TestSession_WatchBookingsPatchesCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("cleo", false)
	artist := env.store.addUser("ari", true)

	clientSession := env.session(t, client)
	booking, err := clientSession.Bookings.Create(ctx, BookingRequest{ArtistID: artist.ID, RequestedAt: requestAt(t, "2025-06-01T14:00")})
	require.NoError(t, err)
	_, err = clientSession.Bookings.ListForClient(ctx, client.ID)
	require.NoError(t, err)

	pushed := make(chan models.Booking, 1)
	clientSession.WatchBookings(func(b models.Booking) { pushed <- b })

	_, err = env.session(t, artist).Bookings.Transition(ctx, booking.ID, models.ActionConfirm)
	require.NoError(t, err)

	select {
	case b := <-pushed:
		assert.Equal(t, models.BookingConfirmed, b.Status)
	case <-time.After(time.Second):
		t.Fatal("booking update was not pushed")
	}
	assert.Equal(t, models.BookingConfirmed, clientSession.Bookings.Cached(models.RoleClient)[0].Status)
}
