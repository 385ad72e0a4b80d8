package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"
	"inksnap-backend/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ArtistProfile is everything the public artist page shows.
type ArtistProfile struct {
	Profile       models.Profile  `json:"profile"`
	Followers     int64           `json:"followers"`
	IsFollowing   bool            `json:"is_following"`
	Posts         []models.Post   `json:"posts"`
	Reviews       []models.Review `json:"reviews"`
	AverageRating float64         `json:"average_rating"`
	ReviewCount   int64           `json:"review_count"`
}

// Dashboard is the signed-in identity's summary.
type Dashboard struct {
	Profile         models.Profile `json:"profile"`
	Unread          int64          `json:"unread"`
	PendingBookings int64          `json:"pending_bookings"`
	Followers       int64          `json:"followers"`
	AverageRating   float64        `json:"average_rating"`
	ReviewCount     int64          `json:"review_count"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are left as they are.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	Username    *string `json:"username"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	AvatarURL   *string `json:"avatar_url"`
	IsArtist    *bool   `json:"is_artist"`
}

type ProfileService struct {
	store   gateway.Store
	storage gateway.Storage
	log     *slog.Logger
}

func NewProfileService(store gateway.Store, storage gateway.Storage, log *slog.Logger) *ProfileService {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileService{store: store, storage: storage, log: log}
}

// Me resolves the identity's profile, falling back to the token metadata when the row
// does not exist.
func (s *ProfileService) Me(ctx context.Context, identity *utils.Identity) (models.Profile, error) {
	row, err := s.store.GetUser(ctx, identity.ID)
	if err != nil && !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return models.Profile{}, err
	}
	return models.NormalizeProfile(identity.ID, row, identity.Metadata), nil
}

func (s *ProfileService) Update(ctx context.Context, id uuid.UUID, in ProfileUpdate) (models.Profile, error) {
	fields := map[string]any{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return models.Profile{}, apperrors.Validation("display name cannot be empty")
		}
		fields["display_name"] = name
	}
	if in.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		if !utils.ValidateUsername(username) {
			return models.Profile{}, apperrors.Validation("username must be 3-32 lowercase letters, digits, dots or underscores")
		}
		fields["username"] = username
	}
	if in.Bio != nil {
		fields["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.Location != nil {
		fields["location"] = strings.TrimSpace(*in.Location)
	}
	if in.AvatarURL != nil {
		fields["avatar_url"] = optional(*in.AvatarURL)
	}
	if in.IsArtist != nil {
		fields["is_artist"] = *in.IsArtist
	}
	if len(fields) == 0 {
		return models.Profile{}, apperrors.Validation("nothing to update")
	}

	user, err := s.store.UpdateUser(ctx, id, fields)
	if err != nil {
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

// SaveReminderTemplate stores the artist's booking reminder text.
func (s *ProfileService) SaveReminderTemplate(ctx context.Context, artistID uuid.UUID, message string, active bool) (*models.ReminderTemplate, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.Validation("reminder message cannot be empty")
	}
	user, err := s.store.GetUser(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if !user.IsArtist {
		return nil, apperrors.Authorization("only artists have reminder templates")
	}

	tpl := &models.ReminderTemplate{ArtistID: artistID, Message: message, IsActive: active, UpdatedAt: time.Now()}
	if err := s.store.UpsertReminderTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// Artist loads an artist page. The independent queries run concurrently and the first
// failure cancels the rest.
func (s *ProfileService) Artist(ctx context.Context, viewerID, artistID uuid.UUID) (*ArtistProfile, error) {
	out := &ArtistProfile{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := s.store.GetUser(gctx, artistID)
		if err != nil {
			return err
		}
		if !user.IsArtist {
			return apperrors.NotFound("artist not found")
		}
		out.Profile = user.Profile()
		return nil
	})
	g.Go(func() (err error) {
		out.Followers, err = s.store.CountFollowers(gctx, artistID)
		return err
	})
	g.Go(func() (err error) {
		if viewerID == uuid.Nil || viewerID == artistID {
			return nil
		}
		out.IsFollowing, err = s.store.IsFollowing(gctx, viewerID, artistID)
		return err
	})
	g.Go(func() (err error) {
		out.Posts, err = s.store.ListPosts(gctx, artistID)
		return err
	})
	g.Go(func() (err error) {
		out.Reviews, err = s.store.ListReviews(gctx, artistID)
		return err
	})
	g.Go(func() (err error) {
		out.AverageRating, out.ReviewCount, err = s.store.AverageRating(gctx, artistID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.Posts == nil {
		out.Posts = []models.Post{}
	}
	if out.Reviews == nil {
		out.Reviews = []models.Review{}
	}
	return out, nil
}

// Dashboard loads the identity's summary. Artist-only counters stay zero for clients.
func (s *ProfileService) Dashboard(ctx context.Context, identity *utils.Identity) (*Dashboard, error) {
	profile, err := s.Me(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := &Dashboard{Profile: profile}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Unread, err = s.store.CountUnread(gctx, identity.ID)
		return err
	})
	if profile.IsArtist {
		g.Go(func() (err error) {
			out.PendingBookings, err = s.store.CountPendingForArtist(gctx, identity.ID)
			return err
		})
		g.Go(func() (err error) {
			out.Followers, err = s.store.CountFollowers(gctx, identity.ID)
			return err
		})
		g.Go(func() (err error) {
			out.AverageRating, out.ReviewCount, err = s.store.AverageRating(gctx, identity.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAccount removes the identity's rows and then their stored objects. It cannot be
// undone.
func (s *ProfileService) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	refs, err := s.store.DeleteAccount(ctx, id)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.storage.Delete(ctx, ref); err != nil {
			s.log.Warn("stored object not removed", slog.String("ref", ref), slog.Any("error", err))
		}
	}
	s.log.Info("account deleted", slog.String("identity", id.String()), slog.Int("objects", len(refs)))
	return nil
}
