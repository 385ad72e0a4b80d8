package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on a relational database and publishes inserts to pub.
type GormStore struct {
	db  *gorm.DB
	pub Publisher
	log *slog.Logger
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, pub Publisher, log *slog.Logger) *GormStore {
	if log == nil {
		log = slog.Default()
	}
	return &GormStore{db: db, pub: pub, log: log}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) publish(ev Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

// storeErr maps a driver error to the gateway taxonomy. notFound, when non-nil, is
// returned for missing rows.
func storeErr(op string, err error, notFound error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Wrap(apperrors.CodeConflict, "record already exists", errors.Wrap(err, "store."+op))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Gateway("request cancelled", errors.Wrap(err, "store."+op))
	}
	return apperrors.Gateway("database error", errors.Wrap(err, "store."+op))
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := s.conn(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("email or username already registered")
		}
		return storeErr("CreateUser.Create", err, nil)
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, storeErr("GetUser.First", err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// GetUserByLogin accepts an email or a username.
func (s *GormStore) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	var user models.User
	err := s.conn(ctx).
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		First(&user).Error
	if err != nil {
		return nil, storeErr("GetUserByLogin.First", err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

func (s *GormStore) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, storeErr("GetUsers.Find", err, nil)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (s *GormStore) UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	if len(fields) > 0 {
		err := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperrors.Conflict("username already taken")
			}
			return nil, storeErr("UpdateUser.Updates", err, nil)
		}
	}
	return s.GetUser(ctx, id)
}

func (s *GormStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at).Error
	if err != nil {
		return storeErr("TouchLastLogin.Update", err, nil)
	}
	return nil
}

func (s *GormStore) UpsertReminderTemplate(ctx context.Context, tpl *models.ReminderTemplate) error {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "artist_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message", "is_active", "updated_at"}),
	}).Create(tpl).Error
	if err != nil {
		return storeErr("UpsertReminderTemplate.Create", err, nil)
	}
	return nil
}

func (s *GormStore) GetReminderTemplate(ctx context.Context, artistID uuid.UUID) (*models.ReminderTemplate, error) {
	var tpl models.ReminderTemplate
	err := s.conn(ctx).First(&tpl, "artist_id = ?", artistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("GetReminderTemplate.First", err, nil)
	}
	return &tpl, nil
}

func (s *GormStore) DeleteAccount(ctx context.Context, id uuid.UUID) ([]string, error) {
	var refs []string
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var messageRefs, bookingRefs, postRefs []string
		if err := tx.Model(&models.Message{}).
			Where("(sender_id = ? OR receiver_id = ?) AND image_ref IS NOT NULL", id, id).
			Pluck("image_ref", &messageRefs).Error; err != nil {
			return errors.Wrap(err, "pluck message refs")
		}
		if err := tx.Model(&models.Booking{}).
			Where("(client_id = ? OR artist_id = ?) AND image_ref IS NOT NULL", id, id).
			Pluck("image_ref", &bookingRefs).Error; err != nil {
			return errors.Wrap(err, "pluck booking refs")
		}
		if err := tx.Model(&models.Post{}).Where("artist_id = ?", id).Pluck("image_ref", &postRefs).Error; err != nil {
			return errors.Wrap(err, "pluck post refs")
		}
		refs = append(append(append(refs, messageRefs...), bookingRefs...), postRefs...)

		var bookingIDs []uuid.UUID
		if err := tx.Model(&models.Booking{}).
			Where("client_id = ? OR artist_id = ?", id, id).
			Pluck("id", &bookingIDs).Error; err != nil {
			return errors.Wrap(err, "pluck booking ids")
		}

		deletes := []struct {
			model any
			where string
			args  []any
		}{
			{&models.Message{}, "sender_id = ? OR receiver_id = ?", []any{id, id}},
			{&models.Conversation{}, "participant_a = ? OR participant_b = ?", []any{id, id}},
			{&models.ReminderLog{}, "artist_id = ? OR booking_id IN ?", []any{id, bookingIDs}},
			{&models.Booking{}, "client_id = ? OR artist_id = ?", []any{id, id}},
			{&models.Review{}, "reviewer_id = ? OR artist_id = ?", []any{id, id}},
			{&models.Follow{}, "follower_id = ? OR followed_id = ?", []any{id, id}},
			{&models.Post{}, "artist_id = ?", []any{id}},
			{&models.ReminderTemplate{}, "artist_id = ?", []any{id}},
		}
		for _, d := range deletes {
			if err := tx.Where(d.where, d.args...).Delete(d.model).Error; err != nil {
				return errors.Wrapf(err, "delete %T", d.model)
			}
		}

		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete user")
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("DeleteAccount.Transaction", err, apperrors.ErrUserNotFound)
	}

	out := refs[:0]
	for _, ref := range refs {
		if ref != "" {
			out = append(out, ref)
		}
	}
	return out, nil
}
