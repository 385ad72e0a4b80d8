package gateway

import (
	"context"

	"inksnap-backend/apperrors"
	"inksnap-backend/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func (s *GormStore) FindReview(ctx context.Context, reviewerID, artistID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := s.conn(ctx).Where("reviewer_id = ? AND artist_id = ?", reviewerID, artistID).First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("FindReview.First", err, nil)
	}
	return &review, nil
}

func (s *GormStore) InsertReview(ctx context.Context, review *models.Review) error {
	if err := s.conn(ctx).Omit("Reviewer").Create(review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateReview
		}
		return storeErr("InsertReview.Create", err, nil)
	}
	return nil
}

func (s *GormStore) ListReviews(ctx context.Context, artistID uuid.UUID) ([]models.Review, error) {
	reviews := []models.Review{}
	err := s.conn(ctx).Preload("Reviewer").
		Where("artist_id = ?", artistID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, storeErr("ListReviews.Find", err, nil)
	}
	return reviews, nil
}

func (s *GormStore) AverageRating(ctx context.Context, artistID uuid.UUID) (float64, int64, error) {
	var row struct {
		Average float64
		Total   int64
	}
	err := s.conn(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("artist_id = ?", artistID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, storeErr("AverageRating.Scan", err, nil)
	}
	return row.Average, row.Total, nil
}

func (s *GormStore) InsertFollow(ctx context.Context, follow *models.Follow) error {
	if err := s.conn(ctx).Create(follow).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("already following")
		}
		return storeErr("InsertFollow.Create", err, nil)
	}
	return nil
}

func (s *GormStore) DeleteFollow(ctx context.Context, followerID, followedID uuid.UUID) (int64, error) {
	res := s.conn(ctx).Where("follower_id = ? AND followed_id = ?", followerID, followedID).Delete(&models.Follow{})
	if res.Error != nil {
		return 0, storeErr("DeleteFollow.Delete", res.Error, nil)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&n).Error
	if err != nil {
		return false, storeErr("IsFollowing.Count", err, nil)
	}
	return n > 0, nil
}

func (s *GormStore) CountFollowers(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Follow{}).Where("followed_id = ?", id).Count(&n).Error; err != nil {
		return 0, storeErr("CountFollowers.Count", err, nil)
	}
	return n, nil
}

func (s *GormStore) ListPosts(ctx context.Context, artistID uuid.UUID) ([]models.Post, error) {
	posts := []models.Post{}
	err := s.conn(ctx).Where("artist_id = ?", artistID).Order("created_at DESC").Find(&posts).Error
	if err != nil {
		return nil, storeErr("ListPosts.Find", err, nil)
	}
	return posts, nil
}

func (s *GormStore) InsertPost(ctx context.Context, post *models.Post) error {
	if err := s.conn(ctx).Create(post).Error; err != nil {
		return storeErr("InsertPost.Create", err, nil)
	}
	return nil
}

func (s *GormStore) DeletePost(ctx context.Context, id, artistID uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND artist_id = ?", id, artistID).First(&post).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return nil, storeErr("DeletePost.Transaction", err, apperrors.NotFound("post not found"))
	}
	return &post, nil
}
