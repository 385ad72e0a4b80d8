package services

import (
	"context"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

type FollowService struct {
	store gateway.FollowStore
}

func NewFollowService(store gateway.FollowStore) *FollowService {
	return &FollowService{store: store}
}

// Follow is idempotent: following someone twice leaves one edge.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID uuid.UUID) error {
	if followerID == followedID {
		return apperrors.ErrSelfFollow
	}
	err := s.store.InsertFollow(ctx, &models.Follow{FollowerID: followerID, FollowedID: followedID})
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		return nil
	}
	return err
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	_, err := s.store.DeleteFollow(ctx, followerID, followedID)
	return err
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	if followerID == followedID {
		return false, nil
	}
	return s.store.IsFollowing(ctx, followerID, followedID)
}

func (s *FollowService) Followers(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.store.CountFollowers(ctx, id)
}
