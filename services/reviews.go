package services

import (
	"context"
	"strings"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

type ReviewService struct {
	store gateway.ReviewStore
}

func NewReviewService(store gateway.ReviewStore) *ReviewService {
	return &ReviewService{store: store}
}

// Create adds reviewerID's review of artistID. A second review of the same artist by the
// same reviewer is a conflict and writes nothing.
func (s *ReviewService) Create(ctx context.Context, reviewerID, artistID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.ErrInvalidRating
	}
	if reviewerID == artistID {
		return nil, apperrors.ErrSelfReview
	}

	existing, err := s.store.FindReview(ctx, reviewerID, artistID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrDuplicateReview
	}

	review := &models.Review{
		ArtistID:   artistID,
		ReviewerID: reviewerID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
	}
	if err := s.store.InsertReview(ctx, review); err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return nil, apperrors.ErrDuplicateReview
		}
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) List(ctx context.Context, artistID uuid.UUID) ([]models.Review, error) {
	reviews, err := s.store.ListReviews(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}
