package services

import (
	"context"
	"log/slog"
	"strings"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

type PostService struct {
	store   gateway.PostStore
	storage gateway.Storage
	log     *slog.Logger
}

func NewPostService(store gateway.PostStore, storage gateway.Storage, log *slog.Logger) *PostService {
	if log == nil {
		log = slog.Default()
	}
	return &PostService{store: store, storage: storage, log: log}
}

// Create uploads the image and adds it to the artist's portfolio.
func (s *PostService) Create(ctx context.Context, artistID uuid.UUID, caption string, img *Attachment) (*models.Post, error) {
	if img == nil {
		return nil, apperrors.Validation("a post needs an image")
	}
	obj, err := s.storage.Upload(ctx, gateway.UploadInput{Folder: folderPosts, Name: img.Name, Body: img.reader()})
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUpload {
			return nil, err
		}
		return nil, apperrors.Upload("could not upload image", err)
	}

	post := &models.Post{
		ArtistID: artistID,
		Caption:  strings.TrimSpace(caption),
		ImageURL: obj.URL,
		ImageRef: obj.Ref,
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		s.discard(ctx, obj.Ref)
		return nil, err
	}
	return post, nil
}

func (s *PostService) List(ctx context.Context, artistID uuid.UUID) ([]models.Post, error) {
	posts, err := s.store.ListPosts(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// Delete removes one of the artist's own posts and its stored image.
func (s *PostService) Delete(ctx context.Context, artistID, postID uuid.UUID) error {
	post, err := s.store.DeletePost(ctx, postID, artistID)
	if err != nil {
		return err
	}
	if post.ImageRef != "" {
		s.discard(ctx, post.ImageRef)
	}
	return nil
}

func (s *PostService) discard(ctx context.Context, ref string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.log.Warn("stored object not removed", slog.String("ref", ref), slog.Any("error", err))
	}
}
