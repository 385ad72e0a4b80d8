package services

import (
	"context"
	"strings"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"
	"inksnap-backend/utils"
)

type RegisterInput struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required,min=8"`
	IsArtist    bool   `json:"is_artist"`
}

type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"` // email or username
	Password   string `json:"password" binding:"required"`
}

// AuthResult is a signed-in identity and its session token.
type AuthResult struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"user"`
}

// AuthService is the identity provider: accounts with bcrypt passwords and JWT sessions.
type AuthService struct {
	store  gateway.ProfileStore
	secret string
	expiry time.Duration
	now    func() time.Time
}

func NewAuthService(store gateway.ProfileStore, secret string, expiry time.Duration) *AuthService {
	return &AuthService{store: store, secret: secret, expiry: expiry, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if !utils.ValidateUsername(username) {
		return nil, apperrors.Validation("username must be 3-32 lowercase letters, digits, dots or underscores")
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user := &models.User{
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Username:    username,
		DisplayName: displayName,
		Password:    in.Password, // hashed in BeforeCreate
		IsArtist:    in.IsArtist,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return nil, apperrors.Conflict("email or username already registered")
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.store.GetUserByLogin(ctx, in.Identifier)
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(in.Password, user.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := s.store.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(s.secret, s.expiry, user.ID, user.Username, user.DisplayName, user.IsArtist)
	if err != nil {
		return nil, apperrors.Internal("failed to generate token", err)
	}
	return &AuthResult{Token: token, Profile: user.Profile()}, nil
}
