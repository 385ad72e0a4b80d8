// utils/auth.go
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const identityKey = "identity"

// Identity is the authenticated caller as carried by the session token.
type Identity struct {
	ID       uuid.UUID
	Metadata map[string]any
}

type Claims struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
	IsArtist    bool   `json:"is_artist"`
	jwt.RegisteredClaims
}

// Generate JWT secret key (run once initially)
func GenerateJWTSecret() string {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate JWT secret")
	}
	return base64.StdEncoding.EncodeToString(key)
}

// Hash password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Check password
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Generate JWT token
func GenerateToken(secret string, expiry time.Duration, userID uuid.UUID, username, displayName string, isArtist bool) (string, error) {
	if secret == "" {
		return "", errors.New("JWT_SECRET not set")
	}
	now := time.Now()
	claims := Claims{
		Username:    username,
		DisplayName: displayName,
		IsArtist:    isArtist,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a token and returns the identity it carries.
func ParseToken(secret, tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.New("invalid token subject")
	}
	return &Identity{
		ID: id,
		Metadata: map[string]any{
			"username":     claims.Username,
			"display_name": claims.DisplayName,
			"is_artist":    claims.IsArtist,
		},
	}, nil
}

// BearerToken strips the scheme from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.ToUpper(header[0:6]) == "BEARER" {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(header)
}

// Auth middleware
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		identity, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (*Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}

// SetIdentity is used by handlers that authenticate outside the middleware.
func SetIdentity(c *gin.Context, identity *Identity) {
	c.Set(identityKey, identity)
}
