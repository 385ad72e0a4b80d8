// Package gateway is the data layer the InkSnap services talk to: a relational store,
// a realtime hub publishing row inserts, and file storage.
package gateway

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks inksnap-backend/gateway MessageStore,BookingStore,ReviewStore,Storage

import (
	"context"
	"io"
	"time"

	"inksnap-backend/models"

	"github.com/google/uuid"
)

type ProfileStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpsertReminderTemplate(ctx context.Context, tpl *models.ReminderTemplate) error
	GetReminderTemplate(ctx context.Context, artistID uuid.UUID) (*models.ReminderTemplate, error)
	// DeleteAccount removes every row owned by id and returns the storage refs they held.
	DeleteAccount(ctx context.Context, id uuid.UUID) ([]string, error)
}

type ConversationStore interface {
	ListConversationsWithDetails(ctx context.Context, identityID uuid.UUID) ([]models.ConversationSummary, error)
	StartOrGetConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
}

type MessageStore interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	// MarkConversationRead flips unread messages addressed to receiverID and returns how many changed.
	MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, identityID uuid.UUID) (int64, error)
}

type BookingStore interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ListBookingsBetween(ctx context.Context, a, b uuid.UUID) ([]models.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	// UpdateBookingStatus returns nil, nil when the scoped update matched no row.
	UpdateBookingStatus(ctx context.Context, update models.BookingUpdate) (*models.Booking, error)
	ListUpcomingBookings(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]models.Booking, error)
	MarkBookingReminded(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordReminder(ctx context.Context, log *models.ReminderLog) error
	CountPendingForArtist(ctx context.Context, artistID uuid.UUID) (int64, error)
}

type ReviewStore interface {
	// FindReview returns nil, nil when the reviewer has not reviewed the artist.
	FindReview(ctx context.Context, reviewerID, artistID uuid.UUID) (*models.Review, error)
	InsertReview(ctx context.Context, review *models.Review) error
	ListReviews(ctx context.Context, artistID uuid.UUID) ([]models.Review, error)
	AverageRating(ctx context.Context, artistID uuid.UUID) (float64, int64, error)
}

type FollowStore interface {
	InsertFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followerID, followedID uuid.UUID) (int64, error)
	IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)
	CountFollowers(ctx context.Context, id uuid.UUID) (int64, error)
}

type PostStore interface {
	ListPosts(ctx context.Context, artistID uuid.UUID) ([]models.Post, error)
	InsertPost(ctx context.Context, post *models.Post) error
	// DeletePost removes the post if artistID owns it and returns the deleted row.
	DeletePost(ctx context.Context, id, artistID uuid.UUID) (*models.Post, error)
}

type Store interface {
	ProfileStore
	ConversationStore
	MessageStore
	BookingStore
	ReviewStore
	FollowStore
	PostStore
}

type UploadInput struct {
	Folder string
	Name   string
	Body   io.Reader
}

type StoredObject struct {
	URL string `json:"url"`
	Ref string `json:"ref"`
}

type Storage interface {
	Upload(ctx context.Context, in UploadInput) (*StoredObject, error)
	Delete(ctx context.Context, ref string) error
}

// Filter selects insert events on one table by an equality predicate.
type Filter struct {
	Table  string
	Column string
	Value  string
}

type Event struct {
	Table  string
	Type   string
	Fields map[string]string
	Record any
}

// Matches reports whether the event satisfies f. An empty column matches every row.
func (f Filter) Matches(ev Event) bool {
	if f.Table != ev.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	return ev.Fields[f.Column] == f.Value
}

type Subscription interface {
	Unsubscribe()
}

type Realtime interface {
	Subscribe(filter Filter, fn func(Event)) Subscription
}

type Publisher interface {
	Publish(ev Event)
}

const (
	TableMessages = "messages"
	TableBookings = "bookings"

	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)
