package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

// memStore is an in-memory gateway.Store with the same scoping rules as GormStore.
type memStore struct {
	mu            sync.Mutex
	pub           gateway.Publisher
	clock         time.Time
	users         map[uuid.UUID]*models.User
	conversations map[uuid.UUID]*models.Conversation
	messages      []models.Message
	bookings      []models.Booking
	reviews       []models.Review
	follows       map[[2]uuid.UUID]bool
	posts         []models.Post
	templates     map[uuid.UUID]*models.ReminderTemplate
	reminders     []models.ReminderLog

	listMessagesErr error
	insertErr       error
	listCalls       int
}

func newMemStore(pub gateway.Publisher) *memStore {
	return &memStore{
		pub:           pub,
		clock:         time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		users:         map[uuid.UUID]*models.User{},
		conversations: map[uuid.UUID]*models.Conversation{},
		follows:       map[[2]uuid.UUID]bool{},
		templates:     map[uuid.UUID]*models.ReminderTemplate{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) publish(ev gateway.Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

func (s *memStore) addUser(name string, artist bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.New(), Username: name, DisplayName: strings.ToUpper(name[:1]) + name[1:], Email: name + "@example.com", IsArtist: artist}
	s.users[u.ID] = u
	return u
}

func (s *memStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return apperrors.Conflict("duplicate")
		}
	}
	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == identifier || u.Username == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (s *memStore) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := map[uuid.UUID]*models.User{}
	for _, id := range ids {
		if u, err := s.GetUser(ctx, id); err == nil {
			out[id] = u
		}
	}
	return out, nil
}

func (s *memStore) UpdateUser(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.ErrUserNotFound
	}
	for k, v := range fields {
		switch k {
		case "display_name":
			u.DisplayName = v.(string)
		case "username":
			u.Username = v.(string)
		case "bio":
			u.Bio = v.(string)
		case "location":
			u.Location = v.(string)
		case "avatar_url":
			u.AvatarURL = v.(*string)
		case "is_artist":
			u.IsArtist = v.(bool)
		}
	}
	s.mu.Unlock()
	return s.GetUser(ctx, id)
}

func (s *memStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (s *memStore) UpsertReminderTemplate(ctx context.Context, tpl *models.ReminderTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tpl
	s.templates[tpl.ArtistID] = &cp
	return nil
}

func (s *memStore) GetReminderTemplate(ctx context.Context, artistID uuid.UUID) (*models.ReminderTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.templates[artistID], nil
}

func (s *memStore) DeleteAccount(ctx context.Context, id uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return nil, apperrors.ErrUserNotFound
	}
	var refs []string
	posts := s.posts[:0]
	for _, p := range s.posts {
		if p.ArtistID == id {
			refs = append(refs, p.ImageRef)
			continue
		}
		posts = append(posts, p)
	}
	s.posts = posts
	delete(s.users, id)
	return refs, nil
}

func (s *memStore) ListConversationsWithDetails(ctx context.Context, identityID uuid.UUID) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ConversationSummary{}
	for _, c := range s.conversations {
		if !c.HasParticipant(identityID) {
			continue
		}
		other := c.Other(identityID)
		var unread int64
		for _, m := range s.messages {
			if m.ConversationID == c.ID && m.ReceiverID == identityID && !m.Read {
				unread++
			}
		}
		out = append(out, models.ConversationSummary{
			ID:                 c.ID,
			Other:              models.NormalizeProfile(other, s.users[other], nil),
			LastMessagePreview: c.LastMessagePreview,
			LastMessageAt:      c.LastMessageAt,
			UnreadCount:        unread,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return activity(s.conversations[out[i].ID]).After(activity(s.conversations[out[j].ID]))
	})
	return out, nil
}

func activity(c *models.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (s *memStore) StartOrGetConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pa, pb := models.OrderedPair(a, b)
	for _, c := range s.conversations {
		if c.ParticipantA == pa && c.ParticipantB == pb {
			cp := *c
			return &cp, nil
		}
	}
	c := &models.Conversation{ID: uuid.New(), ParticipantA: pa, ParticipantB: pb, CreatedAt: s.tick()}
	s.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, apperrors.ErrConversationMissing
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listMessagesErr != nil {
		return nil, s.listMessagesErr
	}
	out := []models.Message{}
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	if s.insertErr != nil {
		s.mu.Unlock()
		return s.insertErr
	}
	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		s.mu.Unlock()
		return apperrors.ErrConversationMissing
	}
	if msg.SenderID == msg.ReceiverID || !c.HasParticipant(msg.SenderID) || c.Other(msg.SenderID) != msg.ReceiverID {
		s.mu.Unlock()
		return apperrors.ErrNotParticipant
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = s.tick()
	s.messages = append(s.messages, *msg)
	at := msg.CreatedAt
	c.LastMessageAt = &at
	c.LastMessagePreview = msg.Preview()
	s.mu.Unlock()

	s.publish(gateway.Event{
		Table: gateway.TableMessages,
		Type:  gateway.EventInsert,
		Fields: map[string]string{
			"id":              msg.ID.String(),
			"conversation_id": msg.ConversationID.String(),
			"sender_id":       msg.SenderID.String(),
		},
		Record: *msg,
	})
	return nil
}

func (s *memStore) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountUnread(ctx context.Context, identityID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ReceiverID == identityID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := []models.Booking{}
	for _, b := range s.bookings {
		if filter.ArtistID != nil && b.ArtistID != *filter.ArtistID {
			continue
		}
		if filter.ClientID != nil && b.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)
	return out, nil
}

func sortBookings(out []models.Booking) {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
}

func (s *memStore) ListBookingsBetween(ctx context.Context, a, b uuid.UUID) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, bk := range s.bookings {
		if (bk.ClientID == a && bk.ArtistID == b) || (bk.ClientID == b && bk.ArtistID == a) {
			out = append(out, bk)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *memStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, apperrors.ErrBookingNotFound
}

func (s *memStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.Status = models.BookingPending
	booking.CreatedAt = s.tick()
	booking.UpdatedAt = booking.CreatedAt
	s.bookings = append(s.bookings, *booking)
	return nil
}

func (s *memStore) UpdateBookingStatus(ctx context.Context, update models.BookingUpdate) (*models.Booking, error) {
	s.mu.Lock()
	var updated *models.Booking
	for i := range s.bookings {
		b := &s.bookings[i]
		actor := b.ClientID
		if update.Role == models.RoleArtist {
			actor = b.ArtistID
		}
		if b.ID == update.ID && actor == update.ActorID && b.Status == update.From {
			b.Status = update.To
			b.UpdatedAt = s.tick()
			cp := *b
			updated = &cp
		}
	}
	s.mu.Unlock()
	if updated != nil {
		s.publish(gateway.Event{
			Table: gateway.TableBookings,
			Type:  gateway.EventUpdate,
			Fields: map[string]string{
				"artist_id": updated.ArtistID.String(),
				"client_id": updated.ClientID.String(),
			},
			Record: *updated,
		})
	}
	return updated, nil
}

func (s *memStore) ListUpcomingBookings(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.Status == status && !b.RequestedAt.Before(from) && b.RequestedAt.Before(to) && b.ReminderSentAt == nil && b.ClientPhone != nil {
			bk := b
			bk.Client, bk.Artist = s.users[b.ClientID], s.users[b.ArtistID]
			out = append(out, bk)
		}
	}
	return out, nil
}

func (s *memStore) MarkBookingReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			s.bookings[i].ReminderSentAt = &at
		}
	}
	return nil
}

func (s *memStore) RecordReminder(ctx context.Context, log *models.ReminderLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, *log)
	return nil
}

func (s *memStore) CountPendingForArtist(ctx context.Context, artistID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.bookings {
		if b.ArtistID == artistID && b.Status == models.BookingPending {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindReview(ctx context.Context, reviewerID, artistID uuid.UUID) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.ReviewerID == reviewerID && r.ArtistID == artistID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) InsertReview(ctx context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	review.ID = uuid.New()
	s.reviews = append(s.reviews, *review)
	return nil
}

func (s *memStore) ListReviews(ctx context.Context, artistID uuid.UUID) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Review{}
	for _, r := range s.reviews {
		if r.ArtistID == artistID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) AverageRating(ctx context.Context, artistID uuid.UUID) (float64, int64, error) {
	reviews, _ := s.ListReviews(ctx, artistID)
	if len(reviews) == 0 {
		return 0, 0, nil
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	return float64(total) / float64(len(reviews)), int64(len(reviews)), nil
}

func (s *memStore) InsertFollow(ctx context.Context, follow *models.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uuid.UUID{follow.FollowerID, follow.FollowedID}
	if s.follows[key] {
		return apperrors.Conflict("duplicate")
	}
	s.follows[key] = true
	return nil
}

func (s *memStore) DeleteFollow(ctx context.Context, followerID, followedID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uuid.UUID{followerID, followedID}
	if !s.follows[key] {
		return 0, nil
	}
	delete(s.follows, key)
	return 1, nil
}

func (s *memStore) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follows[[2]uuid.UUID{followerID, followedID}], nil
}

func (s *memStore) CountFollowers(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.follows {
		if key[1] == id {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListPosts(ctx context.Context, artistID uuid.UUID) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Post{}
	for _, p := range s.posts {
		if p.ArtistID == artistID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) InsertPost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	post.ID = uuid.New()
	post.CreatedAt = s.tick()
	s.posts = append(s.posts, *post)
	return nil
}

func (s *memStore) DeletePost(ctx context.Context, id, artistID uuid.UUID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.posts {
		if p.ID == id && p.ArtistID == artistID {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("post not found")
}

// memStorage records uploads and deletes.
type memStorage struct {
	mu        sync.Mutex
	uploadErr error
	objects   map[string][]byte
	deleted   []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Upload(ctx context.Context, in gateway.UploadInput) (*gateway.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	ref := in.Folder + "/" + uuid.NewString() + "-" + in.Name
	s.objects[ref] = data
	return &gateway.StoredObject{URL: "http://media.test/" + ref, Ref: ref}, nil
}

func (s *memStorage) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	s.deleted = append(s.deleted, ref)
	return nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

var (
	_ gateway.Store   = (*memStore)(nil)
	_ gateway.Storage = (*memStorage)(nil)
)
