package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	hub     *gateway.Hub
	store   *memStore
	storage *memStorage
	deps    Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hub := gateway.NewHub(nil)
	store := newMemStore(hub)
	storage := newMemStorage()
	return &testEnv{
		hub:     hub,
		store:   store,
		storage: storage,
		deps:    Deps{Store: store, Storage: storage, Realtime: hub},
	}
}

func (e *testEnv) conversation(t *testing.T, a, b *models.User) *models.Conversation {
	t.Helper()
	conv, err := e.store.StartOrGetConversation(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return conv
}

func (e *testEnv) seed(t *testing.T, conv *models.Conversation, from, to *models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		body := "ping"
		require.NoError(t, e.store.InsertMessage(context.Background(), &models.Message{
			ConversationID: conv.ID,
			SenderID:       from.ID,
			ReceiverID:     to.ID,
			Content:        &body,
		}))
	}
}

func (e *testEnv) session(t *testing.T, u *models.User) *Session {
	t.Helper()
	s := NewSession(e.deps, u.ID)
	t.Cleanup(s.Close)
	return s
}

func summaryFor(list []models.ConversationSummary, id uuid.UUID) (models.ConversationSummary, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return models.ConversationSummary{}, false
}

func TestSession_OpenConversationClearsItsUnread(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	client := env.store.addUser("uma", false)
	artist := env.store.addUser("ari", true)
	other := env.store.addUser("bo", true)
	conv := env.conversation(t, client, artist)
	second := env.conversation(t, client, other)
	env.seed(t, conv, artist, client, 3)
	env.seed(t, second, other, client, 2)

	s := env.session(t, client)
	var mu sync.Mutex
	var changes []int64
	s.Unread.OnChange(func(n int64) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, n)
	})

	total, err := s.Unread.Refresh(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, total)

	list, err := s.Directory.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	before, ok := summaryFor(list, conv.ID)
	require.True(t, ok)
	require.EqualValues(t, 3, before.UnreadCount)

	ch, err := s.OpenConversation(ctx, conv.ID, ChannelListener{})
	require.NoError(t, err)

	state, _ := ch.State()
	assert.Equal(t, ChannelReady, state)
	assert.Len(t, ch.Messages(), 3)
	assert.Equal(t, "Ari", ch.Other().DisplayName)

	assert.EqualValues(t, 2, s.Unread.Value())
	after, _ := summaryFor(s.Directory.Summaries(), conv.ID)
	assert.Zero(t, after.UnreadCount)
	untouched, _ := summaryFor(s.Directory.Summaries(), second.ID)
	assert.EqualValues(t, 2, untouched.UnreadCount)

	remaining, err := env.store.CountUnread(ctx, client.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, remaining)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{5, 2}, changes)
}

func TestSession_OpenConversationRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	outsider := env.store.addUser("oz", false)
	conv := env.conversation(t, a, b)

	_, err := env.session(t, outsider).OpenConversation(context.Background(), conv.ID, ChannelListener{})
	require.ErrorIs(t, err, apperrors.ErrNotParticipant)
	assert.Zero(t, env.hub.Subscribers())
}

func TestSession_HistoryFailureLeavesChannelInErrorState(t *testing.T) {
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)
	env.store.listMessagesErr = apperrors.Gateway("history unavailable", nil)

	var states []ChannelState
	ch, err := env.session(t, a).OpenConversation(context.Background(), conv.ID, ChannelListener{
		OnState: func(state ChannelState, err error) { states = append(states, state) },
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGateway))
	require.NotNil(t, ch)

	state, stateErr := ch.State()
	assert.Equal(t, ChannelError, state)
	assert.Equal(t, err, stateErr)
	assert.Equal(t, []ChannelState{ChannelError}, states)
	assert.Zero(t, env.hub.Subscribers())

	_, err = ch.Send(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrChannelNotReady)
}

func TestChannel_SendTextRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)

	var lengths []int
	ch, err := env.session(t, a).OpenConversation(ctx, conv.ID, ChannelListener{
		OnAppend: func(_ models.Message, length int) { lengths = append(lengths, length) },
	})
	require.NoError(t, err)

	ch.SetDraft("hello")
	msg, err := ch.Send(ctx)
	require.NoError(t, err)

	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello", *msg.Content)
	assert.Nil(t, msg.ImageURL)
	assert.Equal(t, b.ID, msg.ReceiverID)

	messages := ch.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, msg.ID, messages[len(messages)-1].ID)
	assert.Equal(t, "hello", *messages[0].Content)
	assert.Nil(t, messages[0].ImageURL)
	assert.Equal(t, Draft{}, ch.Draft())
	assert.Equal(t, []int{1}, lengths)
}

func TestChannel_EmptyDraftIsRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)

	ch, err := env.session(t, a).OpenConversation(context.Background(), conv.ID, ChannelListener{})
	require.NoError(t, err)

	ch.SetDraft("   ")
	_, err = ch.Send(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)
	assert.Empty(t, ch.Messages())
}

func TestChannel_UploadFailureKeepsDraftAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)

	ch, err := env.session(t, a).OpenConversation(ctx, conv.ID, ChannelListener{})
	require.NoError(t, err)

	env.storage.uploadErr = apperrors.Upload("storage offline", nil)
	att := &Attachment{Name: "flash.png", Data: []byte("png")}
	ch.SetDraft("does this work?")
	ch.Attach(att)

	_, err = ch.Send(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpload))

	draft := ch.Draft()
	assert.Equal(t, "does this work?", draft.Text)
	assert.True(t, draft.HasAttachment())
	assert.Same(t, att, draft.Attachment)
	assert.False(t, ch.Sending())

	rows, err := env.store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, ch.Messages())
}

func TestChannel_InsertFailureRemovesUploadedImage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)

	ch, err := env.session(t, a).OpenConversation(ctx, conv.ID, ChannelListener{})
	require.NoError(t, err)

	env.store.insertErr = apperrors.Gateway("insert failed", nil)
	ch.Attach(&Attachment{Name: "flash.png", Data: []byte("png")})
	_, err = ch.Send(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGateway))

	assert.Zero(t, env.storage.count())
	assert.Len(t, env.storage.deleted, 1)
	assert.True(t, ch.Draft().HasAttachment())

	env.store.insertErr = nil
	msg, err := ch.Send(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.ImageURL)
	assert.Nil(t, msg.Content)
	assert.Equal(t, 1, env.storage.count())
}

func TestChannel_AppendsCounterpartyPushOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)

	s := env.session(t, a)
	ch, err := s.OpenConversation(ctx, conv.ID, ChannelListener{})
	require.NoError(t, err)

	ch.SetDraft("mine")
	_, err = ch.Send(ctx)
	require.NoError(t, err)

	env.seed(t, conv, b, a, 1)

	require.Eventually(t, func() bool { return len(ch.Messages()) == 2 }, time.Second, 5*time.Millisecond)
	messages := ch.Messages()
	assert.Equal(t, a.ID, messages[0].SenderID)
	assert.Equal(t, b.ID, messages[1].SenderID)

	// the pushed message is marked read while the channel is open
	require.Eventually(t, func() bool {
		n, _ := env.store.CountUnread(ctx, a.ID)
		return n == 0 && s.Unread.Value() == 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, ch.Messages(), 2)
}

type gatedStorage struct {
	*memStorage
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStorage) Upload(ctx context.Context, in gateway.UploadInput) (*gateway.StoredObject, error) {
	close(g.entered)
	<-g.release
	return g.memStorage.Upload(ctx, in)
}

func TestChannel_SendIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	gated := &gatedStorage{memStorage: env.storage, entered: make(chan struct{}), release: make(chan struct{})}
	env.deps.Storage = gated
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)

	ch, err := env.session(t, a).OpenConversation(ctx, conv.ID, ChannelListener{})
	require.NoError(t, err)
	ch.SetDraft("first")
	ch.Attach(&Attachment{Name: "a.png", Data: []byte("png")})

	done := make(chan error, 1)
	go func() {
		_, err := ch.Send(ctx)
		done <- err
	}()
	<-gated.entered
	assert.True(t, ch.Sending())

	_, err = ch.Send(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSendInProgress)

	close(gated.release)
	require.NoError(t, <-done)
	assert.Len(t, ch.Messages(), 1)
}

func TestSession_SwitchingConversationReleasesSubscription(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	c := env.store.addUser("cy", true)
	first := env.conversation(t, a, b)
	second := env.conversation(t, a, c)

	s := NewSession(env.deps, a.ID)
	s.WatchBookings(func(models.Booking) {})
	chA, err := s.OpenConversation(ctx, first.ID, ChannelListener{})
	require.NoError(t, err)
	assert.Equal(t, 3, env.hub.Subscribers())

	chB, err := s.OpenConversation(ctx, second.ID, ChannelListener{})
	require.NoError(t, err)

	stateA, _ := chA.State()
	assert.Equal(t, ChannelClosed, stateA)
	assert.Same(t, chB, s.Channel())
	assert.Equal(t, 3, env.hub.Subscribers())

	_, err = chA.Send(ctx)
	assert.ErrorIs(t, err, apperrors.ErrChannelClosed)

	s.Close()
	assert.Zero(t, env.hub.Subscribers())
	assert.Nil(t, s.Channel())
}

func TestDirectory_StartOrGetIsUnordered(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)

	fromA, err := env.session(t, a).Directory.StartOrGet(ctx, b.ID)
	require.NoError(t, err)
	fromB, err := env.session(t, b).Directory.StartOrGet(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, fromA.ID, fromB.ID)

	_, err = env.session(t, a).Directory.StartOrGet(ctx, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfConversation)
}

func TestDirectory_EmptyListIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	loner := env.store.addUser("lone", false)

	list, err := env.session(t, loner).Directory.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestUnreadCounter_DecrementClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	u := env.store.addUser("uma", false)
	counter := NewUnreadCounter(env.store, u.ID)

	assert.EqualValues(t, 0, counter.Decrement(4))
	assert.EqualValues(t, 0, counter.Value())
}

// hookedStore runs test hooks around history loading and mark-read.
type hookedStore struct {
	*memStore
	afterList      func()
	beforeMarkRead func()
	markOnce       sync.Once
}

func (h *hookedStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	out, err := h.memStore.ListMessages(ctx, conversationID)
	if h.afterList != nil {
		h.afterList()
	}
	return out, err
}

func (h *hookedStore) MarkConversationRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	if h.beforeMarkRead != nil {
		h.markOnce.Do(h.beforeMarkRead)
	}
	return h.memStore.MarkConversationRead(ctx, conversationID, receiverID)
}

func TestChannel_MessagesArrivingDuringMountAreKept(t *testing.T) {
	cases := map[string]func(h *hookedStore, insert func()){
		"while history loads": func(h *hookedStore, insert func()) {
			var once sync.Once
			h.afterList = func() { once.Do(insert) }
		},
		"while marking read": func(h *hookedStore, insert func()) {
			h.beforeMarkRead = insert
		},
	}
	for name, arrange := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			a := env.store.addUser("ana", false)
			b := env.store.addUser("ben", true)
			conv := env.conversation(t, a, b)

			hooked := &hookedStore{memStore: env.store}
			arrange(hooked, func() { env.seed(t, conv, b, a, 1) })
			env.deps.Store = hooked

			s := env.session(t, a)
			ch, err := s.OpenConversation(ctx, conv.ID, ChannelListener{})
			require.NoError(t, err)

			require.Eventually(t, func() bool { return len(ch.Messages()) == 1 }, time.Second, 5*time.Millisecond)
			assert.Equal(t, b.ID, ch.Messages()[0].SenderID)

			require.Eventually(t, func() bool {
				n, _ := env.store.CountUnread(ctx, a.ID)
				return n == 0 && s.Unread.Value() == 0
			}, time.Second, 5*time.Millisecond)

			time.Sleep(20 * time.Millisecond)
			assert.Len(t, ch.Messages(), 1)
		})
	}
}

func TestChannel_CloseDuringHistoryLoadDropsLateResults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.store.addUser("ana", false)
	b := env.store.addUser("ben", true)
	conv := env.conversation(t, a, b)
	env.seed(t, conv, b, a, 2)

	entered, release := make(chan struct{}), make(chan struct{})
	hooked := &hookedStore{memStore: env.store, afterList: func() {
		close(entered)
		<-release
	}}
	env.deps.Store = hooked

	var mu sync.Mutex
	var histories, states int
	s := NewSession(env.deps, a.ID)
	done := make(chan error, 1)
	go func() {
		_, err := s.OpenConversation(ctx, conv.ID, ChannelListener{
			OnState:   func(ChannelState, error) { mu.Lock(); states++; mu.Unlock() },
			OnHistory: func([]models.Message) { mu.Lock(); histories++; mu.Unlock() },
		})
		done <- err
	}()

	<-entered
	assert.Equal(t, 1, env.hub.Subscribers())
	s.Close()
	assert.Zero(t, env.hub.Subscribers())

	close(release)
	assert.ErrorIs(t, <-done, apperrors.ErrChannelClosed)

	mu.Lock()
	assert.Zero(t, histories)
	assert.Zero(t, states)
	mu.Unlock()

	unread, err := env.store.CountUnread(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)
	assert.Zero(t, env.hub.Subscribers())
}
