package services

import (
	"context"
	"log/slog"
	"sync"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

type ChannelState string

const (
	ChannelLoading ChannelState = "loading"
	ChannelReady   ChannelState = "ready"
	ChannelError   ChannelState = "error"
	ChannelClosed  ChannelState = "closed"
)

// Draft is the compose box of a channel.
type Draft struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"-"`
}

// HasAttachment is what the compose box shows as the attachment preview.
func (d Draft) HasAttachment() bool { return d.Attachment != nil }

// ChannelListener receives channel changes. Any field may be nil. Callbacks run outside
// the channel lock.
type ChannelListener struct {
	OnState   func(state ChannelState, err error)
	OnHistory func(messages []models.Message)
	// OnAppend runs every time the message sequence grows.
	OnAppend func(msg models.Message, length int)
}

// MessageChannel is one mounted conversation: its history, its push subscription and
// its compose state.
type MessageChannel struct {
	conv      *models.Conversation
	identity  uuid.UUID
	other     models.Profile
	store     gateway.MessageStore
	realtime  gateway.Realtime
	sender    *MessageSender
	directory *ConversationDirectory
	listener  ChannelListener
	log       *slog.Logger

	mu       sync.Mutex
	state    ChannelState
	err      error
	messages []models.Message
	seen     map[uuid.UUID]struct{}
	pending  []models.Message
	draft    Draft
	sending  bool
	closed   bool
	sub      gateway.Subscription
}

func newMessageChannel(deps Deps, sender *MessageSender, directory *ConversationDirectory, conv *models.Conversation, identity uuid.UUID, other models.Profile, listener ChannelListener) *MessageChannel {
	return &MessageChannel{
		conv:      conv,
		identity:  identity,
		other:     other,
		store:     deps.Store,
		realtime:  deps.Realtime,
		sender:    sender,
		directory: directory,
		listener:  listener,
		log:       deps.logger().With(slog.String("conversation_id", conv.ID.String())),
		state:     ChannelLoading,
		seen:      map[uuid.UUID]struct{}{},
	}
}

func (ch *MessageChannel) ConversationID() uuid.UUID { return ch.conv.ID }

func (ch *MessageChannel) Other() models.Profile { return ch.other }

func (ch *MessageChannel) State() (ChannelState, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state, ch.err
}

// Messages returns a copy of the loaded sequence.
func (ch *MessageChannel) Messages() []models.Message {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]models.Message, len(ch.messages))
	copy(out, ch.messages)
	return out
}

// Mount subscribes to new messages, loads history and, once ready, marks incoming
// messages read and refreshes the global unread count. Pushes that arrive while history is
// loading are held and merged after it. Results that arrive after Close are dropped.
func (ch *MessageChannel) Mount(ctx context.Context) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return apperrors.ErrChannelClosed
	}
	ch.sub = ch.realtime.Subscribe(gateway.Filter{
		Table:  gateway.TableMessages,
		Column: "conversation_id",
		Value:  ch.conv.ID.String(),
	}, ch.receive)
	ch.mu.Unlock()

	history, err := ch.store.ListMessages(ctx, ch.conv.ID)

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return apperrors.ErrChannelClosed
	}
	if err != nil {
		ch.state, ch.err = ChannelError, err
		sub := ch.sub
		ch.sub, ch.pending = nil, nil
		ch.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		ch.emitState(ChannelError, err)
		return err
	}
	ch.messages = ch.messages[:0]
	for _, m := range append(history, ch.pending...) {
		if _, dup := ch.seen[m.ID]; dup {
			continue
		}
		ch.seen[m.ID] = struct{}{}
		ch.messages = append(ch.messages, m)
	}
	ch.pending = nil
	ch.state = ChannelReady
	snapshot := append([]models.Message(nil), ch.messages...)
	ch.mu.Unlock()

	ch.emitState(ChannelReady, nil)
	if ch.listener.OnHistory != nil {
		ch.listener.OnHistory(snapshot)
	}

	ch.markRead(ctx)
	if ch.isClosed() {
		return apperrors.ErrChannelClosed
	}
	return nil
}

func (ch *MessageChannel) markRead(ctx context.Context) {
	if ch.isClosed() {
		return
	}
	n, err := ch.store.MarkConversationRead(ctx, ch.conv.ID, ch.identity)
	if err != nil {
		ch.log.Warn("mark read failed", slog.Any("error", err))
		return
	}
	if ch.isClosed() {
		return
	}
	if _, err := ch.directory.RefreshUnread(ctx); err != nil {
		ch.log.Warn("unread refresh failed", slog.Any("error", err), slog.Int64("marked", n))
	}
}

// receive handles a pushed insert. Only the counter-party's messages are appended; our own
// arrive through Send.
func (ch *MessageChannel) receive(ev gateway.Event) {
	msg, ok := ev.Record.(models.Message)
	if !ok || msg.ConversationID != ch.conv.ID || msg.SenderID == ch.identity {
		return
	}
	if ch.hold(msg) {
		return
	}

	length, appended := ch.appendMessage(msg)
	if !appended {
		return
	}
	if ch.listener.OnAppend != nil {
		ch.listener.OnAppend(msg, length)
	}
	if msg.ReceiverID == ch.identity {
		ch.markRead(context.Background())
	}
}

// hold queues a push that arrived before history finished loading.
func (ch *MessageChannel) hold(msg models.Message) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed || ch.state != ChannelLoading {
		return false
	}
	ch.pending = append(ch.pending, msg)
	return true
}

func (ch *MessageChannel) appendMessage(msg models.Message) (int, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed || ch.state != ChannelReady {
		return len(ch.messages), false
	}
	if _, dup := ch.seen[msg.ID]; dup {
		return len(ch.messages), false
	}
	ch.seen[msg.ID] = struct{}{}
	ch.messages = append(ch.messages, msg)
	return len(ch.messages), true
}

func (ch *MessageChannel) SetDraft(text string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.draft.Text = text
}

// Attach sets the single image attachment. A nil attachment clears it.
func (ch *MessageChannel) Attach(att *Attachment) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.draft.Attachment = att
}

func (ch *MessageChannel) Draft() Draft {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.draft
}

// Sending reports whether a send is in flight.
func (ch *MessageChannel) Sending() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.sending
}

// Send submits the current draft. Only one send runs at a time. On failure the draft is
// left as it was so the user can retry.
func (ch *MessageChannel) Send(ctx context.Context) (*models.Message, error) {
	ch.mu.Lock()
	switch {
	case ch.closed:
		ch.mu.Unlock()
		return nil, apperrors.ErrChannelClosed
	case ch.state != ChannelReady:
		ch.mu.Unlock()
		return nil, apperrors.ErrChannelNotReady
	case ch.sending:
		ch.mu.Unlock()
		return nil, apperrors.ErrSendInProgress
	}
	draft := ch.draft
	ch.sending = true
	ch.mu.Unlock()

	msg, err := ch.sender.Send(ctx, ch.conv, ch.identity, draft.Text, draft.Attachment)

	ch.mu.Lock()
	ch.sending = false
	if err != nil {
		ch.mu.Unlock()
		return nil, err
	}
	if !ch.closed {
		ch.draft = Draft{}
	}
	ch.mu.Unlock()

	if length, appended := ch.appendMessage(*msg); appended && ch.listener.OnAppend != nil {
		ch.listener.OnAppend(*msg, length)
	}
	return msg, nil
}

// Close releases the push subscription. It is safe to call more than once.
func (ch *MessageChannel) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.state = ChannelClosed
	sub := ch.sub
	ch.sub = nil
	ch.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (ch *MessageChannel) isClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *MessageChannel) emitState(state ChannelState, err error) {
	if ch.listener.OnState != nil {
		ch.listener.OnState(state, err)
	}
}
