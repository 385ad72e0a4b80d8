package services

import (
	"context"
	"sync"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/models"

	"github.com/google/uuid"
)

// ConversationDirectory lists the identity's conversations and keeps the global unread
// counter consistent with what the user has opened.
type ConversationDirectory struct {
	store    gateway.ConversationStore
	counter  *UnreadCounter
	identity uuid.UUID

	mu        sync.Mutex
	summaries []models.ConversationSummary
}

func NewConversationDirectory(store gateway.ConversationStore, counter *UnreadCounter, identity uuid.UUID) *ConversationDirectory {
	return &ConversationDirectory{store: store, counter: counter, identity: identity}
}

// List fetches the summaries in server order. A failed fetch keeps the previous cache.
func (d *ConversationDirectory) List(ctx context.Context) ([]models.ConversationSummary, error) {
	rows, err := d.store.ListConversationsWithDetails(ctx, d.identity)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.ConversationSummary{}
	}

	d.mu.Lock()
	d.summaries = rows
	d.mu.Unlock()
	return d.Summaries(), nil
}

// Summaries returns a copy of the cached list.
func (d *ConversationDirectory) Summaries() []models.ConversationSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ConversationSummary, len(d.summaries))
	copy(out, d.summaries)
	return out
}

// Select marks the conversation as opened: its cached unread count drops to zero and the
// global counter is lowered by the same amount.
func (d *ConversationDirectory) Select(conversationID uuid.UUID) {
	d.mu.Lock()
	var cleared int64
	for i := range d.summaries {
		if d.summaries[i].ID == conversationID {
			cleared = d.summaries[i].UnreadCount
			d.summaries[i].UnreadCount = 0
			break
		}
	}
	d.mu.Unlock()

	if cleared > 0 {
		d.counter.Decrement(cleared)
	}
}

// StartOrGet returns the single conversation between the identity and other.
func (d *ConversationDirectory) StartOrGet(ctx context.Context, other uuid.UUID) (*models.Conversation, error) {
	if other == d.identity {
		return nil, apperrors.ErrSelfConversation
	}
	return d.store.StartOrGetConversation(ctx, d.identity, other)
}

// RefreshUnread recomputes the global unread count from the store.
func (d *ConversationDirectory) RefreshUnread(ctx context.Context) (int64, error) {
	return d.counter.Refresh(ctx)
}
