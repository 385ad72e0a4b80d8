package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// UnreadSource is where the authoritative unread total comes from.
type UnreadSource interface {
	CountUnread(ctx context.Context, identityID uuid.UUID) (int64, error)
}

// UnreadCounter is the single owner of an identity's global unread count within a
// session. Writes are last-write-wins.
type UnreadCounter struct {
	source   UnreadSource
	identity uuid.UUID

	mu        sync.Mutex
	count     int64
	listeners []func(int64)
}

func NewUnreadCounter(source UnreadSource, identity uuid.UUID) *UnreadCounter {
	return &UnreadCounter{source: source, identity: identity}
}

// Refresh pulls the total from the source.
func (u *UnreadCounter) Refresh(ctx context.Context) (int64, error) {
	n, err := u.source.CountUnread(ctx, u.identity)
	if err != nil {
		return u.Value(), err
	}
	u.set(n)
	return n, nil
}

// Decrement lowers the count by n, never below zero.
func (u *UnreadCounter) Decrement(n int64) int64 {
	if n <= 0 {
		return u.Value()
	}
	u.mu.Lock()
	next := u.count - n
	if next < 0 {
		next = 0
	}
	u.mu.Unlock()
	u.set(next)
	return next
}

func (u *UnreadCounter) Value() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// OnChange registers fn to run after every change of the count.
func (u *UnreadCounter) OnChange(fn func(int64)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listeners = append(u.listeners, fn)
}

func (u *UnreadCounter) set(n int64) {
	u.mu.Lock()
	changed := u.count != n
	u.count = n
	listeners := append([]func(int64){}, u.listeners...)
	u.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(n)
	}
}
