package gateway

import (
	"log/slog"
	"sync"
)

const subscriptionBuffer = 64

// Hub fans inserted rows out to filtered subscribers. Each subscription has its own queue
// and goroutine, so delivery is ordered per subscription and a slow subscriber only drops
// its own events.
type Hub struct {
	mu   sync.RWMutex
	subs map[*hubSubscription]struct{}
	log  *slog.Logger
}

type hubSubscription struct {
	hub    *Hub
	filter Filter
	fn     func(Event)
	events chan Event
	once   sync.Once
	done   chan struct{}
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subs: map[*hubSubscription]struct{}{},
		log:  log,
	}
}

func (h *Hub) Subscribe(filter Filter, fn func(Event)) Subscription {
	s := &hubSubscription{
		hub:    h,
		filter: filter,
		fn:     fn,
		events: make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.deliverLoop()
	return s
}

func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if !s.filter.Matches(ev) {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
		default:
			// queue full, best effort
			h.log.Warn("realtime event dropped", "table", ev.Table, "column", s.filter.Column, "value", s.filter.Value)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *hubSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.done)
	})
}

func (s *hubSubscription) deliverLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(ev)
		}
	}
}
