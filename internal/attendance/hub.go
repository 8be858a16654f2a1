package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"rollcall/internal/changefeed"
	"rollcall/internal/metrics"
)

type sessionKey struct {
	meetingID string
	date      string
}

type hubSession struct {
	session *Session
	events  chan changefeed.Event
	// ready is closed once the first reconcile finished; err holds its result.
	ready chan struct{}
	err   error
}

// Hub owns one Session per meeting date for this process and feeds them
// change events. Sessions are created on first use.
type Hub struct {
	ctx   context.Context
	store Store
	feed  changefeed.Feed
	opts  []Option

	mu       sync.Mutex
	sessions map[sessionKey]*hubSession
	watching map[string]bool
}

// NewHub builds a hub. Subscriptions and deferred commits run on ctx.
func NewHub(ctx context.Context, store Store, feed changefeed.Feed, opts ...Option) *Hub {
	return &Hub{
		ctx:      ctx,
		store:    store,
		feed:     feed,
		opts:     opts,
		sessions: make(map[sessionKey]*hubSession),
		watching: make(map[string]bool),
	}
}

// Session returns the session for a meeting date, loading it on first use.
// Concurrent callers for the same date wait for the first load.
func (h *Hub) Session(ctx context.Context, meetingID, date string) (*Session, error) {
	key := sessionKey{meetingID, date}

	h.mu.Lock()
	if hs, ok := h.sessions[key]; ok {
		h.mu.Unlock()
		select {
		case <-hs.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if hs.err != nil {
			return nil, hs.err
		}
		return hs.session, nil
	}
	if err := h.watchLocked(meetingID); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	hs := &hubSession{
		session: NewSession(h.ctx, h.store, meetingID, date, h.opts...),
		events:  make(chan changefeed.Event, 16),
		ready:   make(chan struct{}),
	}
	h.sessions[key] = hs
	h.mu.Unlock()

	// The first load must not die with the request that triggered it while
	// others wait on it.
	hs.err = hs.session.Reconcile(context.WithoutCancel(ctx))
	if hs.err != nil {
		h.mu.Lock()
		delete(h.sessions, key)
		h.mu.Unlock()
		close(hs.ready)
		return nil, hs.err
	}
	close(hs.ready)
	metrics.ActiveSessions.Inc()
	go hs.session.Watch(h.ctx, hs.events)
	return hs.session, nil
}

func (h *Hub) watchLocked(meetingID string) error {
	if h.feed == nil || h.watching[meetingID] {
		return nil
	}
	events, err := h.feed.Subscribe(h.ctx, meetingID)
	if err != nil {
		return fmt.Errorf("subscribe to meeting %s: %w", meetingID, err)
	}
	h.watching[meetingID] = true
	go h.dispatch(meetingID, events)
	return nil
}

func (h *Hub) dispatch(meetingID string, events <-chan changefeed.Event) {
	for evt := range events {
		metrics.FeedEvents.WithLabelValues(string(evt.Type)).Inc()
		h.mu.Lock()
		for key, hs := range h.sessions {
			if key.meetingID != meetingID {
				continue
			}
			select {
			case hs.events <- evt:
			default:
				slog.Warn("session event buffer full", "meeting_id", key.meetingID, "date", key.date)
			}
		}
		h.mu.Unlock()
	}
	h.mu.Lock()
	delete(h.watching, meetingID)
	h.mu.Unlock()
}

// Close commits every pending removal. Cancel the hub's context afterwards
// to stop the watchers.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, hs := range h.sessions {
		sessions = append(sessions, hs.session)
	}
	h.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
