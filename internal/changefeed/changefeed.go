// Package changefeed carries attendance-record change events between writers
// and every process that keeps derived state.
package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/model"
)

// EventType names the kind of row change.
type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Event describes one change to an attendance record. New is nil for
// deletes and Old is nil for inserts.
type Event struct {
	Type EventType     `json:"type"`
	New  *model.Record `json:"new,omitempty"`
	Old  *model.Record `json:"old,omitempty"`
}

// MeetingID returns the meeting the changed row belongs to.
func (e Event) MeetingID() string {
	if e.New != nil {
		return e.New.MeetingID
	}
	if e.Old != nil {
		return e.Old.MeetingID
	}
	return ""
}

// Feed is the abstraction over different backends. Subscribe with an empty
// meetingID receives every event.
type Feed interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, meetingID string) (<-chan Event, error)
}

// InMemory fans events out to subscribers in the same process.
type InMemory struct {
	mu     sync.Mutex
	size   int
	nextID int
	subs   map[int]subscriber
}

type subscriber struct {
	meetingID string
	ch        chan Event
}

// NewInMemory creates a feed whose subscriber channels buffer size events.
func NewInMemory(size int) *InMemory {
	return &InMemory{size: size, subs: make(map[int]subscriber)}
}

// Publish delivers evt to every matching subscriber. A subscriber whose
// buffer is full misses the event.
func (f *InMemory) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meetingID := evt.MeetingID()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.meetingID != "" && s.meetingID != meetingID {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			slog.Warn("change feed subscriber full, dropping event", "meeting_id", meetingID, "type", evt.Type)
		}
	}
	return nil
}

// Subscribe returns a channel that is closed when ctx is done.
func (f *InMemory) Subscribe(ctx context.Context, meetingID string) (<-chan Event, error) {
	ch := make(chan Event, f.size)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = subscriber{meetingID: meetingID, ch: ch}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Redis implements the feed over Redis pub/sub, one channel per meeting.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a feed publishing on prefix + meeting id.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "rollcall:changes:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Publish sends evt on the meeting's channel.
func (f *Redis) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.prefix+evt.MeetingID(), data).Err()
}

// Subscribe streams decoded events until ctx is done.
func (f *Redis) Subscribe(ctx context.Context, meetingID string) (<-chan Event, error) {
	var ps *redis.PubSub
	if meetingID == "" {
		ps = f.client.PSubscribe(ctx, f.prefix+"*")
	} else {
		ps = f.client.Subscribe(ctx, f.prefix+meetingID)
	}
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				evt, err := decode(msg.Payload)
				if err != nil {
					slog.Warn("dropping malformed change event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decode(payload string) (Event, error) {
	var evt Event
	err := json.Unmarshal([]byte(payload), &evt)
	return evt, err
}
