package changefeed

import (
	"context"
	"testing"
	"time"

	"rollcall/internal/model"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestInMemoryRoutesByMeeting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewInMemory(4)

	a, _ := feed.Subscribe(ctx, "A")
	all, _ := feed.Subscribe(ctx, "")

	_ = feed.Publish(ctx, Event{Type: Insert, New: &model.Record{ID: "1", MeetingID: "B"}})
	_ = feed.Publish(ctx, Event{Type: Delete, Old: &model.Record{ID: "2", MeetingID: "A"}})

	if evt := recv(t, a); evt.Type != Delete || evt.Old.ID != "2" {
		t.Errorf("meeting A got %+v", evt)
	}
	if evt := recv(t, all); evt.New == nil || evt.New.ID != "1" {
		t.Errorf("wildcard first event = %+v", evt)
	}
	if evt := recv(t, all); evt.Old == nil || evt.Old.ID != "2" {
		t.Errorf("wildcard second event = %+v", evt)
	}
	select {
	case evt := <-a:
		t.Errorf("meeting A received foreign event %+v", evt)
	default:
	}
}

func TestInMemoryClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := NewInMemory(1)
	ch, _ := feed.Subscribe(ctx, "A")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if err := feed.Publish(context.Background(), Event{Type: Insert, New: &model.Record{MeetingID: "A"}}); err != nil {
		t.Errorf("publish after unsubscribe: %v", err)
	}
}

func TestDecode(t *testing.T) {
	evt, err := decode(`{"type":"update","new":{"id":"r","meeting_id":"m","person_id":"p","date":"2024-01-07","marked_at":"2024-01-07T10:00:00Z"},"old":{"id":"r","meeting_id":"m","person_id":"p","date":"2024-01-06","marked_at":"2024-01-07T10:00:00Z"}}`)
	if err != nil {
		t.Fatal(err)
	}
	if evt.Type != Update || evt.MeetingID() != "m" || evt.Old.Date != "2024-01-06" {
		t.Errorf("decoded %+v", evt)
	}
	if _, err := decode("not json"); err == nil {
		t.Error("expected error for malformed payload")
	}
}
