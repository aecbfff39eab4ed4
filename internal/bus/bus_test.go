package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("presence.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindFriendTabUpdate, Payload: "f1"})

	select {
	case evt := <-ch:
		if evt.Kind != KindFriendTabUpdate {
			t.Errorf("got kind %q, want %s", evt.Kind, KindFriendTabUpdate)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConnStateChanged})
	b.Publish(Event{Kind: KindNewMessage})

	select {
	case evt := <-ch:
		if evt.Kind != KindNewMessage {
			t.Errorf("got kind %q, want %s", evt.Kind, KindNewMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("tab.", 10)
	unsub()
	unsub() // second call is a no-op

	b.Publish(Event{Kind: KindTabCreated})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestSlowSubscriberDoesNotBlockOthers verifies fan-out: a full subscriber
// drops the event while the others still receive it.
func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New()
	slow, unsubSlow := b.Subscribe("presence.", 1)
	defer unsubSlow()
	fast, unsubFast := b.Subscribe("presence.", 10)
	defer unsubFast()

	b.Publish(Event{Kind: KindFriendTabUpdate, Payload: 1})
	b.Publish(Event{Kind: KindFriendTabUpdate, Payload: 2})

	if evt := <-slow; evt.Payload != 1 {
		t.Errorf("slow got payload %v, want 1", evt.Payload)
	}
	for want := 1; want <= 2; want++ {
		select {
		case evt := <-fast:
			if evt.Payload != want {
				t.Errorf("fast got payload %v, want %d", evt.Payload, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber missed event %d", want)
		}
	}
	if b.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", b.Dropped())
	}
}
