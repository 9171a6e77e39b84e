package events

import (
	"encoding/json"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBatchDispatched, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := BatchEventPayload{BatchSize: 4}
	if err := bus.PublishJSON(EventBatchDispatched, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventBatchDispatched {
		t.Errorf("expected type %s, got %s", EventBatchDispatched, received.Type)
	}
	if received.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BatchEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.BatchSize != 4 {
		t.Errorf("expected batch size 4, got %d", decoded.BatchSize)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestEventBusTypeIsolation(t *testing.T) {
	bus := NewEventBus()
	var staleCalls int

	bus.Subscribe(EventSnapshotStale, func(_ *Event) error { staleCalls++; return nil })

	if err := bus.PublishJSON(EventSnapshotApplied, SnapshotEventPayload{Sequence: 1, Records: 3}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if staleCalls != 0 {
		t.Errorf("handler for a different type was called %d times", staleCalls)
	}
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON("anything", nil); err != nil {
		t.Errorf("nil bus PublishJSON failed: %v", err)
	}
}
