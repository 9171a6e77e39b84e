package events

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func captureLogger(buf *bytes.Buffer) *zerolog.Logger {
	logger := zerolog.New(buf)
	return &logger
}

func TestSubscribeSyncObserver(t *testing.T) {
	bus := NewEventBus()
	var buf bytes.Buffer
	SubscribeSyncObserver(bus, captureLogger(&buf))

	if err := bus.PublishJSON(EventBatchDispatched, BatchEventPayload{BatchSize: 3}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), "batch accepted by remote") {
		t.Errorf("dispatched event not logged, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"batch_size":3`) {
		t.Errorf("payload not decoded, got %q", buf.String())
	}

	buf.Reset()
	if err := bus.PublishJSON(EventBatchRetried, BatchEventPayload{BatchSize: 2, Attempt: 1, Error: "status 503"}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), "batch deferred for retry") {
		t.Errorf("retried event not logged, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "status 503") {
		t.Errorf("failure cause missing, got %q", buf.String())
	}

	buf.Reset()
	if err := bus.PublishJSON(EventBatchFailed, BatchEventPayload{BatchSize: 2, Error: "status 422"}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), "batch failed permanently") {
		t.Errorf("failed event not logged, got %q", buf.String())
	}
}

func TestSubscribeSnapshotObserver(t *testing.T) {
	bus := NewEventBus()
	var buf bytes.Buffer
	SubscribeSnapshotObserver(bus, captureLogger(&buf))

	if err := bus.PublishJSON(EventSnapshotApplied, SnapshotEventPayload{Sequence: 7, Records: 4}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), "snapshot applied") {
		t.Errorf("applied event not logged, got %q", buf.String())
	}

	buf.Reset()
	if err := bus.PublishJSON(EventSnapshotStale, SnapshotEventPayload{Sequence: 6}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), "late snapshot response discarded") {
		t.Errorf("stale event not logged, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"sequence":6`) {
		t.Errorf("sequence missing, got %q", buf.String())
	}
}

func TestSubscribeObserversNilArgs(t *testing.T) {
	// Should not panic and should not register anything.
	SubscribeSyncObserver(nil, captureLogger(&bytes.Buffer{}))
	SubscribeSyncObserver(NewEventBus(), nil)
	SubscribeSnapshotObserver(nil, captureLogger(&bytes.Buffer{}))
	SubscribeSnapshotObserver(NewEventBus(), nil)
}

func TestSyncObserverIgnoresMalformedPayload(t *testing.T) {
	bus := NewEventBus()
	var buf bytes.Buffer
	SubscribeSyncObserver(bus, captureLogger(&buf))

	bus.Publish(&Event{Type: EventBatchDispatched, Payload: []byte("not json")})
	if !strings.Contains(buf.String(), "decode payload") {
		t.Errorf("decode failure not logged, got %q", buf.String())
	}
}
