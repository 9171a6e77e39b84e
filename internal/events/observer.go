package events

import (
	"encoding/json"

	"venueboard/internal/metrics"

	"github.com/rs/zerolog"
)

// SubscribeSyncObserver attaches the syncer's standing consumers to the
// bus: dispatch outcomes become structured log lines and the
// last-dispatch gauge.
func SubscribeSyncObserver(bus *EventBus, logger *zerolog.Logger) {
	if bus == nil || logger == nil {
		return
	}

	decode := func(ev *Event) (BatchEventPayload, error) {
		var payload BatchEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return payload, err
		}
		return payload, nil
	}

	bus.Subscribe(EventBatchDispatched, func(ev *Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		metrics.SetLastDispatchTime(ev.CreatedAt)
		logger.Info().Int("batch_size", payload.BatchSize).Msg("batch accepted by remote")
		return nil
	})

	bus.Subscribe(EventBatchRetried, func(ev *Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Warn().
			Int("batch_size", payload.BatchSize).
			Int("attempt", payload.Attempt).
			Str("cause", payload.Error).
			Msg("batch deferred for retry")
		return nil
	})

	bus.Subscribe(EventBatchFailed, func(ev *Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Error().
			Int("batch_size", payload.BatchSize).
			Str("cause", payload.Error).
			Msg("batch failed permanently, rows need manual review")
		return nil
	})
}

// SubscribeSnapshotObserver attaches the board's standing consumers:
// applied snapshots feed the freshness gauge, discarded ones get a
// warning with the losing sequence number.
func SubscribeSnapshotObserver(bus *EventBus, logger *zerolog.Logger) {
	if bus == nil || logger == nil {
		return
	}

	decode := func(ev *Event) (SnapshotEventPayload, error) {
		var payload SnapshotEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return payload, err
		}
		return payload, nil
	}

	bus.Subscribe(EventSnapshotApplied, func(ev *Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		metrics.SetLastSnapshotTime(ev.CreatedAt)
		logger.Debug().
			Uint64("sequence", payload.Sequence).
			Int("records", payload.Records).
			Msg("snapshot applied")
		return nil
	})

	bus.Subscribe(EventSnapshotStale, func(ev *Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Warn().
			Uint64("sequence", payload.Sequence).
			Msg("late snapshot response discarded")
		return nil
	})
}
