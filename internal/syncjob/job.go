// Package syncjob moves newly-appended sheet rows into the remote
// event store exactly once each, tolerating overlapping invocations.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venueboard/internal/dispatch"
	"venueboard/internal/events"
	"venueboard/internal/lock"
	"venueboard/internal/metrics"
	"venueboard/internal/models"
	"venueboard/internal/sheet"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cycle outcomes reported to metrics.
const (
	OutcomeDispatched = "dispatched"
	OutcomeEmpty      = "empty"
	OutcomeSkipped    = "skipped"
	OutcomeError      = "error"
)

// Dispatcher is the remote ingestion side of the job.
type Dispatcher interface {
	SendBatch(ctx context.Context, batch []models.BookingRecord) error
}

// Job scans the tabular source and dispatches unsynced rows in one
// batch per cycle, under a mutual-exclusion lock.
type Job struct {
	source     sheet.RowSource
	dispatcher Dispatcher
	locker     lock.Locker
	bus        *events.EventBus
	logger     *zerolog.Logger
	lockWait   time.Duration
	maxRetries int
	loc        *time.Location
	now        func() time.Time
}

func New(source sheet.RowSource, dispatcher Dispatcher, locker lock.Locker, bus *events.EventBus, logger *zerolog.Logger, lockWait time.Duration, maxRetries int, loc *time.Location) *Job {
	if lockWait <= 0 {
		lockWait = models.LockWaitSeconds * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxDispatchRetries
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Job{
		source:     source,
		dispatcher: dispatcher,
		locker:     locker,
		bus:        bus,
		logger:     logger,
		lockWait:   lockWait,
		maxRetries: maxRetries,
		loc:        loc,
		now:        time.Now,
	}
}

// Start runs cycles on the interval until ctx is done. Cycle errors
// are logged and never stop the scheduler.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info().Dur("interval", interval).Msg("sync job started")
	defer j.logger.Info().Msg("sync job stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.RunCycle(ctx); err != nil {
			j.logger.Error().Err(err).Msg("sync cycle failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCycle performs one scan-build-dispatch-mark sequence. A held lock
// is not an error: the cycle is skipped and the next one retries.
func (j *Job) RunCycle(ctx context.Context) error {
	release, err := j.locker.Acquire(ctx, j.lockWait)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			j.logger.Info().Msg("could not obtain lock, skipping run")
			metrics.IncSyncCycle(OutcomeSkipped)
			return nil
		}
		metrics.IncSyncCycle(OutcomeError)
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer release()

	if err := j.runLocked(ctx); err != nil {
		metrics.IncSyncCycle(OutcomeError)
		return err
	}
	return nil
}

func (j *Job) runLocked(ctx context.Context) error {
	rows, err := j.source.Rows(ctx)
	if err != nil {
		return fmt.Errorf("scan rows: %w", err)
	}

	batch, rowNums, attempts := j.collect(ctx, rows)

	if len(batch) == 0 {
		metrics.IncSyncCycle(OutcomeEmpty)
		return nil
	}

	j.logger.Info().Int("batch_size", len(batch)).Msg("dispatching batch")

	if err := j.dispatcher.SendBatch(ctx, batch); err != nil {
		return j.applyFailure(ctx, rowNums, attempts, len(batch), err)
	}

	if err := j.source.SetStatus(ctx, rowNums, models.SyncStatusSynced); err != nil {
		// Dispatched but unmarked rows will be re-sent next cycle; the
		// remote dedupes them by transaction id.
		return fmt.Errorf("mark synced: %w", err)
	}

	metrics.IncSyncCycle(OutcomeDispatched)
	metrics.AddDispatched(len(batch))
	j.publish(events.EventBatchDispatched, events.BatchEventPayload{BatchSize: len(batch)})
	for range batch {
		j.publish(events.EventRecordSynced, nil)
	}
	return nil
}

// collect walks the scanned rows and builds the ordered batch. Rows
// already resolved or missing date/slot are skipped; candidates get a
// transaction id persisted before they may enter a batch.
func (j *Job) collect(ctx context.Context, rows []models.Row) ([]models.BookingRecord, []int, []int) {
	var (
		batch    []models.BookingRecord
		rowNums  []int
		attempts []int
	)

	for _, row := range rows {
		rec := row.Record
		if models.Resolved(rec.Status) {
			continue
		}
		if !rec.Complete() {
			continue
		}

		attempt, _ := models.ParseRetry(rec.Status)

		if rec.TransactionID == "" {
			id := uuid.NewString()
			if err := j.source.SetTransactionID(ctx, row.RowNum, id); err != nil {
				// Without a durable id the row cannot be dispatched
				// safely; leave it for the next scan.
				j.logger.Warn().Err(err).Int("row", row.RowNum).Msg("persist transaction id failed, row deferred")
				continue
			}
			rec.TransactionID = id
		}

		batch = append(batch, j.project(rec))
		rowNums = append(rowNums, row.RowNum)
		attempts = append(attempts, attempt)
	}

	return batch, rowNums, attempts
}

// project maps a source row to the canonical dispatch shape.
func (j *Job) project(rec models.BookingRecord) models.BookingRecord {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = j.now()
	}

	return models.BookingRecord{
		TransactionID: rec.TransactionID,
		Date:          NormalizeDate(rec.Date, j.loc),
		Slot:          rec.Slot,
		LocationID:    rec.LocationID,
		Club:          rec.Club,
		Event:         rec.Event,
		Timestamp:     ts.UTC(),
	}
}

// applyFailure marks the whole batch after a failed dispatch. The
// batch shares fate: transient failures bump every row's retry count,
// permanent ones end every row at FAILED.
func (j *Job) applyFailure(ctx context.Context, rowNums []int, attempts []int, size int, cause error) error {
	if errors.Is(cause, dispatch.ErrNoCredential) {
		// Fail closed: no rows touched, nothing dispatched.
		j.logger.Error().Err(cause).Msg("dispatch credential missing, aborting cycle")
		return cause
	}

	transient := dispatch.IsTransient(cause)
	class := "permanent"
	if transient {
		class = "transient"
	}
	metrics.IncDispatchFailure(class)

	var retryRows, failedRows []int
	maxAttempt := 0
	for i, rowNum := range rowNums {
		next := attempts[i] + 1
		if transient && next < j.maxRetries {
			retryRows = append(retryRows, rowNum)
			if next > maxAttempt {
				maxAttempt = next
			}
		} else {
			failedRows = append(failedRows, rowNum)
		}
	}

	// Rows grouped by attempt count would need one write each; the
	// batch always fails together, so the shared max keeps it to two.
	if len(retryRows) > 0 {
		if err := j.source.SetStatus(ctx, retryRows, models.FormatRetry(maxAttempt)); err != nil {
			j.logger.Error().Err(err).Msg("mark retry failed")
		}
		j.publish(events.EventBatchRetried, events.BatchEventPayload{
			BatchSize: size,
			Attempt:   maxAttempt,
			Error:     cause.Error(),
		})
	}
	if len(failedRows) > 0 {
		if err := j.source.SetStatus(ctx, failedRows, models.SyncStatusFailed); err != nil {
			j.logger.Error().Err(err).Msg("mark failed failed")
		}
		j.publish(events.EventBatchFailed, events.BatchEventPayload{
			BatchSize: size,
			Error:     cause.Error(),
		})
	}

	return fmt.Errorf("dispatch batch of %d: %w", size, cause)
}

func (j *Job) publish(eventType string, payload interface{}) {
	if j.bus == nil {
		return
	}
	_ = j.bus.PublishJSON(eventType, payload)
}
