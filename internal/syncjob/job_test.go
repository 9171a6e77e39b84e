package syncjob

import (
	"context"
	"testing"
	"time"

	"venueboard/internal/dispatch"
	"venueboard/internal/events"
	"venueboard/internal/lock"
	"venueboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory RowSource with the sheet's semantics.
type fakeSource struct {
	rows       []models.Row
	idWrites   int
	rowsErr    error
	setIDErr   error
	statusErr  error
	statusLog  []string
	statusRows [][]int
}

func (f *fakeSource) EnsureHeaders(ctx context.Context) error { return nil }

func (f *fakeSource) Rows(ctx context.Context) ([]models.Row, error) {
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	out := make([]models.Row, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeSource) SetTransactionID(ctx context.Context, rowNum int, id string) error {
	if f.setIDErr != nil {
		return f.setIDErr
	}
	f.idWrites++
	for i := range f.rows {
		if f.rows[i].RowNum == rowNum {
			f.rows[i].Record.TransactionID = id
		}
	}
	return nil
}

func (f *fakeSource) SetStatus(ctx context.Context, rowNums []int, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusLog = append(f.statusLog, status)
	f.statusRows = append(f.statusRows, append([]int(nil), rowNums...))
	for i := range f.rows {
		for _, n := range rowNums {
			if f.rows[i].RowNum == n {
				f.rows[i].Record.Status = status
			}
		}
	}
	return nil
}

func (f *fakeSource) status(rowNum int) string {
	for _, r := range f.rows {
		if r.RowNum == rowNum {
			return r.Record.Status
		}
	}
	return ""
}

func (f *fakeSource) transactionID(rowNum int) string {
	for _, r := range f.rows {
		if r.RowNum == rowNum {
			return r.Record.TransactionID
		}
	}
	return ""
}

type fakeDispatcher struct {
	err     error
	calls   int
	batches [][]models.BookingRecord
}

func (f *fakeDispatcher) SendBatch(ctx context.Context, batch []models.BookingRecord) error {
	f.calls++
	f.batches = append(f.batches, append([]models.BookingRecord(nil), batch...))
	return f.err
}

func pendingRow(rowNum int, date, slot, location string) models.Row {
	return models.Row{
		RowNum: rowNum,
		Record: models.BookingRecord{
			Date:       date,
			Slot:       slot,
			LocationID: location,
			Club:       "Robotics",
			Event:      "Demo Day",
		},
	}
}

func newTestJob(source *fakeSource, dispatcher *fakeDispatcher, maxRetries int) *Job {
	return New(source, dispatcher, lock.NewMemoryLocker(), events.NewEventBus(), nil, time.Second, maxRetries, time.UTC)
}

func TestRunCycleDispatchesAndMarksSynced(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
	}}
	dispatcher := &fakeDispatcher{}
	job := newTestJob(source, dispatcher, 5)

	require.NoError(t, job.RunCycle(context.Background()))

	require.Equal(t, 1, dispatcher.calls)
	require.Len(t, dispatcher.batches[0], 1)
	rec := dispatcher.batches[0][0]
	assert.Equal(t, "loc_atrium", rec.LocationID)
	assert.Equal(t, "2025-03-01", rec.Date)
	assert.NotEmpty(t, rec.TransactionID)
	assert.False(t, rec.Timestamp.IsZero())

	assert.Equal(t, models.SyncStatusSynced, source.status(2))
	assert.NotEmpty(t, source.transactionID(2))
}

func TestRunCycleIsIdempotent(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
	}}
	dispatcher := &fakeDispatcher{}
	job := newTestJob(source, dispatcher, 5)

	require.NoError(t, job.RunCycle(context.Background()))
	require.NoError(t, job.RunCycle(context.Background()))

	// Second cycle over an unchanged source dispatches nothing.
	assert.Equal(t, 1, dispatcher.calls)
}

func TestTransactionIDStableAcrossFailedDispatch(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
	}}
	dispatcher := &fakeDispatcher{err: &dispatch.Error{StatusCode: 503, Transient: true}}
	job := newTestJob(source, dispatcher, 5)

	require.Error(t, job.RunCycle(context.Background()))
	firstID := source.transactionID(2)
	require.NotEmpty(t, firstID)

	require.Error(t, job.RunCycle(context.Background()))
	assert.Equal(t, firstID, source.transactionID(2))
	assert.Equal(t, 1, source.idWrites, "id must be assigned exactly once")
}

func TestPermanentFailureMarksWholeBatchFailed(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
		pendingRow(3, "2025-03-01", "10-12", "loc_lawn"),
		pendingRow(4, "2025-03-02", "14-16", "loc_audi"),
	}}
	dispatcher := &fakeDispatcher{err: &dispatch.Error{StatusCode: 422, Transient: false}}
	job := newTestJob(source, dispatcher, 5)

	require.Error(t, job.RunCycle(context.Background()))

	for _, rowNum := range []int{2, 3, 4} {
		assert.Equal(t, models.SyncStatusFailed, source.status(rowNum))
	}
}

func TestTransientFailureMarksRetryAndRescans(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
	}}
	dispatcher := &fakeDispatcher{err: &dispatch.Error{StatusCode: 500, Transient: true}}
	job := newTestJob(source, dispatcher, 3)

	require.Error(t, job.RunCycle(context.Background()))
	assert.Equal(t, "RETRY(1)", source.status(2))

	// Still a candidate: next cycle dispatches it again.
	require.Error(t, job.RunCycle(context.Background()))
	assert.Equal(t, 2, dispatcher.calls)
	assert.Equal(t, "RETRY(2)", source.status(2))

	// Budget exhausted on the third attempt.
	require.Error(t, job.RunCycle(context.Background()))
	assert.Equal(t, models.SyncStatusFailed, source.status(2))

	// Terminal: no more dispatches.
	require.NoError(t, job.RunCycle(context.Background()))
	assert.Equal(t, 3, dispatcher.calls)
}

func TestIncompleteRowsAreSkippedSilently(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		{RowNum: 2, Record: models.BookingRecord{Slot: "10-12", LocationID: "loc_atrium"}},   // no date
		{RowNum: 3, Record: models.BookingRecord{Date: "2025-03-01", LocationID: "loc_x"}},   // no slot
		pendingRow(4, "2025-03-01", "10-12", "loc_lawn"),
	}}
	dispatcher := &fakeDispatcher{}
	job := newTestJob(source, dispatcher, 5)

	require.NoError(t, job.RunCycle(context.Background()))

	require.Equal(t, 1, dispatcher.calls)
	require.Len(t, dispatcher.batches[0], 1)
	assert.Equal(t, "loc_lawn", dispatcher.batches[0][0].LocationID)
	assert.Empty(t, source.status(2))
	assert.Empty(t, source.transactionID(2))
}

func TestResolvedRowsAreSkipped(t *testing.T) {
	synced := pendingRow(2, "2025-03-01", "10-12", "loc_atrium")
	synced.Record.Status = models.SyncStatusSynced
	synced.Record.TransactionID = "keep-me"
	failed := pendingRow(3, "2025-03-01", "10-12", "loc_lawn")
	failed.Record.Status = models.SyncStatusFailed

	source := &fakeSource{rows: []models.Row{synced, failed}}
	dispatcher := &fakeDispatcher{}
	job := newTestJob(source, dispatcher, 5)

	require.NoError(t, job.RunCycle(context.Background()))
	assert.Zero(t, dispatcher.calls)
}

func TestHeldLockSkipsCycleWithoutError(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
	}}
	dispatcher := &fakeDispatcher{}

	locker := lock.NewMemoryLocker()
	release, err := locker.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	job := New(source, dispatcher, locker, nil, nil, 50*time.Millisecond, 5, time.UTC)
	require.NoError(t, job.RunCycle(context.Background()))

	assert.Zero(t, dispatcher.calls)
	assert.Empty(t, source.status(2))
}

func TestMissingCredentialTouchesNoRows(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_atrium"),
	}}
	dispatcher := &fakeDispatcher{err: dispatch.ErrNoCredential}
	job := newTestJob(source, dispatcher, 5)

	err := job.RunCycle(context.Background())
	require.ErrorIs(t, err, dispatch.ErrNoCredential)

	// The id was assigned during collection, but no status was written.
	assert.Empty(t, source.status(2))
	assert.Empty(t, source.statusLog)
}

func TestBatchPreservesRowOrder(t *testing.T) {
	source := &fakeSource{rows: []models.Row{
		pendingRow(2, "2025-03-01", "10-12", "loc_a"),
		pendingRow(3, "2025-03-01", "10-12", "loc_b"),
		pendingRow(4, "2025-03-01", "10-12", "loc_c"),
	}}
	dispatcher := &fakeDispatcher{}
	job := newTestJob(source, dispatcher, 5)

	require.NoError(t, job.RunCycle(context.Background()))

	require.Len(t, dispatcher.batches[0], 3)
	assert.Equal(t, "loc_a", dispatcher.batches[0][0].LocationID)
	assert.Equal(t, "loc_b", dispatcher.batches[0][1].LocationID)
	assert.Equal(t, "loc_c", dispatcher.batches[0][2].LocationID)
}
