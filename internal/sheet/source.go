// Package sheet provides access to the tabular booking source. The
// sync job owns the transaction-id and sync-status columns; everything
// else is written by the intake form and read-only here.
package sheet

import (
	"context"

	"venueboard/internal/models"
)

// Column order of the source, fixed by the intake form.
const (
	ColTimestamp = iota
	ColDate
	ColSlot
	ColLocation
	ColClub
	ColEvent
	ColTransactionID
	ColStatus

	ColumnCount = 8
)

// RowSource is the tabular source the sync job scans and annotates.
type RowSource interface {
	// EnsureHeaders creates the helper column headers once. Idempotent.
	EnsureHeaders(ctx context.Context) error

	// Rows returns every data row beyond the header, in row order.
	Rows(ctx context.Context) ([]models.Row, error)

	// SetTransactionID persists the idempotency key to a row. Must be
	// durable before dispatch so a crash still yields a stable id.
	SetTransactionID(ctx context.Context, rowNum int, id string) error

	// SetStatus writes the same status to every listed row.
	SetStatus(ctx context.Context, rowNums []int, status string) error
}

// Appender accepts new rows; used by the booking pass-through.
type Appender interface {
	Append(ctx context.Context, rec models.BookingRecord) error
}
