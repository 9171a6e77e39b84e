package models

import "time"

// BookingRecord is one confirmed or pending reservation as it travels
// from the tabular source to the published snapshot.
type BookingRecord struct {
	TransactionID string    `json:"transaction_id"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Slot          string    `json:"slot"`
	LocationID    string    `json:"location_id"`
	Club          string    `json:"club"`
	Event         string    `json:"event"`
	Status        string    `json:"status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Complete reports whether the record carries the fields required for
// dispatch. Rows without date or slot are incomplete drafts and are
// skipped rather than treated as errors.
func (r BookingRecord) Complete() bool {
	return r.Date != "" && r.Slot != ""
}

// Row is a BookingRecord still attached to its position in the tabular
// source. RowNum is the source's own handle for the row; for a sheet it
// is the 1-based row number including the header.
type Row struct {
	RowNum int
	Record BookingRecord
}
