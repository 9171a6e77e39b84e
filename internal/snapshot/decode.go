package snapshot

import (
	"encoding/json"
	"fmt"

	"venueboard/internal/models"
)

// ErrNotArray is returned when the snapshot body is valid JSON but not
// the expected array of records.
var ErrNotArray = fmt.Errorf("snapshot body is not an array of records")

// Decode parses a snapshot body against the record schema. The body
// must be a JSON array; records missing date, slot, or location_id are
// dropped and counted rather than carried as half-formed entries.
func Decode(body []byte) (records []models.BookingRecord, dropped int, err error) {
	var probe interface{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, 0, fmt.Errorf("parse snapshot: %w", err)
	}
	if _, ok := probe.([]interface{}); !ok {
		return nil, 0, ErrNotArray
	}

	var raw []models.BookingRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode records: %w", err)
	}

	records = make([]models.BookingRecord, 0, len(raw))
	for _, rec := range raw {
		if rec.Date == "" || rec.Slot == "" || rec.LocationID == "" {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped, nil
}
