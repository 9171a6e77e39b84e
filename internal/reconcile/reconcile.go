// Package reconcile computes per-venue availability from a snapshot
// and the viewer's selection. It is pure: no prior visual state is
// consulted, and the same inputs always produce the same output.
package reconcile

import (
	"fmt"
	"html"

	"venueboard/internal/models"
)

// Selection is the viewer's current date and slot.
type Selection struct {
	Date string
	Slot string
}

// Reconcile returns the full per-venue status set for the selection.
// A venue is BOOKED when at least one record matches it; everything
// else is AVAILABLE. Total and idempotent by construction.
func Reconcile(snapshot []models.BookingRecord, sel Selection, venues []models.Venue) []models.VenueStatus {
	out := make([]models.VenueStatus, 0, len(venues))
	for _, venue := range venues {
		status := models.VenueStatus{
			VenueID: venue.ID,
			Name:    venue.Name,
			Status:  models.VenueAvailable,
		}

		for _, rec := range snapshot {
			if !Matches(rec, venue.ID, sel) {
				continue
			}
			status.Status = models.VenueBooked
			status.Bookings = append(status.Bookings, Detail(rec))
		}

		out = append(out, status)
	}
	return out
}

// Matches reports whether a record books the venue for the selection.
// Records carrying an explicit status count only when CONFIRMED; the
// sync path publishes without a status, and those count as booked.
func Matches(rec models.BookingRecord, venueID string, sel Selection) bool {
	if rec.LocationID != venueID || rec.Date != sel.Date || rec.Slot != sel.Slot {
		return false
	}
	return rec.Status == "" || rec.Status == models.StatusConfirmed
}

// Detail builds the sanitized per-booking view. Club and event text
// originate from an untrusted form; they are rendered as text only.
func Detail(rec models.BookingRecord) models.BookingDetail {
	event := Sanitize(rec.Event)
	club := Sanitize(rec.Club)
	if event == "" {
		event = "Private Event"
	}
	if club == "" {
		club = "Campus Organization"
	}

	return models.BookingDetail{
		Event:   event,
		Club:    club,
		Slot:    rec.Slot,
		Summary: fmt.Sprintf("%s | Organized by: %s", event, club),
	}
}

// Sanitize neutralizes markup in user-originated display strings.
func Sanitize(s string) string {
	return html.EscapeString(s)
}
