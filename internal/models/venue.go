package models

// Venue is a bookable zone on the campus map.
type Venue struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// VenueStatus is the reconciled availability of one venue for the
// current date/slot selection.
type VenueStatus struct {
	VenueID  string          `json:"venue_id"`
	Name     string          `json:"name"`
	Status   string          `json:"status"` // AVAILABLE or BOOKED
	Bookings []BookingDetail `json:"bookings,omitempty"`
}

// BookingDetail is the sanitized per-booking view shown for a venue.
type BookingDetail struct {
	Event   string `json:"event"`
	Club    string `json:"club"`
	Slot    string `json:"slot"`
	Summary string `json:"summary"`
}
