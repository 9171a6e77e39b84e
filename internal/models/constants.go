package models

const (
	// Sheet-local sync statuses, written back to the status column.
	// An empty status means the row has never been picked up.
	SyncStatusSynced = "SYNCED"
	SyncStatusFailed = "FAILED"

	// RetryPrefix marks a row whose batch hit a transient dispatch
	// failure; the full cell value is RETRY(n) with n the attempt count.
	RetryPrefix = "RETRY"
)

const (
	// Remote record statuses as published in the snapshot.
	StatusConfirmed = "CONFIRMED"
	StatusPending   = "PENDING"
)

const (
	// Venue availability as reconciled on the board.
	VenueAvailable = "AVAILABLE"
	VenueBooked    = "BOOKED"
)

const (
	// EventTypeBatch is the discriminator for a batched dispatch.
	EventTypeBatch = "batch_booking"

	// EventTypeSingle is the discriminator for a single-record dispatch.
	EventTypeSingle = "new_booking"
)

const (
	// DateLayout is the canonical calendar date format everywhere.
	DateLayout = "2006-01-02"

	// LockWaitSeconds is how long an invocation waits for the sync
	// lock before skipping the cycle.
	LockWaitSeconds = 30

	// DefaultPollIntervalSeconds is the board's snapshot refresh period.
	DefaultPollIntervalSeconds = 30

	// DefaultMaxDispatchRetries bounds transient-failure redelivery of
	// a row before it is marked FAILED for good.
	DefaultMaxDispatchRetries = 5

	// DefaultClubDailyLimit caps slots per club per day on the booking
	// pass-through.
	DefaultClubDailyLimit = 2
)
