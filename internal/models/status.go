package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolved reports whether a sheet-local status is terminal. Resolved
// rows are never picked up again; anything else, including RETRY(n),
// stays a candidate for the next cycle.
func Resolved(status string) bool {
	return status == SyncStatusSynced || status == SyncStatusFailed
}

// FormatRetry renders the status cell value for attempt n.
func FormatRetry(n int) string {
	return fmt.Sprintf("%s(%d)", RetryPrefix, n)
}

// ParseRetry extracts the attempt count from a RETRY(n) status cell.
// Returns 0, false for anything that is not a retry marker.
func ParseRetry(status string) (int, bool) {
	status = strings.TrimSpace(status)
	if !strings.HasPrefix(status, RetryPrefix+"(") || !strings.HasSuffix(status, ")") {
		return 0, false
	}
	inner := status[len(RetryPrefix)+1 : len(status)-1]
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
