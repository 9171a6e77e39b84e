package syncjob

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name string
		raw  string
		loc  *time.Location
		want string
	}{
		{"canonical passthrough", "2025-03-01", time.UTC, "2025-03-01"},
		{"us slash format", "03/01/2025", time.UTC, "2025-03-01"},
		{"short slash format", "3/1/2025", time.UTC, "2025-03-01"},
		{"dotted format", "01.03.2025", time.UTC, "2025-03-01"},
		{"rfc3339 converted to zone", "2025-03-01T22:30:00Z", kolkata, "2025-03-02"},
		{"datetime cell", "2025-03-01 09:30:00", time.UTC, "2025-03-01"},
		{"unparseable passthrough", "next tuesday", time.UTC, "next tuesday"},
		{"empty passthrough", "", time.UTC, ""},
		{"nil location defaults to UTC", "2025-03-01", nil, "2025-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.raw, tt.loc)
			if got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
