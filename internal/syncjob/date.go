package syncjob

import (
	"time"

	"venueboard/internal/models"
)

// dateLayouts are the cell formats seen from form-fed sheets, tried in
// order. Date-only layouts dominate; the datetime ones cover cells the
// sheet reformatted.
var dateLayouts = []string{
	models.DateLayout,
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// NormalizeDate renders a source date cell as YYYY-MM-DD in the job's
// timezone. Already-canonical strings pass through unchanged, and so
// does anything unparseable: best effort, not an error.
func NormalizeDate(raw string, loc *time.Location) string {
	if raw == "" {
		return raw
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		if layout == time.RFC3339 {
			t = t.In(loc)
		}
		return t.Format(models.DateLayout)
	}
	return raw
}
