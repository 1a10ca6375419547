package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldreport/reporting-api/internal/core/domain"
)

const timeOfDayLayout = "15:04:05"

// Browsers send <input type="time"> values without seconds.
var acceptedTimeLayouts = []string{timeOfDayLayout, "15:04"}

// NormalizeTimeOfDay reads raw as a UTC wall-clock time anchored on
// 1970-01-01, converts it into loc and formats it as HH:MM:SS. The result
// does not depend on the host time zone.
func NormalizeTimeOfDay(raw string, loc *time.Location) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewValidationError("time", "time is required")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range acceptedTimeLayouts {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err != nil {
			continue
		}
		anchored := time.Date(1970, time.January, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		return anchored.In(loc).Format(timeOfDayLayout), nil
	}

	return "", domain.NewValidationError("time", fmt.Sprintf("invalid time format: %s", raw))
}

// civilDay returns the half-open [start, end) interval of the calendar day
// containing now in loc.
func civilDay(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
