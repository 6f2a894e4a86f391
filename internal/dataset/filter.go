package dataset

import (
	"sort"
	"time"

	"webtraffic/internal/models"
)

// DateOnly drops the time of day, keeping the calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filter returns a new, date-sorted slice with the observations whose date
// falls within [start, end]. Only the calendar dates of start and end are
// considered. An inverted range fails with *InvalidRangeError before any
// row is inspected; the input slice is never modified.
func Filter(observations []models.Observation, start, end time.Time) ([]models.Observation, error) {
	start, end = DateOnly(start), DateOnly(end)
	if start.After(end) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}

	out := make([]models.Observation, 0, len(observations))
	for _, o := range observations {
		date := DateOnly(o.Date)
		if date.Before(start) || date.After(end) {
			continue
		}
		out = append(out, o)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date.Before(out[b].Date)
	})
	return out, nil
}
