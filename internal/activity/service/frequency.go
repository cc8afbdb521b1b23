package service

import (
	"time"

	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
)

// window is a half-open completion range; nil bounds are open.
type window struct {
	from *time.Time
	to   *time.Time
}

// frequencyWindow returns the range in which an earlier completion blocks a
// new one. Only daily activities are gated unless strict is set, in which
// case weekly uses the ISO week, monthly the calendar month and once the
// user's whole history. Calendar boundaries are taken in loc.
func frequencyWindow(freq catalogdomain.Frequency, now time.Time, loc *time.Location, strict bool) (window, bool) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch freq {
	case catalogdomain.FrequencyDaily:
		return bounded(midnight, midnight.AddDate(0, 0, 1)), true
	case catalogdomain.FrequencyWeekly:
		if !strict {
			return window{}, false
		}
		offset := (int(midnight.Weekday()) + 6) % 7
		start := midnight.AddDate(0, 0, -offset)
		return bounded(start, start.AddDate(0, 0, 7)), true
	case catalogdomain.FrequencyMonthly:
		if !strict {
			return window{}, false
		}
		start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		return bounded(start, start.AddDate(0, 1, 0)), true
	case catalogdomain.FrequencyOnce:
		if !strict {
			return window{}, false
		}
		return window{}, true
	default:
		return window{}, false
	}
}

func bounded(from, to time.Time) window {
	f, t := from.UTC(), to.UTC()
	return window{from: &f, to: &t}
}
