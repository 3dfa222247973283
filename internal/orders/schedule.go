package orders

import (
	"time"
)

// A branch schedule row: one per day-of-week, HH:MM:SS strings.
// (00:00:00, 23:59:59) is the 24h-open sentinel.
type ScheduleWindow struct {
	Opening  string
	Closing  string
	IsClosed bool
}

func (w ScheduleWindow) IsAlwaysOpen() bool {
	return !w.IsClosed && w.Opening == "00:00:00" && w.Closing == "23:59:59"
}

// IsOpenAt reports whether the branch accepts orders at the given local time.
// Comparison is at second precision over the half-open interval [open, close).
func (w ScheduleWindow) IsOpenAt(local time.Time) bool {
	if w.IsClosed {
		return false
	}
	if w.IsAlwaysOpen() {
		return true
	}

	open, okOpen := secondsOfDay(w.Opening)
	close, okClose := secondsOfDay(w.Closing)
	if !okOpen || !okClose || open >= close {
		return false
	}

	now := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return now >= open && now < close
}

func secondsOfDay(hhmmss string) (int, bool) {
	t, err := time.Parse("15:04:05", hhmmss)
	if err != nil {
		// Tolerate HH:MM rows.
		t, err = time.Parse("15:04", hhmmss)
		if err != nil {
			return 0, false
		}
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
}

// BranchLocalTime resolves the branch's wall clock; an empty or unknown
// timezone falls back to UTC.
func BranchLocalTime(timezone string, at time.Time) time.Time {
	if timezone == "" {
		return at.UTC()
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return at.UTC()
	}
	return at.In(loc)
}
