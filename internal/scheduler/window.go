package scheduler

import "time"

// inWindow reports whether now, interpreted in the given IANA timezone,
// falls within the hour range [startHour, endHour). When startHour >
// endHour the window is treated as spanning midnight (e.g. 22-6 covers
// 22:00 through 05:59).
func inWindow(now time.Time, loc *time.Location, startHour, endHour int) bool {
	if loc == nil {
		loc = time.UTC
	}
	hour := now.In(loc).Hour()
	if startHour == endHour {
		return false // an unconfigured (zero-width) window covers no hours.
	}
	if startHour < endHour {
		return hour >= startHour && hour < endHour
	}
	return hour >= startHour || hour < endHour
}

// loadLocation resolves an IANA timezone name, falling back to UTC for
// an empty or unknown name rather than failing the caller.
func loadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
