package scheduler

import (
	"testing"
	"time"
)

func TestInWindowSimpleRange(t *testing.T) {
	loc := time.UTC
	at := func(hour int) time.Time { return time.Date(2026, 1, 1, hour, 0, 0, 0, loc) }

	if !inWindow(at(10), loc, 9, 17) {
		t.Error("10:00 should be inside 9-17")
	}
	if inWindow(at(18), loc, 9, 17) {
		t.Error("18:00 should be outside 9-17")
	}
}

func TestInWindowMidnightWrap(t *testing.T) {
	loc := time.UTC
	at := func(hour int) time.Time { return time.Date(2026, 1, 1, hour, 0, 0, 0, loc) }

	if !inWindow(at(23), loc, 22, 6) {
		t.Error("23:00 should be inside a 22-6 wrapping window")
	}
	if !inWindow(at(3), loc, 22, 6) {
		t.Error("03:00 should be inside a 22-6 wrapping window")
	}
	if inWindow(at(12), loc, 22, 6) {
		t.Error("12:00 should be outside a 22-6 wrapping window")
	}
}

func TestInWindowZeroWidthIsEmpty(t *testing.T) {
	loc := time.UTC
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, loc)
	if inWindow(at, loc, 0, 0) {
		t.Error("an unconfigured window should never report containment")
	}
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	if got := loadLocation("Not/A_Real_Zone"); got != time.UTC {
		t.Errorf("loadLocation(invalid) = %v, want UTC", got)
	}
	if got := loadLocation(""); got != time.UTC {
		t.Errorf("loadLocation(\"\") = %v, want UTC", got)
	}
}
