// Package timeutil provides learner-local time utilities. Streaks,
// daily rollups, and quiet hours all work on the learner's calendar
// day, not the server's, so every helper takes or resolves a timezone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DefaultTimezone is the platform default; most learners are in Thailand.
const DefaultTimezone = "Asia/Bangkok"

// BangkokTZ is the default timezone (UTC+7, no DST).
var BangkokTZ = time.FixedZone("Asia/Bangkok", 7*60*60)

// LoadLocation resolves an IANA name, falling back to Bangkok on an
// unknown or empty name rather than erroring: a bad stored timezone
// must never break streak accounting.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return BangkokTZ
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return BangkokTZ
	}
	return loc
}

// Now returns the current time in the default timezone.
func Now() time.Time {
	return time.Now().In(BangkokTZ)
}

// In converts a time to the named timezone.
func In(t time.Time, tz string) time.Time {
	return t.In(LoadLocation(tz))
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ─────────────────────────────────────────────────────────────────────────────
// Local days
// ─────────────────────────────────────────────────────────────────────────────

// DayLayout is the canonical local-day key format.
const DayLayout = "2006-01-02"

// LocalDay returns the learner-local calendar day key for a time.
func LocalDay(t time.Time, tz string) string {
	return t.In(LoadLocation(tz)).Format(DayLayout)
}

// StartOfDay returns midnight of t's day in the given timezone.
func StartOfDay(t time.Time, tz string) time.Time {
	loc := LoadLocation(tz)
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last nanosecond of t's day in the timezone.
func EndOfDay(t time.Time, tz string) time.Time {
	return StartOfDay(t, tz).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// NextMidnight returns the first instant of the following local day.
func NextMidnight(t time.Time, tz string) time.Time {
	return StartOfDay(t, tz).AddDate(0, 0, 1)
}

// DaysBetween counts whole local days from a to b (negative when b is
// earlier). Consecutive days return 1 regardless of clock times.
func DaysBetween(a, b time.Time, tz string) int {
	sa := StartOfDay(a, tz)
	sb := StartOfDay(b, tz)
	return int(sb.Sub(sa).Hours() / 24)
}

// SameLocalDay reports whether two instants fall on one calendar day.
func SameLocalDay(a, b time.Time, tz string) bool {
	return LocalDay(a, tz) == LocalDay(b, tz)
}

// ParseDay parses a local-day key back into midnight of that day.
func ParseDay(day, tz string) (time.Time, error) {
	loc := LoadLocation(tz)
	t, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse day %q: %w", day, err)
	}
	return t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Quiet hours
// ─────────────────────────────────────────────────────────────────────────────

// InQuietHours reports whether the local hour of t falls inside the
// [start, end) window. The window may wrap midnight (22 -> 7); equal
// start and end means quiet hours are disabled.
func InQuietHours(t time.Time, tz string, start, end int) bool {
	if start == end {
		return false
	}
	hour := t.In(LoadLocation(tz)).Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// QuietHoursEnd returns the next instant the quiet window [start, end)
// closes, for rescheduling deferred notifications. Returns t unchanged
// when t is outside the window.
func QuietHoursEnd(t time.Time, tz string, start, end int) time.Time {
	if !InQuietHours(t, tz, start, end) {
		return t
	}
	loc := LoadLocation(tz)
	local := t.In(loc)
	endToday := time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, loc)
	if !endToday.After(local) {
		endToday = endToday.AddDate(0, 0, 1)
	}
	return endToday
}

// ─────────────────────────────────────────────────────────────────────────────
// Formatting
// ─────────────────────────────────────────────────────────────────────────────

// FormatLocal formats a time in the named timezone.
func FormatLocal(t time.Time, tz, layout string) string {
	return t.In(LoadLocation(tz)).Format(layout)
}

// FormatRelative renders a human-friendly distance ("2h ago").
func FormatRelative(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 0:
		return formatFutureDuration(-d)
	case d < time.Minute:
		return "just now"
	default:
		return formatPastDuration(d)
	}
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/(24*30)))
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "in a moment"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}
