package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation_Fallback(t *testing.T) {
	assert.Equal(t, BangkokTZ, LoadLocation(""))
	assert.Equal(t, BangkokTZ, LoadLocation("Mars/Olympus_Mons"))
}

func TestLocalDay_TimezoneBoundary(t *testing.T) {
	// 2026-08-30 22:30 UTC is already the 31st in Bangkok (UTC+7).
	utc := time.Date(2026, 8, 30, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-08-31", LocalDay(utc, "Asia/Bangkok"))
	assert.Equal(t, "2026-08-30", LocalDay(utc, "UTC"))
}

func TestDaysBetween(t *testing.T) {
	tz := "Asia/Bangkok"
	// 23:50 and 00:10 the next local day are one day apart.
	a := time.Date(2026, 8, 30, 23, 50, 0, 0, BangkokTZ)
	b := time.Date(2026, 8, 31, 0, 10, 0, 0, BangkokTZ)

	assert.Equal(t, 1, DaysBetween(a, b, tz))
	assert.Equal(t, -1, DaysBetween(b, a, tz))
	assert.Equal(t, 0, DaysBetween(a, a.Add(5*time.Minute), tz))
}

func TestSameLocalDay(t *testing.T) {
	a := time.Date(2026, 8, 30, 1, 0, 0, 0, BangkokTZ)
	b := time.Date(2026, 8, 30, 23, 0, 0, 0, BangkokTZ)
	assert.True(t, SameLocalDay(a, b, "Asia/Bangkok"))
	assert.False(t, SameLocalDay(a, b.Add(2*time.Hour), "Asia/Bangkok"))
}

func TestParseDay_RoundTrip(t *testing.T) {
	got, err := ParseDay("2026-08-30", "Asia/Bangkok")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", LocalDay(got, "Asia/Bangkok"))
	assert.Zero(t, got.Hour())

	_, err = ParseDay("30/08/2026", "Asia/Bangkok")
	assert.Error(t, err)
}

func TestInQuietHours(t *testing.T) {
	tz := "Asia/Bangkok"
	at := func(hour int) time.Time {
		return time.Date(2026, 8, 30, hour, 30, 0, 0, BangkokTZ)
	}

	// Plain window 13-15.
	assert.True(t, InQuietHours(at(13), tz, 13, 15))
	assert.False(t, InQuietHours(at(15), tz, 13, 15))

	// Wrapping window 22-7 covers late night and early morning.
	assert.True(t, InQuietHours(at(23), tz, 22, 7))
	assert.True(t, InQuietHours(at(3), tz, 22, 7))
	assert.False(t, InQuietHours(at(12), tz, 22, 7))

	// Equal start and end disables the window.
	assert.False(t, InQuietHours(at(22), tz, 22, 22))
}

func TestQuietHoursEnd(t *testing.T) {
	tz := "Asia/Bangkok"

	// 23:30 inside a 22-7 window defers to 07:00 the next day.
	late := time.Date(2026, 8, 30, 23, 30, 0, 0, BangkokTZ)
	end := QuietHoursEnd(late, tz, 22, 7)
	assert.Equal(t, 7, end.In(BangkokTZ).Hour())
	assert.Equal(t, 31, end.In(BangkokTZ).Day())

	// 03:00 defers to 07:00 the same day.
	early := time.Date(2026, 8, 31, 3, 0, 0, 0, BangkokTZ)
	end = QuietHoursEnd(early, tz, 22, 7)
	assert.Equal(t, 7, end.In(BangkokTZ).Hour())
	assert.Equal(t, 31, end.In(BangkokTZ).Day())

	// Outside the window: unchanged.
	noon := time.Date(2026, 8, 31, 12, 0, 0, 0, BangkokTZ)
	assert.Equal(t, noon, QuietHoursEnd(noon, tz, 22, 7))
}

func TestStartEndOfDay(t *testing.T) {
	at := time.Date(2026, 8, 30, 15, 45, 12, 0, BangkokTZ)

	start := StartOfDay(at, "Asia/Bangkok")
	assert.Zero(t, start.Hour())
	assert.Equal(t, 30, start.Day())

	end := EndOfDay(at, "Asia/Bangkok")
	assert.Equal(t, 23, end.Hour())

	next := NextMidnight(at, "Asia/Bangkok")
	assert.Equal(t, 31, next.Day())
	assert.Zero(t, next.Hour())
}
