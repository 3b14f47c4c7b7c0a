// Package civil provides calendar-day arithmetic in the platform's billing
// timezone. Quota rollover and the daily reset are defined by the civil
// calendar in America/Sao_Paulo, never by elapsed wall-clock hours.
package civil

import (
	"time"
	_ "time/tzdata"
)

// Timezone is the fixed regional timezone for all day-boundary decisions.
const Timezone = "America/Sao_Paulo"

// Location is the loaded billing timezone.
var Location = mustLoadLocation()

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		panic("civil: " + err.Error())
	}
	return loc
}

// SameDay reports whether a and b fall on the same calendar date in the
// billing timezone.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(Location).Date()
	by, bm, bd := b.In(Location).Date()
	return ay == by && am == bm && ad == bd
}

// DaysUntil returns the number of whole or partial days remaining until t,
// rounded up. A deadline one second away counts as one day; a deadline in
// the past yields zero or a negative value.
func DaysUntil(t, now time.Time) int {
	d := t.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// StartOfDay returns the first instant of now's calendar day in the billing
// timezone.
func StartOfDay(now time.Time) time.Time {
	local := now.In(Location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Location)
}

// NextMidnight returns the first instant of the next calendar day in the
// billing timezone.
func NextMidnight(now time.Time) time.Time {
	local := now.In(Location)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, Location)
}
