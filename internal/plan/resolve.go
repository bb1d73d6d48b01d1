package plan

import (
	"strings"
	"time"
)

// Resolver maps wall-clock instants onto day buckets and fractional hours of
// a display location. Day 0 is the local date of the origin.
type Resolver struct {
	loc    *time.Location
	origin time.Time
}

// NewResolver anchors day 0 at the local midnight of start. A nil location
// means time.Local.
func NewResolver(loc *time.Location, start time.Time) Resolver {
	if loc == nil {
		loc = time.Local
	}
	return Resolver{loc: loc, origin: midnight(start.In(loc))}
}

// Location is the display location.
func (r Resolver) Location() *time.Location {
	return r.loc
}

// Origin is the local midnight of day 0.
func (r Resolver) Origin() time.Time {
	return r.origin
}

// Midnight returns the local start of a day bucket. DST days are 23 or 25
// hours long; calendar arithmetic keeps midnights aligned.
func (r Resolver) Midnight(day int) time.Time {
	return r.origin.AddDate(0, 0, day)
}

// Day returns the bucket of t's local date; negative before the origin.
func (r Resolver) Day(t time.Time) int {
	lt := t.In(r.loc)
	a := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(r.origin.Year(), r.origin.Month(), r.origin.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// Hour returns the local time of day of t as fractional hours (9.5 = 09:30).
func (r Resolver) Hour(t time.Time) float64 {
	lt := t.In(r.loc)
	return float64(lt.Hour()) + float64(lt.Minute())/60 + float64(lt.Second())/3600
}

// Resolve is Day and Hour in one call.
func (r Resolver) Resolve(t time.Time) (int, float64) {
	return r.Day(t), r.Hour(t)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the local midnight of the first day of t's week.
// weekStart is "monday" or "sunday"; anything else means monday.
func StartOfWeek(t time.Time, loc *time.Location, weekStart string) time.Time {
	if loc == nil {
		loc = time.Local
	}
	first := time.Monday
	if strings.EqualFold(weekStart, "sunday") {
		first = time.Sunday
	}
	day := midnight(t.In(loc))
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
