// Package plan turns expanded occurrences into a rendered calendar range:
// timed events are split per day and laid out by the layout engine, all-day
// events are packed into rows.
package plan

import (
	"sort"
	"strings"
	"time"

	"calgrid/internal/allday"
	"calgrid/internal/layout"
	"calgrid/internal/model"
)

const hoursPerDay = 24.0

// Options selects the planned range and the engine settings.
type Options struct {
	// Start is any instant of the first day; it is truncated to local midnight.
	Start time.Time
	// Days is the number of day buckets. Values below 1 mean 1.
	Days     int
	Location *time.Location
	Layout   layout.Config
	// Highlight marks events whose summary contains any keyword (case-insensitive).
	Highlight []string
}

// PlacedEvent is one per-day segment of a timed occurrence.
type PlacedEvent struct {
	ID         string             `json:"id"`
	Occurrence model.Occurrence   `json:"occurrence"`
	Day        int                `json:"day"`
	StartHour  float64            `json:"startHour"`
	EndHour    float64            `json:"endHour"`
	Continued  bool               `json:"continued,omitempty"` // started on an earlier day
	Continues  bool               `json:"continues,omitempty"` // ends on a later day
	Highlight  bool               `json:"highlight,omitempty"`
	Layout     layout.EventLayout `json:"layout"`
}

// DayPlan is one day column.
type DayPlan struct {
	Date   time.Time     `json:"date"`
	Index  int           `json:"index"`
	Events []PlacedEvent `json:"events"`
}

// AllDayEvent is an all-day occurrence clipped to the range and given a row.
type AllDayEvent struct {
	allday.Placement
	Occurrence model.Occurrence `json:"occurrence"`
	Highlight  bool             `json:"highlight,omitempty"`
}

// Plan is the complete layout of a date range.
type Plan struct {
	Start      time.Time     `json:"start"`
	Days       []DayPlan     `json:"days"`
	AllDay     []AllDayEvent `json:"allDay"`
	AllDayRows int           `json:"allDayRows"`
	Stats      layout.Stats  `json:"stats"`
}

// Build plans occurrences over the range in opts. Occurrences that do not
// touch the range are dropped; the input is not modified.
func Build(occurrences []model.Occurrence, opts Options) Plan {
	if opts.Days < 1 {
		opts.Days = 1
	}
	res := NewResolver(opts.Location, opts.Start)

	p := Plan{
		Start: res.Origin(),
		Days:  make([]DayPlan, opts.Days),
	}
	for d := range p.Days {
		p.Days[d] = DayPlan{Date: res.Midnight(d), Index: d}
	}

	perDay := make([][]PlacedEvent, opts.Days)
	var spans []allday.Span
	allDayByKey := make(map[string]model.Occurrence)

	for _, occ := range occurrences {
		if occ.AllDay {
			span, ok := allDaySpan(res, occ, opts.Days)
			if !ok {
				continue
			}
			spans = append(spans, span)
			allDayByKey[span.ID] = occ
			continue
		}
		for _, seg := range segments(res, occ, opts.Days) {
			seg.Highlight = matches(occ.Summary, opts.Highlight)
			perDay[seg.Day] = append(perDay[seg.Day], seg)
		}
	}

	for d, segs := range perDay {
		if len(segs) == 0 {
			continue
		}
		events := make([]layout.Event, len(segs))
		for i, s := range segs {
			events[i] = layout.Event{ID: s.ID, Day: d, StartHour: s.StartHour, EndHour: s.EndHour}
		}
		out := layout.Compute(events, opts.Layout)
		addStats(&p.Stats, out.Stats)

		for i := range segs {
			segs[i].Layout = out.Layouts[segs[i].ID]
		}
		sort.SliceStable(segs, func(i, j int) bool {
			if segs[i].StartHour != segs[j].StartHour {
				return segs[i].StartHour < segs[j].StartHour
			}
			return segs[i].ID < segs[j].ID
		})
		p.Days[d].Events = segs
	}

	placements, rows := allday.Pack(spans)
	p.AllDayRows = rows
	for _, pl := range placements {
		occ := allDayByKey[pl.ID]
		p.AllDay = append(p.AllDay, AllDayEvent{
			Placement:  pl,
			Occurrence: occ,
			Highlight:  matches(occ.Summary, opts.Highlight),
		})
	}
	return p
}

// segments clips a timed occurrence into per-day pieces inside [0, days).
// A piece ending at midnight ends at hour 24 of its day.
func segments(res Resolver, occ model.Occurrence, days int) []PlacedEvent {
	end := occ.End
	if end.Before(occ.Start) {
		end = occ.Start
	}
	firstDay, startHour := res.Resolve(occ.Start)
	lastDay, endHour := res.Resolve(end)
	if lastDay > firstDay && endHour == 0 {
		lastDay--
		endHour = hoursPerDay
	}

	var out []PlacedEvent
	for d := max(firstDay, 0); d <= lastDay && d < days; d++ {
		seg := PlacedEvent{
			ID:         occ.Key(),
			Occurrence: occ,
			Day:        d,
			StartHour:  0,
			EndHour:    hoursPerDay,
			Continued:  d > firstDay,
			Continues:  d < lastDay,
		}
		if d == firstDay {
			seg.StartHour = startHour
		}
		if d == lastDay {
			seg.EndHour = endHour
		}
		out = append(out, seg)
	}
	return out
}

// allDaySpan converts an all-day occurrence to day buckets clipped to range.
func allDaySpan(res Resolver, occ model.Occurrence, days int) (allday.Span, bool) {
	start := res.Day(occ.Start)
	end := res.Day(occ.End)
	if res.Hour(occ.End) > 0 {
		end++
	}
	if end <= start {
		end = start + 1
	}
	if end <= 0 || start >= days {
		return allday.Span{}, false
	}
	return allday.Span{ID: occ.Key(), StartDay: max(start, 0), EndDay: min(end, days)}, true
}

func matches(summary string, keywords []string) bool {
	s := strings.ToLower(summary)
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func addStats(dst *layout.Stats, s layout.Stats) {
	dst.Events += s.Events
	dst.Days += s.Days
	dst.Groups += s.Groups
	dst.ParallelGroups += s.ParallelGroups
	dst.Roots += s.Roots
	dst.Transfers += s.Transfers
}
