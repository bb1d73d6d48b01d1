// Package allday packs all-day and multi-day events into horizontal rows
// above the day columns.
package allday

import "sort"

// Span covers the day buckets [StartDay, EndDay). EndDay <= StartDay is
// treated as a single day.
type Span struct {
	ID       string
	StartDay int
	EndDay   int
}

func (s Span) length() int {
	return s.EndDay - s.StartDay
}

// Placement is a span assigned to a row; row 0 is the top row.
type Placement struct {
	ID       string `json:"id"`
	Row      int    `json:"row"`
	StartDay int    `json:"startDay"`
	EndDay   int    `json:"endDay"`
}

// Pack assigns every span to the first row where it fits. Spans are visited
// by start day, then longer first, then id, so the result does not depend on
// input order. It returns the placements in that order and the row count.
func Pack(spans []Span) ([]Placement, int) {
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.EndDay <= s.StartDay {
			s.EndDay = s.StartDay + 1
		}
		sorted = append(sorted, s)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		x, y := sorted[i], sorted[j]
		if x.StartDay != y.StartDay {
			return x.StartDay < y.StartDay
		}
		if x.length() != y.length() {
			return x.length() > y.length()
		}
		return x.ID < y.ID
	})

	// rowEnd[r] is the first free day of row r.
	var rowEnd []int
	out := make([]Placement, 0, len(sorted))
	for _, s := range sorted {
		row := -1
		for r, end := range rowEnd {
			if end <= s.StartDay {
				row = r
				break
			}
		}
		if row == -1 {
			row = len(rowEnd)
			rowEnd = append(rowEnd, 0)
		}
		rowEnd[row] = s.EndDay
		out = append(out, Placement{ID: s.ID, Row: row, StartDay: s.StartDay, EndDay: s.EndDay})
	}
	return out, len(rowEnd)
}
