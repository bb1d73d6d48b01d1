// Package layout decides where timed calendar events are drawn in a day
// column: horizontal offset, width, stacking order and nesting indent.
//
// The pipeline runs per day bucket and per overlap group:
//
//  1. normalize events into an index-based arena (all-day events are skipped)
//  2. split the day into connected components of overlapping events
//  3. cluster each component into parallel groups by start time
//  4. nest later groups under the nearest earlier group that contains them
//  5. move leaves between equally deep branches whose sizes drift apart
//  6. walk each tree and turn depth and siblings into boxes
//
// Every call is a pure function of its input: nothing is cached between
// calls, so the engine can be invoked on every drag frame.
package layout

// Stats describes the work done by one Compute call.
type Stats struct {
	Events         int `json:"events"`
	Days           int `json:"days"`
	Groups         int `json:"groups"`
	ParallelGroups int `json:"parallel_groups"`
	Roots          int `json:"roots"`
	Transfers      int `json:"transfers"`
}

// Result maps event id to its layout. Each timed input event has exactly one
// entry; when ids repeat, the last event wins.
type Result struct {
	Layouts map[string]EventLayout
	Stats   Stats
}

// Compute lays out the timed events of events. Events on different Day
// buckets never influence each other.
func Compute(events []Event, cfg Config) Result {
	cfg = cfg.Normalize()
	a := newArena(events, cfg)

	res := Result{
		Layouts: make(map[string]EventLayout, len(a.nodes)),
	}
	res.Stats.Events = len(a.nodes)

	for _, day := range a.dayBuckets() {
		res.Stats.Days++
		for _, group := range a.overlapGroups(day) {
			res.Stats.Groups++
			if len(group) == 1 {
				res.Stats.ParallelGroups++
				res.Stats.Roots++
				a.placeRoots(group, res.Layouts)
				continue
			}

			groups := a.parallelGroups(group)
			roots := a.buildStructure(groups)

			var members []int
			for _, g := range groups {
				members = append(members, g.members...)
			}
			res.Stats.Transfers += a.rebalance(groups, members)
			res.Stats.ParallelGroups += len(groups)
			res.Stats.Roots += len(roots)

			a.placeRoots(roots, res.Layouts)
		}
	}
	return res
}

// Layouts is Compute without the stats.
func Layouts(events []Event, cfg Config) map[string]EventLayout {
	return Compute(events, cfg).Layouts
}

// LayoutFor computes a hypothetical layout and returns the entry of one
// event, e.g. for previewing a drag before it is committed.
func LayoutFor(events []Event, id string, cfg Config) (EventLayout, bool) {
	l, ok := Compute(events, cfg).Layouts[id]
	return l, ok
}
