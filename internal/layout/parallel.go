package layout

import (
	"math"
	"sort"
)

// parallelGroup is a cluster of events judged to start together. start/end
// are the min start and max end across members.
type parallelGroup struct {
	members []int
	start   float64
	end     float64
}

// sortedByStart returns members ordered by start ascending, longer first on
// equal starts, then encounter order.
func (a *arena) sortedByStart(members []int) []int {
	out := append([]int(nil), members...)
	sort.SliceStable(out, func(i, j int) bool {
		x, y := &a.nodes[out[i]], &a.nodes[out[j]]
		if x.start != y.start {
			return x.start < y.start
		}
		if x.duration() != y.duration() {
			return x.duration() > y.duration()
		}
		return x.order < y.order
	})
	return out
}

// parallelGroups clusters an overlap group by start time. Each unclaimed
// event seeds a group and absorbs every other unclaimed event within
// ParallelThreshold of the seed's start (not of other members).
func (a *arena) parallelGroups(group []int) []parallelGroup {
	sorted := a.sortedByStart(group)
	claimed := make(map[int]bool, len(sorted))
	var out []parallelGroup

	for _, seed := range sorted {
		if claimed[seed] {
			continue
		}
		claimed[seed] = true
		pg := parallelGroup{members: []int{seed}}

		for _, other := range sorted {
			if claimed[other] {
				continue
			}
			if a.startGap(seed, other) <= a.cfg.ParallelThreshold+thresholdEpsilon {
				claimed[other] = true
				pg.members = append(pg.members, other)
			}
		}

		sort.SliceStable(pg.members, func(i, j int) bool {
			return a.nodes[pg.members[i]].start < a.nodes[pg.members[j]].start
		})
		pg.start, pg.end = math.Inf(1), math.Inf(-1)
		for _, m := range pg.members {
			pg.start = math.Min(pg.start, a.nodes[m].start)
			pg.end = math.Max(pg.end, a.nodes[m].end)
		}
		out = append(out, pg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].start < out[j].start
	})
	return out
}
