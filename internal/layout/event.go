package layout

import "math"

// Event is the engine input: an identity, a day bucket and the start/end
// already resolved to fractional hours of that day (9.5 = 09:30).
type Event struct {
	ID        string
	Day       int
	StartHour float64
	EndHour   float64
	AllDay    bool
}

// Duration returns the event length in hours, never negative.
func (e Event) Duration() float64 {
	return math.Max(0, e.EndHour-e.StartHour)
}

const noNode = -1

// node is a normalized event together with its tree links. Nodes live in an
// arena slice and refer to each other by index only.
type node struct {
	id    string
	day   int
	start float64
	end   float64
	order int

	parent   int
	children []int
	depth    int

	// processed marks a leaf moved by the rebalancer; its indent is taken
	// from branchRoot instead of its own depth.
	processed  bool
	branchRoot int
}

func (n *node) duration() float64 {
	return n.end - n.start
}

// arena owns every node of one Compute call.
type arena struct {
	cfg   Config
	nodes []node
}

// newArena normalizes the timed events of the input. All-day events are
// skipped; they are packed by a separate row packer.
func newArena(events []Event, cfg Config) *arena {
	a := &arena{
		cfg:   cfg,
		nodes: make([]node, 0, len(events)),
	}
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		start := finiteOrZero(ev.StartHour)
		end := finiteOrZero(ev.EndHour)
		if end < start {
			end = start
		}
		a.nodes = append(a.nodes, node{
			id:         ev.ID,
			day:        ev.Day,
			start:      start,
			end:        end,
			order:      len(a.nodes),
			parent:     noNode,
			depth:      0,
			branchRoot: noNode,
		})
	}
	return a
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// overlaps uses half-open intervals: touching endpoints do not overlap.
func (a *arena) overlaps(i, j int) bool {
	x, y := &a.nodes[i], &a.nodes[j]
	if x.day != y.day {
		return false
	}
	return x.start < y.end && y.start < x.end
}

func (a *arena) startGap(i, j int) float64 {
	return math.Abs(a.nodes[i].start - a.nodes[j].start)
}

// canContain reports whether parent p may hold child c: p encloses c, or p
// overlaps c and starts no later than it.
func (a *arena) canContain(p, c int) bool {
	pn, cn := &a.nodes[p], &a.nodes[c]
	if pn.day != cn.day {
		return false
	}
	if pn.start <= cn.start && pn.end >= cn.end {
		return true
	}
	return a.overlaps(p, c) && pn.start <= cn.start
}

// shouldBeParallel decides whether two overlapping events are drawn side by
// side rather than nested.
func (a *arena) shouldBeParallel(i, j int) bool {
	if !a.overlaps(i, j) {
		return false
	}
	gap := a.startGap(i, j)
	if gap <= a.cfg.ParallelThreshold+thresholdEpsilon {
		return true
	}
	if gap > a.cfg.ParallelThreshold && gap < a.cfg.NestedThreshold-thresholdEpsilon {
		return true
	}
	return a.startsLateInExtended(i, j) || a.startsLateInExtended(j, i)
}

// startsLateInExtended reports whether other starts after the configured
// fraction of ext's span has elapsed, ext being an extended event.
func (a *arena) startsLateInExtended(ext, other int) bool {
	e, o := &a.nodes[ext], &a.nodes[other]
	if e.duration() < a.cfg.ExtendedEventHours-thresholdEpsilon {
		return false
	}
	pivot := e.start + e.duration()*a.cfg.ExtendedOverlapRatio
	return o.start >= pivot-thresholdEpsilon && o.start < e.end
}

// countDescendants returns the transitive number of children below i.
func (a *arena) countDescendants(i int) int {
	total := 0
	for _, c := range a.nodes[i].children {
		total += 1 + a.countDescendants(c)
	}
	return total
}

// attach links child under parent and fixes the child's depth.
func (a *arena) attach(parent, child int) {
	a.nodes[child].parent = parent
	a.nodes[parent].children = append(a.nodes[parent].children, child)
	a.nodes[child].depth = a.nodes[parent].depth + 1
}

// detach unlinks i from its parent, if any.
func (a *arena) detach(i int) {
	p := a.nodes[i].parent
	if p == noNode {
		return
	}
	kids := a.nodes[p].children
	for k, c := range kids {
		if c == i {
			a.nodes[p].children = append(kids[:k:k], kids[k+1:]...)
			break
		}
	}
	a.nodes[i].parent = noNode
}

// setDepth rewrites the depth of i and its whole subtree.
func (a *arena) setDepth(i, depth int) {
	a.nodes[i].depth = depth
	for _, c := range a.nodes[i].children {
		a.setDepth(c, depth+1)
	}
}
