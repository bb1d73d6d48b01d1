package layout

import "sort"

// buildStructure links each parallel group under the nearest earlier group
// able to contain it, then returns the forest roots (depth 0) in group order.
// Children without a valid parent stay roots; nothing is dropped.
func (a *arena) buildStructure(groups []parallelGroup) []int {
	for i := 1; i < len(groups); i++ {
		for j := i - 1; j >= 0; j-- {
			if a.canGroupContain(groups[j], groups[i]) {
				a.assignChildren(groups[j].members, groups[i].members)
				break
			}
		}
	}

	var roots []int
	for _, g := range groups {
		for _, m := range g.members {
			if a.nodes[m].parent == noNode {
				roots = append(roots, m)
			}
		}
	}
	for _, r := range roots {
		a.setDepth(r, 0)
	}
	return roots
}

// canGroupContain reports whether child may nest under parent.
//
// A member pair that overlaps with a start gap below NestedThreshold vetoes
// the relation even if other members would nest cleanly; such pairs are
// siblings, not parent and child.
func (a *arena) canGroupContain(parent, child parallelGroup) bool {
	nested := a.cfg.NestedThreshold - thresholdEpsilon
	if child.start-parent.start < nested {
		return false
	}
	for _, p := range parent.members {
		for _, c := range child.members {
			if a.overlaps(p, c) && a.startGap(p, c) < nested {
				return false
			}
		}
	}
	for _, p := range parent.members {
		for _, c := range child.members {
			if a.canContain(p, c) {
				return true
			}
		}
	}
	return false
}

// assignChildren distributes the events of a child group among the events
// of its containing parent group.
func (a *arena) assignChildren(parents, children []int) {
	if len(children) == 1 {
		if p := a.bestParent(parents, children[0]); p != noNode {
			a.attach(p, children[0])
		}
		return
	}

	if !a.allContain(parents, children) {
		for _, c := range children {
			if p := a.bestParent(parents, c); p != noNode {
				a.attach(p, c)
			}
		}
		return
	}

	byDuration := a.sortedByDuration(children)
	if len(byDuration)%len(parents) == 0 {
		block := len(byDuration) / len(parents)
		for pi, p := range parents {
			for _, c := range byDuration[pi*block : (pi+1)*block] {
				a.attach(p, c)
			}
		}
		return
	}

	// Uneven split: the longest child goes to the first least-loaded parent,
	// every other child to the last least-loaded one.
	longest := a.nodes[byDuration[0]].duration()
	for _, c := range byDuration {
		candidates := a.leastLoaded(parents)
		pick := candidates[len(candidates)-1]
		if a.nodes[c].duration() >= longest {
			pick = candidates[0]
		}
		a.attach(pick, c)
	}
}

// bestParent picks the parent able to contain c with the fewest children,
// preferring one without a child parallel to c, then the closest start.
func (a *arena) bestParent(parents []int, c int) int {
	var candidates []int
	for _, p := range parents {
		if a.canContain(p, c) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return noNode
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		x, y := candidates[i], candidates[j]
		if lx, ly := len(a.nodes[x].children), len(a.nodes[y].children); lx != ly {
			return lx < ly
		}
		if px, py := a.hasParallelChild(x, c), a.hasParallelChild(y, c); px != py {
			return !px
		}
		return a.startGap(x, c) < a.startGap(y, c)
	})
	return candidates[0]
}

func (a *arena) hasParallelChild(p, c int) bool {
	for _, s := range a.nodes[p].children {
		if a.shouldBeParallel(s, c) {
			return true
		}
	}
	return false
}

func (a *arena) allContain(parents, children []int) bool {
	for _, p := range parents {
		for _, c := range children {
			if !a.canContain(p, c) {
				return false
			}
		}
	}
	return true
}

// leastLoaded returns the parents sharing the minimum child count, in order.
func (a *arena) leastLoaded(parents []int) []int {
	low := -1
	var out []int
	for _, p := range parents {
		n := len(a.nodes[p].children)
		switch {
		case low == -1 || n < low:
			low = n
			out = []int{p}
		case n == low:
			out = append(out, p)
		}
	}
	return out
}

func (a *arena) sortedByDuration(members []int) []int {
	out := append([]int(nil), members...)
	sort.SliceStable(out, func(i, j int) bool {
		return a.nodes[out[i]].duration() > a.nodes[out[j]].duration()
	})
	return out
}
