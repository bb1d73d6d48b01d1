package layout

import "sort"

// rebalance walks parallel groups from the latest down to the second one.
// For each, the nodes of the overlap group that sit at the group's parent
// depth are compared by subtree size, and leaves are moved from the heaviest
// branch to the lightest while the spread is at least two. It returns the
// number of leaves moved.
func (a *arena) rebalance(groups []parallelGroup, members []int) int {
	moved := 0
	for gi := len(groups) - 1; gi >= 1; gi-- {
		depth, ok := a.parentDepth(groups[gi].members)
		if !ok {
			continue
		}
		level := a.nodesAtDepth(members, depth)
		if len(level) < 2 {
			continue
		}
		moved += a.balanceLevel(level)
	}
	return moved
}

// parentDepth is the depth of the first member's parent.
func (a *arena) parentDepth(members []int) (int, bool) {
	for _, m := range members {
		if p := a.nodes[m].parent; p != noNode {
			return a.nodes[p].depth, true
		}
	}
	return 0, false
}

func (a *arena) nodesAtDepth(members []int, depth int) []int {
	var out []int
	for _, m := range members {
		if a.nodes[m].depth == depth {
			out = append(out, m)
		}
	}
	return out
}

type branchLoad struct {
	node int
	load int
}

// balanceLevel moves at most MaxRebalanceIterations leaves. Stopping at the
// cap with the spread still >= 2 is a normal outcome.
func (a *arena) balanceLevel(level []int) int {
	moved := 0
	for iter := 0; iter < a.cfg.MaxRebalanceIterations; iter++ {
		loads := make([]branchLoad, len(level))
		for i, n := range level {
			loads[i] = branchLoad{node: n, load: a.countDescendants(n)}
		}
		sort.SliceStable(loads, func(i, j int) bool {
			return loads[i].load > loads[j].load
		})

		heavy, light := loads[0], loads[len(loads)-1]
		if heavy.load-light.load < rebalanceMinSpread {
			break
		}

		leaf := a.pickLeaf(heavy.node, light.node)
		if leaf == noNode {
			break
		}

		target := light.node
		for _, c := range a.nodes[light.node].children {
			if a.canContain(c, leaf) {
				target = c
				break
			}
		}

		a.detach(leaf)
		a.attach(target, leaf)
		a.nodes[leaf].processed = true
		a.nodes[leaf].branchRoot = light.node
		moved++
	}
	return moved
}

// pickLeaf returns the first leaf below heavy (pre-order) that light can
// contain, or the first leaf at all.
func (a *arena) pickLeaf(heavy, light int) int {
	var leaves []int
	var walk func(int)
	walk = func(i int) {
		for _, c := range a.nodes[i].children {
			if len(a.nodes[c].children) == 0 {
				leaves = append(leaves, c)
				continue
			}
			walk(c)
		}
	}
	walk(heavy)

	if len(leaves) == 0 {
		return noNode
	}
	for _, l := range leaves {
		if a.canContain(light, l) {
			return l
		}
	}
	return leaves[0]
}
