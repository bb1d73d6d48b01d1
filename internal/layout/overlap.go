package layout

// dayBuckets splits node indices by day, keeping encounter order both for the
// buckets and inside each bucket.
func (a *arena) dayBuckets() [][]int {
	var buckets [][]int
	pos := make(map[int]int)
	for i := range a.nodes {
		d := a.nodes[i].day
		b, ok := pos[d]
		if !ok {
			b = len(buckets)
			pos[d] = b
			buckets = append(buckets, nil)
		}
		buckets[b] = append(buckets[b], i)
	}
	return buckets
}

// overlapGroups returns the connected components of members under the
// pairwise overlap relation. Every member lands in exactly one group.
func (a *arena) overlapGroups(members []int) [][]int {
	visited := make(map[int]bool, len(members))
	var groups [][]int

	for _, seed := range members {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		group := []int{seed}
		queue := []int{seed}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, other := range members {
				if visited[other] || !a.overlaps(cur, other) {
					continue
				}
				visited[other] = true
				group = append(group, other)
				queue = append(queue, other)
			}
		}
		groups = append(groups, group)
	}
	return groups
}
