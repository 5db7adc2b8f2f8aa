package sim

// contentionComponents partitions the runnable trains so that any two trains
// touching a common block or platform land in the same component. Components
// are mutually resource-disjoint by construction, which is what lets Replay
// run them on separate workers without changing a single admitted time.
// Component order and the train order inside each component both follow the
// processing order, so the partition is deterministic.
func contentionComponents(order []string, routes map[string]*route) [][]string {
	parent := make([]int, len(order))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	owner := make(map[ResourceRef]int)
	for i, id := range order {
		rt := routes[id]
		touch := func(ref ResourceRef) {
			if prev, ok := owner[ref]; ok {
				union(prev, i)
			} else {
				owner[ref] = i
			}
		}
		for _, s := range rt.stops {
			touch(ResourceRef{Kind: ResourcePlatform, ID: s.StationID})
		}
		for _, b := range rt.blocks {
			touch(ResourceRef{Kind: ResourceBlock, ID: b.ID})
		}
	}

	groups := make(map[int][]string, len(order))
	var roots []int
	for i, id := range order {
		r := find(i)
		if _, seen := groups[r]; !seen {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], id)
	}
	out := make([][]string, 0, len(roots))
	for _, r := range roots {
		out = append(out, groups[r])
	}
	return out
}
