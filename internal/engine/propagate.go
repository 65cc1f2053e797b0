package engine

import (
	"slices"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// edges is the part of a graph propagation walks.
type edges interface {
	Children(id caps.ID) []caps.ID
	Parents(id caps.ID) []caps.ID
}

// closureOrder returns root followed by every capability reachable from it,
// each after all of its in-closure parents. Ties break by breadth-first
// discovery index. A capability that cannot be scheduled means the closure
// contains a cycle.
func closureOrder(g edges, root caps.ID) ([]caps.ID, error) {
	discovered := map[caps.ID]int{root: 0}
	nodes := []caps.ID{root}
	for i := 0; i < len(nodes); i++ {
		for _, c := range g.Children(nodes[i]) {
			if _, ok := discovered[c]; !ok {
				discovered[c] = len(nodes)
				nodes = append(nodes, c)
			}
		}
	}

	indegree := make([]int, len(nodes))
	for i, id := range nodes {
		for _, p := range g.Parents(id) {
			if _, ok := discovered[p]; ok {
				indegree[i]++
			}
		}
	}

	var ready []int
	if indegree[0] == 0 {
		ready = append(ready, 0)
	}
	order := make([]caps.ID, 0, len(nodes))
	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]
		order = append(order, nodes[idx])
		for _, c := range g.Children(nodes[idx]) {
			ci := discovered[c]
			indegree[ci]--
			if indegree[ci] == 0 {
				pos, _ := slices.BinarySearch(ready, ci)
				ready = slices.Insert(ready, pos, ci)
			}
		}
	}

	if len(order) != len(nodes) {
		var stuck []caps.ID
		for _, id := range nodes {
			if !slices.Contains(order, id) {
				stuck = append(stuck, id)
			}
		}
		return nil, cycleError(root, stuck)
	}
	return order, nil
}

// propagate adjusts everything reachable from root in in. It returns the
// capabilities whose value or bounds changed, in adjustment order, and the
// full visit order (root first).
//
// A forwarded capability is marked dirty whenever one of its parents moved
// in this transaction, even if its own value did not: its firmware payload
// is built from those parents.
func (s *Session) propagate(in instances, root caps.ID) (changed, visited []caps.ID, err error) {
	visited, err = closureOrder(s.graph, root)
	if err != nil {
		return nil, nil, err
	}
	moved := map[caps.ID]bool{root: true}
	for _, id := range visited[1:] {
		before := in[id].Value
		if s.adjust(in, id) {
			changed = append(changed, id)
		}
		if in[id].Value != before {
			moved[id] = true
		}
		s.markStale(in, id, moved)
	}
	return changed, visited, nil
}

// markStale marks id dirty when it is forwarded and a parent moved.
func (s *Session) markStale(in instances, id caps.ID, moved map[caps.ID]bool) {
	d, err := s.graph.Lookup(id)
	if err != nil || !d.Forwarded() {
		return
	}
	for _, p := range s.graph.Parents(id) {
		if moved[p] {
			i := in[id]
			i.Dirty = true
			in[id] = i
			return
		}
	}
}

// adjust runs the adjust strategy of id against in, marking the instance
// dirty when its value moves. It reports whether value or bounds changed.
func (s *Session) adjust(in instances, id caps.ID) bool {
	d, err := s.graph.Lookup(id)
	if err != nil {
		return false
	}
	fn := adjusters[d.Adjust]
	if fn == nil {
		return false
	}
	before := in[id]
	after := fn(in, s.graph.Codec(), d, before)
	after.Dirty = before.Dirty || after.Value != before.Value
	in[id] = after
	return after.Value != before.Value || after.Bounds != before.Bounds
}
