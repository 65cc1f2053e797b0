package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// CycleWarning reports a dependency cycle in the graph one session would
// resolve. The registry refuses to build such a session.
type CycleWarning struct {
	Codec   caps.Codec  `json:"codec"`
	Domain  caps.Domain `json:"domain"`
	Path    []caps.ID   `json:"path"`
	Message string      `json:"message"`
	Level   string      `json:"level"`
}

// AnalyzeCycles resolves the graph for every (codec, domain) pair the core
// table supports and reports each strongly connected component with more
// than one node, or with a self-loop.
//
// Edges are the union of declared children and inverted parents, so a
// relation declared on only one side still counts.
func AnalyzeCycles(p *caps.Platform) []CycleWarning {
	var warnings []CycleWarning
	for _, dom := range []caps.Domain{caps.Encoder, caps.Decoder} {
		for _, codec := range []caps.Codec{caps.H264, caps.HEVC, caps.VP9} {
			if !p.Core.Supports(codec, dom) {
				continue
			}
			graph := sessionGraph(p, codec, dom)
			for _, scc := range tarjanSCC(graph) {
				if len(scc) > 1 || (len(scc) == 1 && slices.Contains(graph.edges[scc[0]], scc[0])) {
					warnings = append(warnings, cycleWarning(codec, dom, scc, graph))
				}
			}
		}
	}
	return warnings
}

// dependencyGraph keeps nodes in ascending ID order so traversal, and with
// it the reported path, is deterministic.
type dependencyGraph struct {
	nodes []caps.ID
	edges map[caps.ID][]caps.ID
}

func sessionGraph(p *caps.Platform, codec caps.Codec, dom caps.Domain) dependencyGraph {
	g := dependencyGraph{edges: make(map[caps.ID][]caps.ID)}
	present := make(map[caps.ID]*caps.Descriptor)
	for _, id := range caps.AllIDs() {
		// Ambiguous rows are reported by Validate.
		d, err := p.Select(id, codec, dom)
		if err != nil || d == nil {
			continue
		}
		present[id] = d
		g.nodes = append(g.nodes, id)
	}
	link := func(from, to caps.ID) {
		if _, ok := present[to]; !ok {
			return
		}
		if !slices.Contains(g.edges[from], to) {
			g.edges[from] = append(g.edges[from], to)
		}
	}
	for _, id := range g.nodes {
		d := present[id]
		for _, c := range d.Children {
			link(id, c)
		}
		for _, parent := range d.Parents {
			if _, ok := present[parent]; ok {
				link(parent, id)
			}
		}
	}
	return g
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
func tarjanSCC(g dependencyGraph) [][]caps.ID {
	var (
		index   = 0
		stack   []caps.ID
		indices = make(map[caps.ID]int)
		lowlink = make(map[caps.ID]int)
		onStack = make(map[caps.ID]bool)
		sccs    [][]caps.ID
	)

	var strongConnect func(caps.ID)
	strongConnect = func(v caps.ID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []caps.ID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleWarning(codec caps.Codec, dom caps.Domain, scc []caps.ID, g dependencyGraph) CycleWarning {
	slices.Sort(scc)
	var path []caps.ID
	if len(scc) == 1 {
		path = []caps.ID{scc[0], scc[0]}
	} else {
		path = cyclePath(scc, g)
	}
	names := make([]string, len(path))
	for i, id := range path {
		names[i] = id.String()
	}
	return CycleWarning{
		Codec:   codec,
		Domain:  dom,
		Path:    path,
		Message: fmt.Sprintf("%s %s: dependency cycle %s", codec, dom, strings.Join(names, " -> ")),
		Level:   "error",
	}
}

// cyclePath walks edges inside the SCC from its lowest ID until it returns
// to the start.
func cyclePath(scc []caps.ID, g dependencyGraph) []caps.ID {
	start := scc[0]
	current := start
	path := []caps.ID{current}
	visited := map[caps.ID]bool{}
	for {
		visited[current] = true
		var next caps.ID
		for _, n := range g.edges[current] {
			if slices.Contains(scc, n) && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == caps.InvalidID {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		current = next
	}
}
