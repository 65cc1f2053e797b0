package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// Graph is the capability graph of one (codec, domain) specialization.
// It is immutable after Build and safe for concurrent readers. Descriptors
// returned by its methods are shared and must not be modified.
type Graph struct {
	platform *caps.Platform
	codec    caps.Codec
	domain   caps.Domain

	nodes    map[caps.ID]*caps.Descriptor
	ids      []caps.ID
	order    []caps.ID
	rank     map[caps.ID]int
	external map[uint32][]caps.ID
}

// Build specializes p for a single codec and direction.
//
// Rows are selected by specificity, inverse edges are synthesized so that
// parents and children agree, edges to capabilities absent from the
// specialization are dropped, and the commit order is computed with Kahn's
// algorithm breaking ties by ascending ID. Any ambiguity, unsupported codec
// or cycle is a CONFIG_ERROR.
func Build(p *caps.Platform, codec caps.Codec, domain caps.Domain) (*Graph, error) {
	if !codec.Single() {
		return nil, caps.Errorf(caps.CodeConfigError, caps.InvalidID, "session codec must be a single codec, got %s", codec)
	}
	if domain != caps.Encoder && domain != caps.Decoder {
		return nil, caps.Errorf(caps.CodeConfigError, caps.InvalidID, "session domain must be enc or dec, got %s", domain)
	}
	if !p.Core.Supports(codec, domain) {
		return nil, caps.Errorf(caps.CodeConfigError, caps.InvalidID, "platform %s does not support %s %s", p.Name, codec, domain)
	}

	g := &Graph{
		platform: p,
		codec:    codec,
		domain:   domain,
		nodes:    make(map[caps.ID]*caps.Descriptor),
		rank:     make(map[caps.ID]int),
		external: make(map[uint32][]caps.ID),
	}
	for _, id := range caps.AllIDs() {
		d, err := p.Select(id, codec, domain)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}
		g.nodes[id] = d.Clone()
		g.ids = append(g.ids, id)
		if d.ExternalID != 0 {
			g.external[d.ExternalID] = append(g.external[d.ExternalID], id)
		}
	}

	g.linkEdges()
	if err := g.computeOrder(); err != nil {
		return nil, err
	}
	return g, nil
}

// linkEdges drops edges to absent capabilities and repeated entries, then
// adds the inverse of every remaining edge. Declared entries keep their
// order; synthesized ones are appended in ascending ID order.
func (g *Graph) linkEdges() {
	for _, id := range g.ids {
		d := g.nodes[id]
		d.Children = g.present(d.Children)
		d.Parents = g.present(d.Parents)
	}
	for _, id := range g.ids {
		d := g.nodes[id]
		for _, c := range d.Children {
			child := g.nodes[c]
			if !slices.Contains(child.Parents, id) {
				child.Parents = append(child.Parents, id)
			}
		}
		for _, p := range d.Parents {
			parent := g.nodes[p]
			if !slices.Contains(parent.Children, id) {
				parent.Children = append(parent.Children, id)
			}
		}
	}
}

// present filters ids in place to the first entry of each capability in
// the graph.
func (g *Graph) present(ids []caps.ID) []caps.ID {
	out := ids[:0]
	for _, id := range ids {
		if g.nodes[id] != nil && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) computeOrder() error {
	indegree := make(map[caps.ID]int, len(g.ids))
	var ready []caps.ID
	for _, id := range g.ids {
		indegree[id] = len(g.nodes[id].Parents)
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		g.rank[id] = len(g.order)
		g.order = append(g.order, id)
		for _, c := range g.nodes[id].Children {
			indegree[c]--
			if indegree[c] == 0 {
				i, _ := slices.BinarySearch(ready, c)
				ready = slices.Insert(ready, i, c)
			}
		}
	}

	if len(g.order) != len(g.ids) {
		var stuck []caps.ID
		for _, id := range g.ids {
			if _, ok := g.rank[id]; !ok {
				stuck = append(stuck, id)
			}
		}
		e := caps.Errorf(caps.CodeConfigError, stuck[0], "dependency cycle among %v for %s %s", stuck, g.codec, g.domain)
		e.Details = map[string]string{"cycle": fmt.Sprint(stuck)}
		return e
	}
	return nil
}

// Platform returns the table the graph was built from.
func (g *Graph) Platform() *caps.Platform { return g.platform }

// Codec returns the session codec.
func (g *Graph) Codec() caps.Codec { return g.codec }

// Domain returns the session direction.
func (g *Graph) Domain() caps.Domain { return g.domain }

// Len returns the number of capabilities present.
func (g *Graph) Len() int { return len(g.ids) }

// Has reports whether id is present in this specialization.
func (g *Graph) Has(id caps.ID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Lookup returns the descriptor for id.
func (g *Graph) Lookup(id caps.ID) (*caps.Descriptor, error) {
	if d, ok := g.nodes[id]; ok {
		return d, nil
	}
	return nil, caps.Errorf(caps.CodeUnknownCapability, id, "not available for %s %s", g.codec, g.domain)
}

// LookupExternal resolves a control-framework id. When several
// capabilities share the id the lowest one is returned; Aliases lists all
// of them.
func (g *Graph) LookupExternal(externalID uint32) (*caps.Descriptor, error) {
	ids := g.external[externalID]
	if externalID == 0 || len(ids) == 0 {
		e := caps.Errorf(caps.CodeUnknownCapability, caps.InvalidID, "external id %#x not available for %s %s", externalID, g.codec, g.domain)
		e.Details = map[string]string{"external_id": fmt.Sprintf("%#x", externalID)}
		return nil, e
	}
	return g.nodes[ids[0]], nil
}

// Aliases returns every capability bound to externalID, ascending.
func (g *Graph) Aliases(externalID uint32) []caps.ID {
	return slices.Clone(g.external[externalID])
}

// LookupName resolves a capability by table name.
func (g *Graph) LookupName(name string) (*caps.Descriptor, error) {
	id, err := caps.ParseID(name)
	if err != nil {
		return nil, &caps.Error{Code: caps.CodeUnknownCapability, Message: err.Error()}
	}
	return g.Lookup(id)
}

// IDs returns the present capabilities in ascending order.
func (g *Graph) IDs() []caps.ID {
	return slices.Clone(g.ids)
}

// CommitOrder returns the topological order used for full passes and
// commits.
func (g *Graph) CommitOrder() []caps.ID {
	return slices.Clone(g.order)
}

// Rank returns the position of id in the commit order, or -1.
func (g *Graph) Rank(id caps.ID) int {
	if r, ok := g.rank[id]; ok {
		return r
	}
	return -1
}

// Children returns the outgoing edges of id.
func (g *Graph) Children(id caps.ID) []caps.ID {
	if d, ok := g.nodes[id]; ok {
		return d.Children
	}
	return nil
}

// Parents returns the incoming edges of id.
func (g *Graph) Parents(id caps.ID) []caps.ID {
	if d, ok := g.nodes[id]; ok {
		return d.Parents
	}
	return nil
}

type key struct {
	codec  caps.Codec
	domain caps.Domain
}

// Registry memoizes graphs per specialization for one platform.
type Registry struct {
	platform *caps.Platform

	mu     sync.Mutex
	graphs map[key]*Graph
}

// New returns a registry for p.
func New(p *caps.Platform) *Registry {
	return &Registry{platform: p, graphs: make(map[key]*Graph)}
}

// Platform returns the underlying table.
func (r *Registry) Platform() *caps.Platform { return r.platform }

// Graph returns the specialization for (codec, domain), building it on
// first use. Failed builds are not cached.
func (r *Registry) Graph(codec caps.Codec, domain caps.Domain) (*Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{codec, domain}
	if g, ok := r.graphs[k]; ok {
		return g, nil
	}
	g, err := Build(r.platform, codec, domain)
	if err != nil {
		return nil, err
	}
	r.graphs[k] = g
	return g, nil
}
