package topology

import (
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

var (
	ErrEmptyTopology   = errors.New("topology has no vertices")
	ErrUnknownVertex   = errors.New("vertex not in topology")
	ErrDuplicateVertex = errors.New("vertex already in topology")
	ErrNegativeWeight  = errors.New("edge weight must not be negative")
)

// Weight holds the capacity and delay of a directed edge
type Weight struct {
	Bandwidth float64 `json:"bandwidth" toml:"bandwidth"`
	Delay     float64 `json:"delay" toml:"delay"`
}

// Edge represents a directed edge between two devices
type Edge struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Weight Weight `json:"weight"`
}

// Key identifies the edge by its endpoints
func (e Edge) Key() string {
	return e.Src + "->" + e.Dst
}

// ReverseKey identifies the opposite direction of the same physical link
func (e Edge) ReverseKey() string {
	return e.Dst + "->" + e.Src
}

func (e Edge) String() string {
	return e.Key()
}

// Vertex represents a device. Pop marks a point-of-presence that can host VNFs,
// Accelerated lists the VNF types with hardware acceleration there.
type Vertex struct {
	ID          string          `json:"id"`
	Pop         bool            `json:"pop"`
	Accelerated map[string]bool `json:"accelerated,omitempty"`
}

// Topology is an immutable snapshot of the network used by one solve call
type Topology struct {
	vertices []Vertex
	edges    []Edge
	index    map[string]int
	outgoing map[string][]int
	edgeIdx  map[string]int
	hasPops  bool
}

// Vertices returns the vertices in insertion order
func (t *Topology) Vertices() []Vertex {
	result := make([]Vertex, len(t.vertices))
	copy(result, t.vertices)
	return result
}

// Edges returns the edges in insertion order
func (t *Topology) Edges() []Edge {
	result := make([]Edge, len(t.edges))
	copy(result, t.edges)
	return result
}

func (t *Topology) VertexCount() int {
	return len(t.vertices)
}

func (t *Topology) EdgeCount() int {
	return len(t.edges)
}

// Vertex looks up a vertex by device id
func (t *Topology) Vertex(id string) (Vertex, bool) {
	idx, ok := t.index[id]
	if !ok {
		return Vertex{}, false
	}
	return t.vertices[idx], true
}

func (t *Topology) HasVertex(id string) bool {
	_, ok := t.index[id]
	return ok
}

// VertexIndex returns the position of the vertex in Vertices()
func (t *Topology) VertexIndex(id string) (int, bool) {
	idx, ok := t.index[id]
	return idx, ok
}

// Edge looks up the directed edge src->dst
func (t *Topology) Edge(src, dst string) (Edge, bool) {
	idx, ok := t.edgeIdx[src+"->"+dst]
	if !ok {
		return Edge{}, false
	}
	return t.edges[idx], true
}

// EdgeIndex returns the position of the edge in Edges()
func (t *Topology) EdgeIndex(e Edge) (int, bool) {
	idx, ok := t.edgeIdx[e.Key()]
	return idx, ok
}

// Outgoing returns the outgoing edges of a vertex in insertion order
func (t *Topology) Outgoing(id string) []Edge {
	idxs := t.outgoing[id]
	result := make([]Edge, len(idxs))
	for i, idx := range idxs {
		result[i] = t.edges[idx]
	}
	return result
}

// CanHost reports whether VNFs may be instantiated at the vertex.
// Without any PoP in the topology every vertex can host.
func (t *Topology) CanHost(id string) bool {
	v, ok := t.Vertex(id)
	if !ok {
		return false
	}
	return v.Pop || !t.hasPops
}

// IsAccelerated reports whether vnfType runs hardware accelerated at the vertex
func (t *Topology) IsAccelerated(id string, vnfType string) bool {
	v, ok := t.Vertex(id)
	if !ok {
		return false
	}
	return v.Accelerated[vnfType]
}

// VertexIDs returns all device ids sorted
func (t *Topology) VertexIDs() []string {
	ids := make([]string, 0, len(t.vertices))
	for _, v := range t.vertices {
		ids = append(ids, v.ID)
	}
	sort.Strings(ids)
	return ids
}

// Builder accumulates vertices and edges. Build returns the immutable topology.
type Builder struct {
	vertices []Vertex
	edges    []Edge
	seen     map[string]bool
	err      error
}

func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]bool)}
}

// AddVertex adds a plain switch without VNF hosting
func (b *Builder) AddVertex(id string) *Builder {
	return b.addVertex(Vertex{ID: id})
}

// AddPop adds a vertex that can host VNFs, accelerated for the given types
func (b *Builder) AddPop(id string, accelerated ...string) *Builder {
	v := Vertex{ID: id, Pop: true}
	if len(accelerated) > 0 {
		v.Accelerated = make(map[string]bool, len(accelerated))
		for _, a := range accelerated {
			v.Accelerated[a] = true
		}
	}
	return b.addVertex(v)
}

func (b *Builder) addVertex(v Vertex) *Builder {
	if b.err != nil {
		return b
	}
	if b.seen[v.ID] {
		b.err = fmt.Errorf("%w: %s", ErrDuplicateVertex, v.ID)
		return b
	}
	b.seen[v.ID] = true
	b.vertices = append(b.vertices, v)
	return b
}

// AddEdge adds a single directed edge
func (b *Builder) AddEdge(src, dst string, w Weight) *Builder {
	if b.err != nil {
		return b
	}
	if w.Bandwidth < 0 || w.Delay < 0 {
		b.err = fmt.Errorf("%w: %s->%s", ErrNegativeWeight, src, dst)
		return b
	}
	b.edges = append(b.edges, Edge{Src: src, Dst: dst, Weight: w})
	return b
}

// AddLink adds a bidirectional link as two directed edges with the same weight
func (b *Builder) AddLink(a, c string, w Weight) *Builder {
	return b.AddEdge(a, c, w).AddEdge(c, a, w)
}

// Build validates the accumulated graph
func (b *Builder) Build() (*Topology, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.vertices) == 0 {
		return nil, ErrEmptyTopology
	}

	t := &Topology{
		vertices: make([]Vertex, len(b.vertices)),
		edges:    make([]Edge, 0, len(b.edges)),
		index:    make(map[string]int, len(b.vertices)),
		outgoing: make(map[string][]int, len(b.vertices)),
		edgeIdx:  make(map[string]int, len(b.edges)),
	}
	copy(t.vertices, b.vertices)
	for i, v := range t.vertices {
		t.index[v.ID] = i
		if v.Pop {
			t.hasPops = true
		}
	}

	for _, e := range b.edges {
		if _, ok := t.index[e.Src]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrUnknownVertex, e.Src)
		}
		if _, ok := t.index[e.Dst]; !ok {
			return nil, fmt.Errorf("%w: edge destination %s", ErrUnknownVertex, e.Dst)
		}
		if _, dup := t.edgeIdx[e.Key()]; dup {
			log.Warnf("topology: duplicate edge %s ignored", e.Key())
			continue
		}
		t.edgeIdx[e.Key()] = len(t.edges)
		t.outgoing[e.Src] = append(t.outgoing[e.Src], len(t.edges))
		t.edges = append(t.edges, e)
	}

	log.Debugf("topology built, vertex num: %d, edge num: %d", len(t.vertices), len(t.edges))
	return t, nil
}
