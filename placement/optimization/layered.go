package optimization

import (
	"sfcplacement/topology"
)

// arc of the layered graph. Edge arcs copy a topology edge inside one layer,
// transition arcs apply the next chain element at a hosting vertex.
type arc struct {
	from, to int
	layer    int
	edge     int // index into the topology edges, -1 for transitions
}

func (a arc) transition() bool {
	return a.edge < 0
}

// layeredGraph expands the topology into len(sfc)+1 copies; node ids are
// layer*vertexCount + vertex index
type layeredGraph struct {
	topo     *topology.Topology
	vertices []topology.Vertex
	edges    []topology.Edge
	nv       int
	layers   int
	arcs     []arc
	out      [][]int
	in       [][]int
}

// buildLayered creates the layered graph for a chain of sfcLen elements.
// Edges rejected by usable and self loops are left out.
func buildLayered(topo *topology.Topology, sfcLen int, usable func(e topology.Edge) bool) *layeredGraph {
	g := &layeredGraph{
		topo:     topo,
		vertices: topo.Vertices(),
		edges:    topo.Edges(),
		nv:       topo.VertexCount(),
		layers:   sfcLen,
	}
	n := g.nv * (sfcLen + 1)
	g.out = make([][]int, n)
	g.in = make([][]int, n)

	for k := 0; k <= sfcLen; k++ {
		for i, e := range g.edges {
			if e.Src == e.Dst || !usable(e) {
				continue
			}
			src, _ := topo.VertexIndex(e.Src)
			dst, _ := topo.VertexIndex(e.Dst)
			g.addArc(arc{from: g.node(src, k), to: g.node(dst, k), layer: k, edge: i})
		}
		if k == sfcLen {
			break
		}
		for i, v := range g.vertices {
			if topo.CanHost(v.ID) {
				g.addArc(arc{from: g.node(i, k), to: g.node(i, k+1), layer: k, edge: -1})
			}
		}
	}
	return g
}

func (g *layeredGraph) addArc(a arc) {
	idx := len(g.arcs)
	g.arcs = append(g.arcs, a)
	g.out[a.from] = append(g.out[a.from], idx)
	g.in[a.to] = append(g.in[a.to], idx)
}

func (g *layeredGraph) nodeCount() int {
	return len(g.out)
}

func (g *layeredGraph) node(vertex, layer int) int {
	return layer*g.nv + vertex
}

// vertexOf returns the device id of a layered node
func (g *layeredGraph) vertexOf(node int) string {
	return g.vertices[node%g.nv].ID
}

// prune keeps the arcs lying on some src->dst path. ok is false when dst
// cannot be reached.
func (g *layeredGraph) prune(src, dst int) (arcs []int, nodes []int, ok bool) {
	fwd := g.sweep(src, g.out, func(a arc) int { return a.to })
	if !fwd[dst] {
		return nil, nil, false
	}
	bwd := g.sweep(dst, g.in, func(a arc) int { return a.from })

	for i, a := range g.arcs {
		if fwd[a.from] && bwd[a.to] {
			arcs = append(arcs, i)
		}
	}
	for n := 0; n < g.nodeCount(); n++ {
		if fwd[n] && bwd[n] {
			nodes = append(nodes, n)
		}
	}
	return arcs, nodes, true
}

func (g *layeredGraph) sweep(start int, adj [][]int, next func(a arc) int) []bool {
	seen := make([]bool, g.nodeCount())
	seen[start] = true
	stack := []int{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, idx := range adj[n] {
			m := next(g.arcs[idx])
			if !seen[m] {
				seen[m] = true
				stack = append(stack, m)
			}
		}
	}
	return seen
}
