package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"sfcplacement/placement/common"
	"sfcplacement/topology"
	"sfcplacement/traffic"
)

// flowEps is the cost of a unit of flow on any arc. It keeps the relaxation
// from routing flow around cycles and breaks ties toward shorter paths.
const flowEps = 1e-6

var (
	errModelTooLarge = errors.New("relaxation exceeds column limit")
	errSimplexPanic  = errors.New("simplex aborted")
)

// commodity is one unit of flow from the ingress at layer 0 to one egress at
// the last layer
type commodity struct {
	egress   string
	src, dst int
	trivial  bool
	arcs     []int
	nodes    []int
	cols     []int
	// relaxed flow per arc index, nil without guidance
	flow map[int]float64
}

type demandModel struct {
	index       int
	demand      traffic.Demand
	graph       *layeredGraph
	commodities []*commodity
}

type hopKey struct {
	edge, layer int
}

// prepareDemand builds the layered graph of a demand and prunes it per egress.
// A nil model comes with the reason the demand cannot be routed at all.
func prepareDemand(topo *topology.Topology, usable func(e topology.Edge) bool, index int, d traffic.Demand) (*demandModel, string) {
	g := buildLayered(topo, len(d.Sfc), usable)
	in, _ := topo.VertexIndex(d.Ingress)
	dm := &demandModel{index: index, demand: d, graph: g}

	for _, egress := range d.Egress {
		out, _ := topo.VertexIndex(egress)
		c := &commodity{egress: egress, src: g.node(in, 0), dst: g.node(out, g.layers)}
		if c.src == c.dst {
			c.trivial = true
		} else {
			arcs, nodes, ok := g.prune(c.src, c.dst)
			if !ok {
				return nil, fmt.Sprintf("egress %s unreachable through a chain of %d vnfs", egress, len(d.Sfc))
			}
			c.arcs, c.nodes = arcs, nodes
		}
		dm.commodities = append(dm.commodities, c)
	}
	return dm, ""
}

func (dm *demandModel) routed() []*commodity {
	var result []*commodity
	for _, c := range dm.commodities {
		if !c.trivial {
			result = append(result, c)
		}
	}
	return result
}

type lpRow struct {
	cols []int
	vals []float64
}

// lpModel is the relaxation in standard form: min cᵀx, Ax = b, x >= 0
type lpModel struct {
	goal   common.Goal
	c      []float64
	cost   []float64 // objective without flowEps, for the reported bound
	rows   []lpRow
	b      []float64
	lambda int
}

func (m *lpModel) addColumn(cost, eps float64) int {
	m.c = append(m.c, cost+eps)
	m.cost = append(m.cost, cost)
	return len(m.c) - 1
}

// addRow merges duplicate columns
func (m *lpModel) addRow(cols []int, vals []float64, rhs float64) {
	row := lpRow{}
	pos := make(map[int]int, len(cols))
	for i, col := range cols {
		if p, ok := pos[col]; ok {
			row.vals[p] += vals[i]
			continue
		}
		pos[col] = len(row.cols)
		row.cols = append(row.cols, col)
		row.vals = append(row.vals, vals[i])
	}
	m.rows = append(m.rows, row)
	m.b = append(m.b, rhs)
}

// buildModel writes the joint multi-commodity relaxation of dms against the
// residual capacity of the ledger
func buildModel(goal common.Goal, dms []*demandModel, ledger *common.Ledger, w topology.LinkWeigher) *lpModel {
	m := &lpModel{goal: goal, lambda: -1}
	if goal == common.LoadBalancing {
		m.lambda = m.addColumn(1, 0)
	}

	type capTerm struct {
		col  int
		coef float64
	}
	groupTerms := make(map[*common.Group][]capTerm)

	for _, dm := range dms {
		g := dm.graph
		routed := dm.routed()

		// flow variables and conservation
		for _, c := range routed {
			c.cols = make([]int, len(c.arcs))
			colOf := make(map[int]int, len(c.arcs))
			for i, idx := range c.arcs {
				cost := 0.0
				if a := g.arcs[idx]; goal == common.DelayReduction && !a.transition() {
					cost = w.Weigh(g.edges[a.edge]).Delay
				}
				c.cols[i] = m.addColumn(cost, flowEps)
				colOf[idx] = c.cols[i]
			}
			for _, n := range c.nodes {
				if n == c.dst {
					continue
				}
				var cols []int
				var vals []float64
				for _, idx := range g.out[n] {
					if col, ok := colOf[idx]; ok {
						cols = append(cols, col)
						vals = append(vals, 1)
					}
				}
				for _, idx := range g.in[n] {
					if col, ok := colOf[idx]; ok {
						cols = append(cols, col)
						vals = append(vals, -1)
					}
				}
				rhs := 0.0
				if n == c.src {
					rhs = 1
				}
				m.addRow(cols, vals, rhs)
			}
		}

		// usage per (edge, layer): egress flows of one demand share it
		usage := make(map[hopKey]int)
		var hops []hopKey
		for _, c := range routed {
			for i, idx := range c.arcs {
				a := g.arcs[idx]
				if a.transition() {
					continue
				}
				key := hopKey{edge: a.edge, layer: a.layer}
				if len(routed) == 1 {
					usage[key] = c.cols[i]
					hops = append(hops, key)
					continue
				}
				y, ok := usage[key]
				if !ok {
					y = m.addColumn(0, 0)
					usage[key] = y
					hops = append(hops, key)
				}
				s := m.addColumn(0, 0)
				m.addRow([]int{y, c.cols[i], s}, []float64{1, -1, -1}, 0)
			}
		}

		for _, key := range hops {
			grp := ledger.Group(g.edges[key.edge])
			coef := dm.demand.Volume / grp.Capacity
			groupTerms[grp] = append(groupTerms[grp], capTerm{col: usage[key], coef: coef})
			if goal == common.LoadReduction {
				m.c[usage[key]] += coef
				m.cost[usage[key]] += coef
			}
		}
	}

	for _, grp := range ledger.Groups() {
		terms := groupTerms[grp]
		if len(terms) == 0 {
			continue
		}
		cols := make([]int, 0, len(terms)+2)
		vals := make([]float64, 0, len(terms)+2)
		for _, t := range terms {
			cols = append(cols, t.col)
			vals = append(vals, t.coef)
		}
		s := m.addColumn(0, 0)
		cols = append(cols, s)
		vals = append(vals, 1)
		// load committed before this relaxation
		committed := 0.0
		if grp.Load > 0 {
			committed = grp.Load / grp.Capacity
		}
		if m.lambda >= 0 {
			m.addRow(append(cols, m.lambda), append(vals, -1), -committed)
		} else {
			m.addRow(cols, vals, 1-committed)
		}
	}
	if m.lambda >= 0 {
		s := m.addColumn(0, 0)
		m.addRow([]int{m.lambda, s}, []float64{1, 1}, 1)
	}
	return m
}

// empty reports whether there is nothing to relax
func (m *lpModel) empty() bool {
	return len(m.rows) == 0
}

type simplexResult struct {
	x     []float64
	bound float64
	err   error
}

// solve runs the simplex and returns the primal values and the objective
// value without the flow tie break. The simplex itself cannot be interrupted;
// when ctx ends first it is left to finish in the background.
func (m *lpModel) solve(ctx context.Context, tol float64) ([]float64, float64, error) {
	if m.empty() {
		return make([]float64, len(m.c)), 0, nil
	}
	done := make(chan simplexResult, 1)
	go func() {
		x, bound, err := m.simplex(tol)
		done <- simplexResult{x: x, bound: bound, err: err}
	}()
	select {
	case r := <-done:
		return r.x, r.bound, r.err
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (m *lpModel) simplex(tol float64) (x []float64, bound float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSimplexPanic, r)
		}
	}()

	A := mat.NewDense(len(m.rows), len(m.c), nil)
	for i, r := range m.rows {
		for j, col := range r.cols {
			A.Set(i, col, r.vals[j])
		}
	}
	_, x, err = lp.Simplex(m.c, A, m.b, tol, nil)
	if err != nil {
		return nil, 0, err
	}
	for j, v := range x {
		bound += m.cost[j] * v
	}
	return x, bound, nil
}

// assign copies relaxed flow values into the commodities of dms
func assign(dms []*demandModel, x []float64) {
	for _, dm := range dms {
		for _, c := range dm.routed() {
			c.flow = make(map[int]float64, len(c.arcs))
			for i, idx := range c.arcs {
				c.flow[idx] = math.Min(1, math.Max(0, x[c.cols[i]]))
			}
		}
	}
}

// clearGuidance drops relaxed values, rounding then prices arcs by the goal
func clearGuidance(dms []*demandModel) {
	for _, dm := range dms {
		for _, c := range dm.commodities {
			c.flow = nil
		}
	}
}
