package common

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"sfcplacement/topology"
)

// CapacityEps absorbs floating point error in capacity comparisons
const CapacityEps = 1e-9

var ErrCapacityExceeded = errors.New("capacity exceeded")

// Group is a capacity shared by one or more directed edges
type Group struct {
	Key      string
	Capacity float64
	Load     float64
}

func (g *Group) Residual() float64 {
	return g.Capacity - g.Load
}

// Utilization is Load/Capacity; a loaded group without capacity is infinitely utilized
func (g *Group) Utilization() float64 {
	if g.Capacity <= 0 {
		if g.Load > CapacityEps {
			return math.Inf(1)
		}
		return 0
	}
	return g.Load / g.Capacity
}

// Ledger tracks the committed load per capacity group during one solve call.
// With shareLinks the two directions of a physical link share one group whose
// capacity is the smaller of the two edge bandwidths.
type Ledger struct {
	weigher topology.LinkWeigher
	groups  map[string]*Group
	byEdge  map[string]*Group
	order   []*Group
}

func NewLedger(topo *topology.Topology, weigher topology.LinkWeigher, shareLinks bool) *Ledger {
	l := &Ledger{
		weigher: weigher,
		groups:  make(map[string]*Group),
		byEdge:  make(map[string]*Group, topo.EdgeCount()),
	}
	for _, e := range topo.Edges() {
		key := GroupKey(topo, e, shareLinks)
		bw := weigher.Weigh(e).Bandwidth
		g, ok := l.groups[key]
		if !ok {
			g = &Group{Key: key, Capacity: bw}
			l.groups[key] = g
			l.order = append(l.order, g)
		} else if bw < g.Capacity {
			g.Capacity = bw
		}
		l.byEdge[e.Key()] = g
	}
	return l
}

// GroupKey names the capacity group of e
func GroupKey(topo *topology.Topology, e topology.Edge, shareLinks bool) string {
	if !shareLinks {
		return e.Key()
	}
	if _, ok := topo.Edge(e.Dst, e.Src); ok && e.ReverseKey() < e.Key() {
		return e.ReverseKey()
	}
	return e.Key()
}

// Group returns the capacity group of e, nil for edges outside the topology
func (l *Ledger) Group(e topology.Edge) *Group {
	return l.byEdge[e.Key()]
}

// Groups returns all groups in edge order
func (l *Ledger) Groups() []*Group {
	return append([]*Group(nil), l.order...)
}

func (l *Ledger) Residual(e topology.Edge) float64 {
	g := l.Group(e)
	if g == nil {
		return 0
	}
	return g.Residual()
}

// Fits reports whether volume more can be put on e
func (l *Ledger) Fits(e topology.Edge, volume float64) bool {
	g := l.Group(e)
	return g != nil && g.Residual()+CapacityEps >= volume
}

// MaxUtilization returns the highest group utilization
func (l *Ledger) MaxUtilization() float64 {
	max := 0.0
	for _, g := range l.order {
		if u := g.Utilization(); u > max {
			max = u
		}
	}
	return max
}

// SumUtilization returns the summed group utilization
func (l *Ledger) SumUtilization() float64 {
	sum := 0.0
	for _, g := range l.order {
		sum += g.Utilization()
	}
	return sum
}

// Loads returns the load per group key, sorted keys first
func (l *Ledger) Loads() ([]string, map[string]float64) {
	keys := make([]string, 0, len(l.groups))
	loads := make(map[string]float64, len(l.groups))
	for k, g := range l.groups {
		keys = append(keys, k)
		loads[k] = g.Load
	}
	sort.Strings(keys)
	return keys, loads
}

// Usage is the set of (edge, layer) hops one demand holds in the ledger
type Usage struct {
	ledger *Ledger
	volume float64
	hops   map[string]map[int]bool
	held   []hop
}

// NewUsage starts tracking a demand of the given volume
func (l *Ledger) NewUsage(volume float64) *Usage {
	return &Usage{ledger: l, volume: volume, hops: make(map[string]map[int]bool)}
}

// Holds reports whether the demand already carries its flow over e at layer
func (u *Usage) Holds(e topology.Edge, layer int) bool {
	return u.hops[e.Key()][layer]
}

// HoldsEdge reports whether the demand uses e at any layer
func (u *Usage) HoldsEdge(e topology.Edge) bool {
	return len(u.hops[e.Key()]) > 0
}

// Eligible reports whether the demand can traverse e at layer without exceeding capacity
func (u *Usage) Eligible(e topology.Edge, layer int) bool {
	return u.Holds(e, layer) || u.ledger.Fits(e, u.volume)
}

// Commit adds the hops of a route. Hops already held are free. Either all new
// hops fit and are committed or nothing changes.
func (u *Usage) Commit(edges []topology.Edge, layers []int) error {
	need := make(map[*Group]float64)
	var fresh []hop
	pending := make(map[string]map[int]bool)
	for i, e := range edges {
		layer := layers[i]
		if u.Holds(e, layer) || pending[e.Key()][layer] {
			continue
		}
		g := u.ledger.Group(e)
		if g == nil {
			return fmt.Errorf("%w: edge %s has no capacity", ErrCapacityExceeded, e.Key())
		}
		if pending[e.Key()] == nil {
			pending[e.Key()] = make(map[int]bool)
		}
		pending[e.Key()][layer] = true
		need[g] += u.volume
		fresh = append(fresh, hop{edge: e, layer: layer})
	}
	for g, v := range need {
		if g.Residual()+CapacityEps < v {
			return fmt.Errorf("%w: group %s residual %.4f, need %.4f", ErrCapacityExceeded, g.Key, g.Residual(), v)
		}
	}
	for _, h := range fresh {
		u.ledger.Group(h.edge).Load += u.volume
		if u.hops[h.edge.Key()] == nil {
			u.hops[h.edge.Key()] = make(map[int]bool)
		}
		u.hops[h.edge.Key()][h.layer] = true
		u.held = append(u.held, h)
	}
	return nil
}

// Release returns all held capacity to the ledger
func (u *Usage) Release() {
	for _, h := range u.held {
		u.ledger.Group(h.edge).Load -= u.volume
	}
	u.held = nil
	u.hops = make(map[string]map[int]bool)
}

// Replay commits every feasible demand of sol onto a fresh ledger, reporting
// the first capacity violation
func Replay(req *Request, sol *Solution, shareLinks bool) (*Ledger, error) {
	l := NewLedger(req.Topology, req.Weigher, shareLinks)
	for _, ds := range sol.Demands {
		if !ds.Feasible {
			continue
		}
		u := l.NewUsage(ds.Demand.Volume)
		for _, r := range ds.Routes {
			if err := u.Commit(r.Edges, r.Layers); err != nil {
				return l, fmt.Errorf("demand %s: %w", ds.Demand.ID, err)
			}
		}
	}
	return l, nil
}

// Evaluate computes the goal value of a committed routing
func Evaluate(goal Goal, l *Ledger, sol *Solution, w topology.LinkWeigher) float64 {
	switch goal {
	case LoadReduction:
		return l.SumUtilization()
	case DelayReduction:
		total := 0.0
		for _, ds := range sol.Demands {
			if !ds.Feasible {
				continue
			}
			for _, r := range ds.Routes {
				total += r.Delay(w)
			}
		}
		return total
	default:
		return l.MaxUtilization()
	}
}
