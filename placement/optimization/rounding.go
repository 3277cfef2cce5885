package optimization

import (
	"errors"
	"fmt"
	"math"

	"sfcplacement/placement/common"
	"sfcplacement/topology"
)

// delayEps prefers low delay among arcs with the same relaxed flow
const delayEps = 1e-6

var errNoRoute = errors.New("no capacity respecting route through the chain")

// round turns the relaxed flow of one demand into one route per egress.
// Every egress takes the cheapest layered path where an arc costs 1 - flow, so
// arcs the relaxation used fully are free. Without relaxed flow arcs are priced
// by the goal against the current ledger. Hops the demand already holds are free.
func round(dm *demandModel, ledger *common.Ledger, w topology.LinkWeigher, goal common.Goal) ([]common.Route, error) {
	r := &rounder{
		graph:  dm.graph,
		ledger: ledger,
		usage:  ledger.NewUsage(dm.demand.Volume),
		volume: dm.demand.Volume,
		w:      w,
		goal:   goal,
	}
	routes := make([]common.Route, 0, len(dm.commodities))

	for _, c := range dm.commodities {
		route := common.Route{Egress: c.egress, Edges: []topology.Edge{}, Layers: []int{}, Placements: []common.VnfPlacement{}}
		if !c.trivial {
			path := r.shortestPath(c)
			if path == nil {
				r.usage.Release()
				return nil, fmt.Errorf("egress %s: %w", c.egress, errNoRoute)
			}
			route = toRoute(dm, c.egress, path)
			if err := r.usage.Commit(route.Edges, route.Layers); err != nil {
				r.usage.Release()
				return nil, fmt.Errorf("egress %s: %w", c.egress, err)
			}
		}
		routes = append(routes, route)
	}
	return routes, nil
}

type rounder struct {
	graph  *layeredGraph
	ledger *common.Ledger
	usage  *common.Usage
	volume float64
	w      topology.LinkWeigher
	goal   common.Goal
}

// shortestPath is Dijkstra over the layered graph with a linear scan for the
// closest node; equal distances resolve to the lowest node id. It returns the
// arc indices from src to dst or nil.
func (r *rounder) shortestPath(c *commodity) []int {
	g := r.graph
	n := g.nodeCount()
	dist := make([]float64, n)
	prev := make([]int, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[c.src] = 0

	for {
		minNode := -1
		for i := 0; i < n; i++ {
			if visited[i] || math.IsInf(dist[i], 1) {
				continue
			}
			if minNode < 0 || dist[i] < dist[minNode] {
				minNode = i
			}
		}
		if minNode < 0 || minNode == c.dst {
			break
		}
		visited[minNode] = true

		for _, idx := range g.out[minNode] {
			a := g.arcs[idx]
			if visited[a.to] {
				continue
			}
			cost, ok := r.arcCost(c, idx)
			if !ok {
				continue
			}
			if d := dist[minNode] + cost; d < dist[a.to] {
				dist[a.to] = d
				prev[a.to] = idx
			}
		}
	}

	if math.IsInf(dist[c.dst], 1) {
		return nil
	}
	var path []int
	for at := c.dst; at != c.src; at = g.arcs[prev[at]].from {
		path = append(path, prev[at])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// arcCost returns the rounding cost of an arc, ok is false when the arc cannot
// carry the demand
func (r *rounder) arcCost(c *commodity, idx int) (float64, bool) {
	a := r.graph.arcs[idx]
	guided := c.flow != nil
	if a.transition() {
		if guided {
			return 1 - c.flow[idx], true
		}
		return 0, true
	}
	e := r.graph.edges[a.edge]
	tiebreak := delayEps * r.w.Weigh(e).Delay
	if r.usage.Holds(e, a.layer) {
		return tiebreak, true
	}
	if !r.usage.Eligible(e, a.layer) {
		return 0, false
	}
	if guided {
		return 1 - c.flow[idx] + tiebreak, true
	}
	return r.loadCost(e) + tiebreak, true
}

// loadCost prices an edge the demand does not hold yet by what it adds to the
// goal: utilization after adding the volume for load balancing, the utilization
// increment for load reduction, the delay otherwise
func (r *rounder) loadCost(e topology.Edge) float64 {
	grp := r.ledger.Group(e)
	switch r.goal {
	case common.LoadBalancing:
		return (grp.Load + r.volume) / grp.Capacity
	case common.LoadReduction:
		return r.volume / grp.Capacity
	default:
		return r.w.Weigh(e).Delay + flowEps
	}
}

func toRoute(dm *demandModel, egress string, path []int) common.Route {
	g := dm.graph
	route := common.Route{
		Egress:     egress,
		Edges:      make([]topology.Edge, 0, len(path)),
		Layers:     make([]int, 0, len(path)),
		Placements: make([]common.VnfPlacement, 0, g.layers),
	}
	for _, idx := range path {
		a := g.arcs[idx]
		if a.transition() {
			v := g.vertexOf(a.from)
			vnf := dm.demand.Sfc[a.layer]
			route.Placements = append(route.Placements, common.VnfPlacement{
				Vertex:        v,
				Type:          vnf,
				HwAccelerated: g.topo.IsAccelerated(v, string(vnf)),
			})
			continue
		}
		route.Edges = append(route.Edges, g.edges[a.edge])
		route.Layers = append(route.Layers, a.layer)
	}
	return route
}
