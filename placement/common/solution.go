package common

import (
	"errors"
	"fmt"

	"sfcplacement/topology"
	"sfcplacement/traffic"
)

var ErrInvalidRoute = errors.New("invalid route")

// VnfPlacement records where one chain element is instantiated
type VnfPlacement struct {
	Vertex        string          `json:"vertex"`
	Type          traffic.VnfType `json:"type"`
	HwAccelerated bool            `json:"hw_accelerated"`
}

// Route is the path from the ingress to one egress. Layers[i] is the number of
// chain elements already applied when the flow traverses Edges[i]; Placements
// lists one entry per chain element, in chain order.
type Route struct {
	Egress     string          `json:"egress"`
	Edges      []topology.Edge `json:"edges"`
	Layers     []int           `json:"layers"`
	Placements []VnfPlacement  `json:"placements"`
}

// Delay sums the weigher delay along the route
func (r Route) Delay(w topology.LinkWeigher) float64 {
	total := 0.0
	for _, e := range r.Edges {
		total += w.Weigh(e).Delay
	}
	return total
}

// Vertices returns the visited vertices starting with ingress
func (r Route) Vertices(ingress string) []string {
	result := make([]string, 0, len(r.Edges)+1)
	result = append(result, ingress)
	for _, e := range r.Edges {
		result = append(result, e.Dst)
	}
	return result
}

type DemandSolution struct {
	Demand   traffic.Demand `json:"demand"`
	Feasible bool           `json:"feasible"`
	Reason   string         `json:"reason,omitempty"`
	Routes   []Route        `json:"routes,omitempty"`
}

// Placements returns the distinct VNF instances of all routes. Routes sharing a
// placement (same vertex and type) contribute it once.
func (d DemandSolution) Placements() []VnfPlacement {
	seen := make(map[VnfPlacement]bool)
	var result []VnfPlacement
	for _, r := range d.Routes {
		for _, p := range r.Placements {
			if seen[p] {
				continue
			}
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

// Solution is the immutable result of one solve call
type Solution struct {
	Strategy   string           `json:"strategy"`
	Goal       Goal             `json:"goal"`
	Demands    []DemandSolution `json:"demands"`
	Objective  float64          `json:"objective"`
	LowerBound float64          `json:"lower_bound"`
}

// Feasible is true iff every demand was placed
func (s *Solution) Feasible() bool {
	for _, d := range s.Demands {
		if !d.Feasible {
			return false
		}
	}
	return true
}

// FeasibleCount returns the number of placed demands
func (s *Solution) FeasibleCount() int {
	n := 0
	for _, d := range s.Demands {
		if d.Feasible {
			n++
		}
	}
	return n
}

// Load returns the volume carried per directed edge key. Routes of one demand
// that traverse the same edge at the same layer carry the flow once.
func (s *Solution) Load() map[string]float64 {
	load := make(map[string]float64)
	for _, d := range s.Demands {
		if !d.Feasible {
			continue
		}
		for _, hop := range distinctHops(d.Routes) {
			load[hop.edge.Key()] += d.Demand.Volume
		}
	}
	return load
}

type hop struct {
	edge  topology.Edge
	layer int
}

// distinctHops returns the (edge, layer) pairs of the routes in first-use order
func distinctHops(routes []Route) []hop {
	seen := make(map[string]map[int]bool)
	var result []hop
	for _, r := range routes {
		for i, e := range r.Edges {
			layer := 0
			if i < len(r.Layers) {
				layer = r.Layers[i]
			}
			if seen[e.Key()] == nil {
				seen[e.Key()] = make(map[int]bool)
			}
			if seen[e.Key()][layer] {
				continue
			}
			seen[e.Key()][layer] = true
			result = append(result, hop{edge: e, layer: layer})
		}
	}
	return result
}

// Verify checks the structure of every feasible demand: one contiguous route
// per egress over topology edges, starting at the ingress, with placements at
// hosting vertices reproducing the chain in order along the path.
func Verify(req *Request, sol *Solution) error {
	if len(sol.Demands) != len(req.Demands) {
		return fmt.Errorf("%w: %d demand results for %d demands", ErrInvalidRoute, len(sol.Demands), len(req.Demands))
	}
	for i, ds := range sol.Demands {
		if !ds.Feasible {
			continue
		}
		d := req.Demands[i]
		if len(ds.Routes) != len(d.Egress) {
			return fmt.Errorf("%w: demand %s has %d routes for %d egress", ErrInvalidRoute, d.ID, len(ds.Routes), len(d.Egress))
		}
		for j, r := range ds.Routes {
			if r.Egress != d.Egress[j] {
				return fmt.Errorf("%w: demand %s route %d ends at %s, want %s", ErrInvalidRoute, d.ID, j, r.Egress, d.Egress[j])
			}
			if err := VerifyRoute(req.Topology, d, r); err != nil {
				return fmt.Errorf("demand %s egress %s: %w", d.ID, r.Egress, err)
			}
		}
	}
	return nil
}

// VerifyRoute checks a single route of demand d
func VerifyRoute(topo *topology.Topology, d traffic.Demand, r Route) error {
	if len(r.Layers) != len(r.Edges) {
		return fmt.Errorf("%w: %d layers for %d edges", ErrInvalidRoute, len(r.Layers), len(r.Edges))
	}
	at := d.Ingress
	for i, e := range r.Edges {
		if _, ok := topo.Edge(e.Src, e.Dst); !ok {
			return fmt.Errorf("%w: edge %s not in topology", ErrInvalidRoute, e.Key())
		}
		if e.Src != at {
			return fmt.Errorf("%w: edge %s does not continue at %s", ErrInvalidRoute, e.Key(), at)
		}
		if r.Layers[i] < 0 || r.Layers[i] > len(d.Sfc) || (i > 0 && r.Layers[i] < r.Layers[i-1]) {
			return fmt.Errorf("%w: bad layer %d at edge %s", ErrInvalidRoute, r.Layers[i], e.Key())
		}
		at = e.Dst
	}
	if at != r.Egress {
		return fmt.Errorf("%w: path ends at %s", ErrInvalidRoute, at)
	}

	if len(r.Placements) != len(d.Sfc) {
		return fmt.Errorf("%w: %d placements for chain of %d", ErrInvalidRoute, len(r.Placements), len(d.Sfc))
	}
	for k, p := range r.Placements {
		if p.Type != d.Sfc[k] {
			return fmt.Errorf("%w: placement %d is %s, want %s", ErrInvalidRoute, k, p.Type, d.Sfc[k])
		}
		want := placementVertex(d.Ingress, r, k)
		if p.Vertex != want {
			return fmt.Errorf("%w: %s placed at %s, path reaches it at %s", ErrInvalidRoute, p.Type, p.Vertex, want)
		}
		if !topo.CanHost(p.Vertex) {
			return fmt.Errorf("%w: %s cannot host %s", ErrInvalidRoute, p.Vertex, p.Type)
		}
	}
	return nil
}

// placementVertex returns the vertex at which chain element k is applied
// according to the layer annotation of the route
func placementVertex(ingress string, r Route, k int) string {
	at := ingress
	for i, e := range r.Edges {
		if r.Layers[i] > k {
			return at
		}
		at = e.Dst
	}
	return at
}
