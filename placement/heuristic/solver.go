package heuristic

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"sfcplacement/placement/common"
	"sfcplacement/topology"
	"sfcplacement/traffic"
)

const (
	StrategyName        = "heuristic"
	DefaultMaxWalkSteps = 10000
)

// Solver is a randomized baseline: every egress of every demand is reached by
// a random walk over edges that still have room for the demand volume.
type Solver struct {
	seed         int64
	maxWalkSteps int
}

type Option func(*Solver)

// WithSeed fixes the random source; every Solve call restarts from it
func WithSeed(seed int64) Option {
	return func(s *Solver) {
		s.seed = seed
	}
}

func WithMaxWalkSteps(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.maxWalkSteps = n
		}
	}
}

func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		seed:         time.Now().UnixNano(),
		maxWalkSteps: DefaultMaxWalkSteps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve places the demands in request order. Capacity committed by earlier
// demands is not available to later ones.
func (s *Solver) Solve(ctx context.Context, req *common.Request) (*common.Solution, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("heuristic: %w", err)
	}

	rng := rand.New(rand.NewSource(s.seed))
	ledger := common.NewLedger(req.Topology, req.Weigher, false)
	sol := &common.Solution{
		Strategy: StrategyName,
		Goal:     common.LoadBalancing,
		Demands:  make([]common.DemandSolution, 0, len(req.Demands)),
	}

	for _, d := range req.Demands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sol.Demands = append(sol.Demands, s.solveDemand(rng, req.Topology, ledger, d))
	}

	sol.Objective = ledger.MaxUtilization()
	log.Infof("heuristic: solved %d/%d demands, max utilization %.4f",
		sol.FeasibleCount(), len(sol.Demands), sol.Objective)
	return sol, nil
}

func (s *Solver) solveDemand(rng *rand.Rand, topo *topology.Topology, ledger *common.Ledger, d traffic.Demand) common.DemandSolution {
	usage := ledger.NewUsage(d.Volume)
	// a held edge is only free at the layer it is held at, which is known
	// after placement; a walk over edges with room always commits
	shared := func(e topology.Edge) bool {
		return usage.HoldsEdge(e) || ledger.Fits(e, d.Volume)
	}
	fresh := func(e topology.Edge) bool {
		return ledger.Fits(e, d.Volume)
	}

	result := common.DemandSolution{Demand: d, Routes: make([]common.Route, 0, len(d.Egress))}
	for _, egress := range d.Egress {
		route, err := s.solveEgress(rng, topo, d, egress, shared)
		if err == nil && !fits(usage, route) {
			log.Debugf("heuristic: demand %s reuses held edges at another layer towards %s, walking again", d.ID, egress)
			route, err = s.solveEgress(rng, topo, d, egress, fresh)
		}
		if err == nil {
			err = usage.Commit(route.Edges, route.Layers)
		}
		if err != nil {
			usage.Release()
			log.Debugf("heuristic: demand %s infeasible at egress %s: %v", d.ID, egress, err)
			return common.DemandSolution{
				Demand: d,
				Reason: fmt.Sprintf("egress %s: %v", egress, err),
			}
		}
		result.Routes = append(result.Routes, route)
	}
	result.Feasible = true
	return result
}

func fits(usage *common.Usage, route common.Route) bool {
	for i, e := range route.Edges {
		if !usage.Eligible(e, route.Layers[i]) {
			return false
		}
	}
	return true
}

func (s *Solver) solveEgress(rng *rand.Rand, topo *topology.Topology, d traffic.Demand, egress string, eligible eligibleFunc) (common.Route, error) {
	path, err := randomWalk(rng, topo, d.Ingress, egress, eligible, s.maxWalkSteps)
	if err != nil {
		return common.Route{}, err
	}

	route := common.Route{Egress: egress, Edges: path}
	vertices := route.Vertices(d.Ingress)
	positions, err := placeChain(topo, vertices, len(d.Sfc))
	if err != nil {
		return common.Route{}, err
	}

	route.Layers = layersOf(len(path), positions)
	route.Placements = make([]common.VnfPlacement, len(d.Sfc))
	for k, vnf := range d.Sfc {
		v := vertices[positions[k]]
		route.Placements[k] = common.VnfPlacement{
			Vertex:        v,
			Type:          vnf,
			HwAccelerated: topo.IsAccelerated(v, string(vnf)),
		}
	}
	return route, nil
}
