package optimization

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"sfcplacement/placement/common"
	"sfcplacement/topology"
)

const (
	StrategyName = "optimization"

	DefaultTolerance    = 1e-9
	DefaultMaxColumns   = 400
	DefaultRelaxTimeout = 10 * time.Second
)

var errRelaxTimeout = errors.New("relaxation time budget exceeded")

// Solver routes all demands jointly. The multi-commodity relaxation over the
// layered graphs decides which demands fit and guides the rounding into one
// route per egress.
type Solver struct {
	goal         common.Goal
	doubleEdges  bool
	tolerance    float64
	maxColumns   int
	relaxTimeout time.Duration
}

type Option func(*Solver)

func WithGoal(goal common.Goal) Option {
	return func(s *Solver) {
		if goal != "" {
			s.goal = goal
		}
	}
}

// WithDoubleEdges gives each direction of a link its own capacity. Without it
// both directions share the capacity of the link.
func WithDoubleEdges(on bool) Option {
	return func(s *Solver) {
		s.doubleEdges = on
	}
}

func WithTolerance(tol float64) Option {
	return func(s *Solver) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// WithMaxColumns bounds the size of one relaxation. A joint model above the
// limit is relaxed demand by demand; a single demand above it is rounded
// without guidance.
func WithMaxColumns(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.maxColumns = n
		}
	}
}

// WithRelaxTimeout bounds the time of one simplex run
func WithRelaxTimeout(d time.Duration) Option {
	return func(s *Solver) {
		if d > 0 {
			s.relaxTimeout = d
		}
	}
}

func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		goal:         common.LoadBalancing,
		tolerance:    DefaultTolerance,
		maxColumns:   DefaultMaxColumns,
		relaxTimeout: DefaultRelaxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Solver) Goal() common.Goal {
	return s.goal
}

func (s *Solver) Solve(ctx context.Context, req *common.Request) (*common.Solution, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("optimization: %w", err)
	}

	ledger := common.NewLedger(req.Topology, req.Weigher, !s.doubleEdges)
	usable := func(e topology.Edge) bool {
		g := ledger.Group(e)
		return g != nil && g.Capacity > common.CapacityEps
	}

	results := make([]common.DemandSolution, len(req.Demands))
	var candidates []*demandModel
	for i, d := range req.Demands {
		results[i] = common.DemandSolution{Demand: d}
		dm, reason := prepareDemand(req.Topology, usable, i, d)
		if dm == nil {
			results[i].Reason = reason
			continue
		}
		candidates = append(candidates, dm)
	}

	admitted, bound, err := s.admit(ctx, candidates, ledger, req.Weigher)
	switch {
	case err == nil:
		for _, dm := range admitted {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s.roundDemand(dm, ledger, req.Weigher, results)
		}
	case errors.Is(err, errModelTooLarge):
		log.Infof("optimization: %v, relaxing %d demands one at a time", err, len(candidates))
		bound = 0
		if err := s.solveSequential(ctx, candidates, ledger, req.Weigher, results); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	for i := range results {
		if !results[i].Feasible && results[i].Reason == "" {
			results[i].Reason = "relaxation infeasible within link capacities"
		}
	}

	sol := &common.Solution{
		Strategy:   StrategyName,
		Goal:       s.goal,
		Demands:    results,
		LowerBound: bound,
	}
	sol.Objective = common.Evaluate(s.goal, ledger, sol, req.Weigher)
	log.Infof("optimization: solved %d/%d demands, goal %s, objective %.4f, relaxation %.4f",
		sol.FeasibleCount(), len(results), s.goal, sol.Objective, sol.LowerBound)
	return sol, nil
}

func (s *Solver) roundDemand(dm *demandModel, ledger *common.Ledger, w topology.LinkWeigher, results []common.DemandSolution) {
	routes, err := round(dm, ledger, w, s.goal)
	if err != nil {
		log.Debugf("optimization: rounding failed for demand %s: %v", dm.demand.ID, err)
		results[dm.index].Reason = err.Error()
		return
	}
	results[dm.index].Feasible = true
	results[dm.index].Routes = routes
}

// admit solves the joint relaxation. If it is infeasible the demands are
// admitted one by one in request order and those that break feasibility are
// left out. A model above the column limit is reported with errModelTooLarge.
// Any other simplex failure drops the guidance and admits all.
func (s *Solver) admit(ctx context.Context, dms []*demandModel, ledger *common.Ledger, w topology.LinkWeigher) ([]*demandModel, float64, error) {
	bound, err := s.relax(ctx, dms, ledger, w)
	switch {
	case err == nil:
		return dms, bound, nil
	case errors.Is(err, errModelTooLarge) || ctx.Err() != nil:
		return nil, 0, err
	case !errors.Is(err, lp.ErrInfeasible):
		log.Warnf("optimization: relaxation failed, rounding without guidance: %v", err)
		clearGuidance(dms)
		return dms, 0, nil
	}

	log.Infof("optimization: joint relaxation infeasible, admitting %d demands one by one", len(dms))
	var admitted []*demandModel
	for _, dm := range dms {
		trial := append(append([]*demandModel(nil), admitted...), dm)
		_, err := s.relax(ctx, trial, ledger, w)
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if errors.Is(err, lp.ErrInfeasible) {
			log.Debugf("optimization: demand %s rejected by relaxation", dm.demand.ID)
			continue
		}
		admitted = trial
	}

	bound, err = s.relax(ctx, admitted, ledger, w)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, 0, ctxErr
	}
	if err != nil {
		log.Warnf("optimization: relaxation of admitted demands failed, rounding without guidance: %v", err)
		clearGuidance(admitted)
		bound = 0
	}
	return admitted, bound, nil
}

// solveSequential relaxes and rounds one demand at a time in request order,
// each against the capacity left by the demands before it
func (s *Solver) solveSequential(ctx context.Context, dms []*demandModel, ledger *common.Ledger, w topology.LinkWeigher, results []common.DemandSolution) error {
	for _, dm := range dms {
		_, err := s.relax(ctx, []*demandModel{dm}, ledger, w)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err == nil:
		case errors.Is(err, lp.ErrInfeasible):
			log.Debugf("optimization: demand %s rejected by relaxation on residual capacity", dm.demand.ID)
			results[dm.index].Reason = "relaxation infeasible within residual link capacities"
			continue
		default:
			log.Debugf("optimization: rounding demand %s without guidance: %v", dm.demand.ID, err)
			clearGuidance([]*demandModel{dm})
		}
		s.roundDemand(dm, ledger, w, results)
	}
	return nil
}

// relax builds and solves the relaxation of dms and stores the flow guidance
func (s *Solver) relax(ctx context.Context, dms []*demandModel, ledger *common.Ledger, w topology.LinkWeigher) (float64, error) {
	m := buildModel(s.goal, dms, ledger, w)
	if len(m.c) > s.maxColumns {
		return 0, fmt.Errorf("%w: %d columns, limit %d", errModelTooLarge, len(m.c), s.maxColumns)
	}

	relaxCtx, cancel := context.WithTimeout(ctx, s.relaxTimeout)
	defer cancel()
	x, bound, err := m.solve(relaxCtx, s.tolerance)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %v", errRelaxTimeout, s.relaxTimeout)
		}
		return 0, err
	}
	assign(dms, x)
	log.Debugf("optimization: relaxation with %d rows, %d columns, value %.6f", len(m.rows), len(m.c), bound)
	return bound, nil
}
