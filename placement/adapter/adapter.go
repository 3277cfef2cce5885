package adapter

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"sfcplacement/placement/common"
	"sfcplacement/placement/heuristic"
	"sfcplacement/placement/optimization"
)

// SolverAdapter wraps a strategy with run time logging
type SolverAdapter struct {
	name   string
	solver common.Solver
}

func NewSolverAdapter(name string, solver common.Solver) *SolverAdapter {
	return &SolverAdapter{name: name, solver: solver}
}

func (sa *SolverAdapter) Name() string {
	return sa.name
}

// Solve implements common.Solver
func (sa *SolverAdapter) Solve(ctx context.Context, req *common.Request) (*common.Solution, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		log.Warnf("SolverAdapter.Solve: %s rejected request: %v", sa.name, err)
		return nil, err
	}
	log.Infof("SolverAdapter.Solve: starting %s with %d demands on %d vertices, %d edges",
		sa.name, len(req.Demands), req.Topology.VertexCount(), req.Topology.EdgeCount())

	sol, err := sa.solver.Solve(ctx, req)
	if err != nil {
		log.Warnf("SolverAdapter.Solve: %s failed after %v: %v", sa.name, time.Since(start), err)
		return nil, err
	}

	log.Infof("SolverAdapter.Solve: %s completed in %v, feasible %d/%d, objective %.4f",
		sa.name, time.Since(start), sol.FeasibleCount(), len(sol.Demands), sol.Objective)
	return sol, nil
}

// NewHeuristic builds the random walk strategy; a zero seed keeps the time based default
func NewHeuristic(opts common.Options) (common.Solver, error) {
	var options []heuristic.Option
	if opts.Seed != 0 {
		options = append(options, heuristic.WithSeed(opts.Seed))
	}
	options = append(options, heuristic.WithMaxWalkSteps(opts.MaxWalkSteps))
	return NewSolverAdapter(heuristic.StrategyName, heuristic.NewSolver(options...)), nil
}

func NewOptimization(opts common.Options) (common.Solver, error) {
	goal := opts.Goal
	if goal == "" {
		goal = common.LoadBalancing
	}
	if _, err := common.ParseGoal(string(goal)); err != nil {
		return nil, err
	}
	s := optimization.NewSolver(
		optimization.WithGoal(goal),
		optimization.WithDoubleEdges(opts.DoubleEdges),
	)
	return NewSolverAdapter(optimization.StrategyName, s), nil
}

// NewSolver looks up the named strategy in the global registry
func NewSolver(name string, opts common.Options) (common.Solver, error) {
	return common.GetGlobal(name, opts)
}

// Strategies lists the registered strategy names
func Strategies() []string {
	return common.ListGlobal()
}
