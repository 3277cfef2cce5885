package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	log "github.com/sirupsen/logrus"

	"sfcplacement/config"
	"sfcplacement/export"
	"sfcplacement/placement/adapter"
	"sfcplacement/placement/common"
	"sfcplacement/topology"
	"sfcplacement/traffic"
)

type trialResult struct {
	solution *common.Solution
	demands  int
}

func weigherOf(cfg config.TopologyConfig) topology.LinkWeigher {
	if cfg.Annotated {
		return topology.AnnotatedLinkWeigher{}
	}
	return topology.NewConstantLinkWeigher(cfg.Bandwidth, cfg.Delay)
}

// run loads the topology, solves cfg.Traffic.Trials generated demand sets and
// returns the solution of the first trial
func run(ctx context.Context, cfg *config.Config) (*topology.Topology, *common.Solution, error) {
	topo, err := topology.LoadFile(cfg.Topology.File)
	if err != nil {
		return nil, nil, err
	}
	weigher := weigherOf(cfg.Topology)

	gen := traffic.NewRandomGenerator(topo, weigher)
	gen.NoSfc = cfg.Traffic.NoSfc

	var (
		mu      sync.Mutex
		results = make([]trialResult, cfg.Traffic.Trials)
	)
	err = traffic.RunTrials(ctx, cfg.Traffic.Trials, cfg.Traffic.Workers, func(trial int) error {
		rng := rand.New(rand.NewSource(cfg.Traffic.Seed + int64(trial)))
		demands, err := gen.Generate(rng)
		if err != nil {
			return err
		}
		req, err := common.NewRequest(topo, demands, weigher)
		if err != nil {
			return err
		}
		solver, err := adapter.NewSolver(cfg.Solver.Strategy, cfg.Solver.Options)
		if err != nil {
			return err
		}

		solveCtx, cancel := context.WithTimeout(ctx, cfg.Solver.Timeout)
		defer cancel()
		sol, err := solver.Solve(solveCtx, req)
		if err != nil {
			return err
		}
		if err := common.Verify(req, sol); err != nil {
			return fmt.Errorf("solution rejected: %w", err)
		}

		mu.Lock()
		results[trial] = trialResult{solution: sol, demands: len(demands)}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	summarize(cfg.Solver.Strategy, results)

	first := results[0].solution
	if cfg.Export.CSV != "" {
		if err := export.WriteFile(cfg.Export.CSV, first); err != nil {
			return nil, nil, err
		}
	}
	return topo, first, nil
}

func summarize(strategy string, results []trialResult) {
	var demands, feasible int
	objective := 0.0
	for _, r := range results {
		demands += r.demands
		feasible += r.solution.FeasibleCount()
		objective += r.solution.Objective
	}
	log.Infof("%s: %d trials, %d/%d demands placed, mean objective %.4f",
		strategy, len(results), feasible, demands, objective/float64(len(results)))
}
