package common

import "context"

// Solver places the SFCs of all demands of a request. Infeasible demands are
// reported in the solution; an error means the request itself was rejected or
// the context ended.
type Solver interface {
	Solve(ctx context.Context, req *Request) (*Solution, error)
}

// Options parameterize solver construction through the registry
type Options struct {
	Goal         Goal  `json:"goal" toml:"goal"`
	DoubleEdges  bool  `json:"double_edges" toml:"double_edges"`
	Seed         int64 `json:"seed" toml:"seed"`
	MaxWalkSteps int   `json:"max_walk_steps" toml:"max_walk_steps"`
}

// Factory builds a configured solver
type Factory func(opts Options) (Solver, error)
