package common

import "fmt"

// Goal selects the objective of the optimization solver
type Goal string

const (
	// LoadBalancing minimizes the maximum link utilization
	LoadBalancing Goal = "LOAD_BALANCING"
	// LoadReduction minimizes the sum of link utilizations
	LoadReduction Goal = "LOAD_REDUCTION"
	// DelayReduction minimizes the summed delay of all routes
	DelayReduction Goal = "DELAY_REDUCTION"
)

var Goals = []Goal{LoadBalancing, LoadReduction, DelayReduction}

func ParseGoal(s string) (Goal, error) {
	for _, g := range Goals {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown optimization goal %q", s)
}
