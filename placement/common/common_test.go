package common

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfcplacement/topology"
	"sfcplacement/traffic"
)

func lineTopology(t *testing.T) *topology.Topology {
	t.Helper()
	w := topology.Weight{Bandwidth: 10, Delay: 1}
	topo, err := topology.NewBuilder().
		AddVertex("a").AddPop("b", "FIREWALL").AddVertex("c").
		AddLink("a", "b", w).AddLink("b", "c", w).
		Build()
	require.NoError(t, err)
	return topo
}

func edge(t *testing.T, topo *topology.Topology, src, dst string) topology.Edge {
	t.Helper()
	e, ok := topo.Edge(src, dst)
	require.True(t, ok, "edge %s->%s", src, dst)
	return e
}

func TestNewRequestValidation(t *testing.T) {
	topo := lineTopology(t)
	weigher := topology.NewConstantLinkWeigher(10, 1)

	testCases := []struct {
		name    string
		topo    *topology.Topology
		weigher topology.LinkWeigher
		demand  traffic.Demand
		wantErr error
	}{
		{"nil topology", nil, weigher, traffic.NewDemand(nil, "a", []string{"c"}, 1), ErrNilTopology},
		{"nil weigher", topo, nil, traffic.NewDemand(nil, "a", []string{"c"}, 1), ErrNilWeigher},
		{"unknown ingress", topo, weigher, traffic.NewDemand(nil, "x", []string{"c"}, 1), topology.ErrUnknownVertex},
		{"unknown egress", topo, weigher, traffic.NewDemand(nil, "a", []string{"c", "y"}, 1), topology.ErrUnknownVertex},
		{"empty egress", topo, weigher, traffic.NewDemand(nil, "a", nil, 1), ErrInvalidDemand},
		{"zero volume", topo, weigher, traffic.NewDemand(nil, "a", []string{"c"}, 0), ErrInvalidDemand},
		{"bad vnf", topo, weigher, traffic.NewDemand(traffic.Sfc{"NAT"}, "a", []string{"c"}, 1), ErrInvalidDemand},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRequest(tc.topo, []traffic.Demand{tc.demand}, tc.weigher)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	req, err := NewRequest(topo, []traffic.Demand{traffic.NewDemand(nil, "a", []string{"c"}, 1)}, weigher)
	require.NoError(t, err)
	assert.Len(t, req.Demands, 1)
}

func TestLedgerGroups(t *testing.T) {
	topo := lineTopology(t)
	weigher := topology.NewConstantLinkWeigher(10, 1)
	ab := edge(t, topo, "a", "b")
	ba := edge(t, topo, "b", "a")

	double := NewLedger(topo, weigher, false)
	assert.Len(t, double.Groups(), 4)
	assert.NotSame(t, double.Group(ab), double.Group(ba))

	shared := NewLedger(topo, weigher, true)
	assert.Len(t, shared.Groups(), 2)
	assert.Same(t, shared.Group(ab), shared.Group(ba))
	assert.Equal(t, "a->b", GroupKey(topo, ba, true))
}

func TestUsageCommitAndRelease(t *testing.T) {
	topo := lineTopology(t)
	l := NewLedger(topo, topology.NewConstantLinkWeigher(10, 1), true)
	ab := edge(t, topo, "a", "b")
	ba := edge(t, topo, "b", "a")
	bc := edge(t, topo, "b", "c")

	u := l.NewUsage(6)
	require.NoError(t, u.Commit([]topology.Edge{ab, bc}, []int{0, 0}))
	assert.InDelta(t, 4, l.Residual(ab), 1e-12)
	assert.True(t, u.Holds(ab, 0))
	assert.False(t, u.Holds(ab, 1))
	assert.True(t, u.HoldsEdge(ab))

	// a second route of the same demand over the same hop is free
	require.NoError(t, u.Commit([]topology.Edge{ab}, []int{0}))
	assert.InDelta(t, 4, l.Residual(ab), 1e-12)

	// the same edge at another layer carries the flow again and does not fit
	assert.False(t, u.Eligible(ab, 1))
	err := u.Commit([]topology.Edge{ab}, []int{1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// half duplex: the reverse direction shares the 10 units
	other := l.NewUsage(5)
	assert.False(t, other.Eligible(ba, 0))
	err = other.Commit([]topology.Edge{bc, ba}, []int{0, 0})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.InDelta(t, 4, l.Residual(bc), 1e-12, "failed commit must not change the ledger")

	assert.InDelta(t, 0.6, l.MaxUtilization(), 1e-12)
	assert.InDelta(t, 1.2, l.SumUtilization(), 1e-12)

	u.Release()
	assert.InDelta(t, 10, l.Residual(ab), 1e-12)
	assert.Equal(t, 0.0, l.MaxUtilization())
	assert.False(t, u.HoldsEdge(ab))
}

func TestGroupUtilizationWithoutCapacity(t *testing.T) {
	g := &Group{Capacity: 0, Load: 1}
	assert.True(t, math.IsInf(g.Utilization(), 1))
	g.Load = 0
	assert.Equal(t, 0.0, g.Utilization())
}

func TestVerifyAndLoad(t *testing.T) {
	topo := lineTopology(t)
	weigher := topology.NewConstantLinkWeigher(10, 1)
	d := traffic.NewDemand(traffic.Sfc{traffic.Firewall}, "a", []string{"c", "b"}, 3)
	req, err := NewRequest(topo, []traffic.Demand{d}, weigher)
	require.NoError(t, err)

	ab := edge(t, topo, "a", "b")
	bc := edge(t, topo, "b", "c")
	fw := VnfPlacement{Vertex: "b", Type: traffic.Firewall, HwAccelerated: true}
	sol := &Solution{Demands: []DemandSolution{{
		Demand:   d,
		Feasible: true,
		Routes: []Route{
			{Egress: "c", Edges: []topology.Edge{ab, bc}, Layers: []int{0, 1}, Placements: []VnfPlacement{fw}},
			{Egress: "b", Edges: []topology.Edge{ab}, Layers: []int{0}, Placements: []VnfPlacement{fw}},
		},
	}}}

	require.NoError(t, Verify(req, sol))
	assert.True(t, sol.Feasible())
	assert.Equal(t, 1, sol.FeasibleCount())
	assert.Equal(t, []VnfPlacement{fw}, sol.Demands[0].Placements())
	assert.Equal(t, map[string]float64{"a->b": 3, "b->c": 3}, sol.Load())
	assert.Equal(t, []string{"a", "b", "c"}, sol.Demands[0].Routes[0].Vertices("a"))

	l, err := Replay(req, sol, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, Evaluate(LoadBalancing, l, sol, weigher), 1e-12)
	assert.InDelta(t, 0.6, Evaluate(LoadReduction, l, sol, weigher), 1e-12)
	assert.InDelta(t, 3, Evaluate(DelayReduction, l, sol, weigher), 1e-12)

	keys, loads := l.Loads()
	assert.Equal(t, []string{"a->b", "b->a", "b->c", "c->b"}, keys)
	assert.Equal(t, 3.0, loads["a->b"])
}

func TestVerifyRejects(t *testing.T) {
	topo := lineTopology(t)
	d := traffic.NewDemand(traffic.Sfc{traffic.Firewall}, "a", []string{"c"}, 1)
	ab := edge(t, topo, "a", "b")
	bc := edge(t, topo, "b", "c")
	cb := edge(t, topo, "c", "b")
	fwB := VnfPlacement{Vertex: "b", Type: traffic.Firewall}

	testCases := []struct {
		name  string
		route Route
	}{
		{"gap", Route{Egress: "c", Edges: []topology.Edge{ab, cb}, Layers: []int{0, 1}, Placements: []VnfPlacement{fwB}}},
		{"wrong end", Route{Egress: "c", Edges: []topology.Edge{ab}, Layers: []int{0}, Placements: []VnfPlacement{fwB}}},
		{"missing layers", Route{Egress: "c", Edges: []topology.Edge{ab, bc}, Placements: []VnfPlacement{fwB}}},
		{"decreasing layers", Route{Egress: "c", Edges: []topology.Edge{ab, bc}, Layers: []int{1, 0}, Placements: []VnfPlacement{{Vertex: "a", Type: traffic.Firewall}}}},
		{"missing placement", Route{Egress: "c", Edges: []topology.Edge{ab, bc}, Layers: []int{0, 1}}},
		{"wrong type", Route{Egress: "c", Edges: []topology.Edge{ab, bc}, Layers: []int{0, 1}, Placements: []VnfPlacement{{Vertex: "b", Type: traffic.Transcoder}}}},
		{"placement off path position", Route{Egress: "c", Edges: []topology.Edge{ab, bc}, Layers: []int{0, 0}, Placements: []VnfPlacement{fwB}}},
		{"not a pop", Route{Egress: "c", Edges: []topology.Edge{ab, bc}, Layers: []int{0, 0}, Placements: []VnfPlacement{{Vertex: "c", Type: traffic.Firewall}}}},
		{"foreign edge", Route{Egress: "c", Edges: []topology.Edge{{Src: "a", Dst: "c"}}, Layers: []int{0}, Placements: []VnfPlacement{{Vertex: "c", Type: traffic.Firewall}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, VerifyRoute(topo, d, tc.route), ErrInvalidRoute)
		})
	}
}

type stubSolver struct{ opts Options }

func (s *stubSolver) Solve(context.Context, *Request) (*Solution, error) {
	return &Solution{Strategy: "stub", Goal: s.opts.Goal}, nil
}

func TestRegistry(t *testing.T) {
	r := NewSolverRegistry()
	factory := func(opts Options) (Solver, error) { return &stubSolver{opts: opts}, nil }

	require.NoError(t, r.Register("stub", factory))
	assert.Error(t, r.Register("stub", factory))
	require.NoError(t, r.Register("another", factory))
	assert.Equal(t, []string{"another", "stub"}, r.List())

	s, err := r.Get("stub", Options{Goal: DelayReduction})
	require.NoError(t, err)
	sol, err := s.Solve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DelayReduction, sol.Goal)

	_, err = r.Get("missing", Options{})
	assert.Error(t, err)
}

func TestParseGoal(t *testing.T) {
	g, err := ParseGoal("LOAD_REDUCTION")
	require.NoError(t, err)
	assert.Equal(t, LoadReduction, g)
	_, err = ParseGoal("fastest")
	assert.Error(t, err)
}
