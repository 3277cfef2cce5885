package traffic

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"sfcplacement/topology"
)

var ErrNotEnoughVertices = errors.New("not enough vertices")

// Generator produces a demand set. Implementations draw all randomness from rng
// so independent calls with independent sources share no state.
type Generator interface {
	Generate(rng *rand.Rand) ([]Demand, error)
}

// RandomGenerator draws demands until the volume budget given by the smallest
// edge bandwidth is used up.
type RandomGenerator struct {
	Topology *topology.Topology
	Weigher  topology.LinkWeigher
	// NoSfc generates pure routing demands with empty chains
	NoSfc bool
}

func NewRandomGenerator(topo *topology.Topology, weigher topology.LinkWeigher) *RandomGenerator {
	return &RandomGenerator{Topology: topo, Weigher: weigher}
}

func (g *RandomGenerator) Generate(rng *rand.Rand) ([]Demand, error) {
	if g.Topology == nil || g.Topology.VertexCount() < 2 {
		return nil, nil
	}
	minBw, ok := topology.MinBandwidth(g.Topology, g.Weigher)
	if !ok {
		return nil, nil
	}

	remaining := int(math.Floor(minBw))
	vertices := g.Topology.Vertices()
	var demands []Demand

	for remaining > 0 {
		ingress := vertices[rng.Intn(len(vertices))].ID

		candidates := make([]string, 0, len(vertices)-1)
		for _, v := range vertices {
			if v.ID != ingress {
				candidates = append(candidates, v.ID)
			}
		}
		egress := pick(rng, candidates, 1+rng.Intn(len(candidates)))

		volume := 1 + rng.Intn(remaining)
		remaining -= volume

		var sfc Sfc
		if !g.NoSfc {
			sfc = randomSfc(rng)
		}
		demands = append(demands, NewDemand(sfc, ingress, egress, float64(volume)))
	}

	log.Debugf("demand generator: generated %d demands within bandwidth %.2f", len(demands), minBw)
	return demands, nil
}

// randomSfc makes up to three draws over the VNF types plus "nothing",
// skipping types already in the chain
func randomSfc(rng *rand.Rand) Sfc {
	sfc := Sfc{}
	draws := 1 + rng.Intn(3)
	for i := 0; i < draws; i++ {
		n := rng.Intn(len(AllVnfTypes) + 1)
		if n == len(AllVnfTypes) {
			continue
		}
		if t := AllVnfTypes[n]; !sfc.Contains(t) {
			sfc = append(sfc, t)
		}
	}
	return sfc
}

// pick returns k distinct elements of ids in random order
func pick(rng *rand.Rand, ids []string, k int) []string {
	pool := append([]string(nil), ids...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:k]
}

// ScaleGenerator produces a fixed number of demands with fixed fan-out, chain
// length and volume, for scalability runs.
type ScaleGenerator struct {
	Vertices        []string
	Demands         int
	EgressPerDemand int
	SfcLength       int
	Volume          float64
}

func (g *ScaleGenerator) Generate(rng *rand.Rand) ([]Demand, error) {
	if g.EgressPerDemand < 1 || g.EgressPerDemand+1 > len(g.Vertices) {
		return nil, fmt.Errorf("%w: cannot choose %d egress and an ingress from %d vertices",
			ErrNotEnoughVertices, g.EgressPerDemand, len(g.Vertices))
	}
	if g.SfcLength < 0 || g.SfcLength > len(AllVnfTypes) {
		return nil, fmt.Errorf("cannot build a chain of %d distinct vnfs from %d types", g.SfcLength, len(AllVnfTypes))
	}
	if g.Volume <= 0 {
		return nil, fmt.Errorf("demand volume must be positive, got %.2f", g.Volume)
	}

	demands := make([]Demand, 0, g.Demands)
	for i := 0; i < g.Demands; i++ {
		ids := pick(rng, g.Vertices, g.EgressPerDemand+1)
		demands = append(demands, NewDemand(distinctSfc(rng, g.SfcLength), ids[0], ids[1:], g.Volume))
	}
	return demands, nil
}

// distinctSfc draws n distinct VNF types
func distinctSfc(rng *rand.Rand, n int) Sfc {
	types := make([]string, len(AllVnfTypes))
	for i, t := range AllVnfTypes {
		types[i] = string(t)
	}
	sfc := make(Sfc, 0, n)
	for _, t := range pick(rng, types, n) {
		sfc = append(sfc, VnfType(t))
	}
	return sfc
}
