package traffic

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfcplacement/topology"
)

const (
	edgeBandwidth = 10
	edgeDelay     = 1
)

func loadReference(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.LoadFile("../topology/testdata/ref8.toml")
	require.NoError(t, err)
	return topo
}

func TestRandomGeneratorProperties(t *testing.T) {
	topo := loadReference(t)
	weigher := topology.NewConstantLinkWeigher(edgeBandwidth, edgeDelay)
	gen := NewRandomGenerator(topo, weigher)

	var generated atomic.Int64
	err := RunTrials(context.Background(), 10000, 8, func(trial int) error {
		rng := rand.New(rand.NewSource(int64(trial)))
		demands, err := gen.Generate(rng)
		if err != nil {
			return err
		}
		if len(demands) == 0 {
			return errors.New("no demand generated")
		}

		sum := 0.0
		for _, d := range demands {
			if len(d.Egress) < 1 {
				return errors.New("egress set is empty")
			}
			if d.HasEgress(d.Ingress) {
				return errors.New("ingress is contained in egress")
			}
			if !topo.HasVertex(d.Ingress) {
				return errors.New("unknown ingress")
			}
			for _, e := range d.Egress {
				if !topo.HasVertex(e) {
					return errors.New("unknown egress")
				}
			}
			if d.Volume < 1 {
				return errors.New("volume below 1")
			}
			seen := map[VnfType]bool{}
			for _, v := range d.Sfc {
				if seen[v] || !v.Valid() {
					return errors.New("invalid sfc")
				}
				seen[v] = true
			}
			sum += d.Volume
		}
		if sum > edgeBandwidth {
			return errors.New("overall demand sum is larger than edge bandwidth")
		}
		generated.Add(int64(len(demands)))
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, generated.Load(), int64(10000))
}

func TestRandomGeneratorDeterministic(t *testing.T) {
	topo := loadReference(t)
	gen := NewRandomGenerator(topo, topology.NewConstantLinkWeigher(edgeBandwidth, edgeDelay))

	a, err := gen.Generate(rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := gen.Generate(rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Ingress, b[i].Ingress)
		assert.Equal(t, a[i].Egress, b[i].Egress)
		assert.Equal(t, a[i].Sfc, b[i].Sfc)
		assert.Equal(t, a[i].Volume, b[i].Volume)
		assert.NotEqual(t, a[i].ID, b[i].ID)
	}
}

func TestRandomGeneratorDegenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	weigher := topology.NewConstantLinkWeigher(edgeBandwidth, edgeDelay)

	single, err := topology.NewBuilder().AddVertex("a").Build()
	require.NoError(t, err)
	demands, err := NewRandomGenerator(single, weigher).Generate(rng)
	require.NoError(t, err)
	assert.Empty(t, demands)

	noEdges, err := topology.NewBuilder().AddVertex("a").AddVertex("b").Build()
	require.NoError(t, err)
	demands, err = NewRandomGenerator(noEdges, weigher).Generate(rng)
	require.NoError(t, err)
	assert.Empty(t, demands)

	thin, err := topology.NewBuilder().AddVertex("a").AddVertex("b").
		AddLink("a", "b", topology.Weight{Bandwidth: 0.5, Delay: 1}).Build()
	require.NoError(t, err)
	demands, err = NewRandomGenerator(thin, topology.AnnotatedLinkWeigher{}).Generate(rng)
	require.NoError(t, err)
	assert.Empty(t, demands)
}

func TestRandomGeneratorTwoVertices(t *testing.T) {
	topo, err := topology.NewBuilder().AddVertex("a").AddVertex("b").
		AddLink("a", "b", topology.Weight{Bandwidth: 3, Delay: 1}).Build()
	require.NoError(t, err)
	gen := NewRandomGenerator(topo, topology.AnnotatedLinkWeigher{})
	gen.NoSfc = true

	demands, err := gen.Generate(rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.NotEmpty(t, demands)
	sum := 0.0
	for _, d := range demands {
		require.Len(t, d.Egress, 1)
		assert.NotEqual(t, d.Ingress, d.Egress[0])
		assert.Empty(t, d.Sfc)
		sum += d.Volume
	}
	assert.Equal(t, 3.0, sum)
}

func TestScaleGenerator(t *testing.T) {
	gen := &ScaleGenerator{
		Vertices:        []string{"s1", "s2", "s3", "s4", "s5"},
		Demands:         6,
		EgressPerDemand: 3,
		SfcLength:       2,
		Volume:          2,
	}
	demands, err := gen.Generate(rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	require.Len(t, demands, 6)
	for _, d := range demands {
		assert.Len(t, d.Egress, 3)
		assert.False(t, d.HasEgress(d.Ingress))
		assert.Len(t, d.Sfc, 2)
		assert.NotEqual(t, d.Sfc[0], d.Sfc[1])
		assert.Equal(t, 2.0, d.Volume)
	}

	gen.EgressPerDemand = 5
	_, err = gen.Generate(rand.New(rand.NewSource(3)))
	assert.ErrorIs(t, err, ErrNotEnoughVertices)

	gen.EgressPerDemand = 1
	gen.SfcLength = 4
	_, err = gen.Generate(rand.New(rand.NewSource(3)))
	assert.Error(t, err)
}

func TestDemandBuilder(t *testing.T) {
	demands, err := NewDemandBuilder().
		Ingress("s10").Egress("s6").Sfc().Volume(9).Create().
		Ingress("s7").Egress("s1", "s6").AddEgress("s8").AddEgress("s1").Sfc(Transcoder).Volume(1).Create().
		Generate(nil)
	require.NoError(t, err)
	require.Len(t, demands, 2)

	assert.Equal(t, "s10", demands[0].Ingress)
	assert.Equal(t, []string{"s6"}, demands[0].Egress)
	assert.Empty(t, demands[0].Sfc)
	assert.Equal(t, 9.0, demands[0].Volume)

	assert.Equal(t, []string{"s1", "s6", "s8"}, demands[1].Egress)
	assert.Equal(t, Sfc{Transcoder}, demands[1].Sfc)
	assert.NotEqual(t, demands[0].ID, demands[1].ID)
}

func TestNewDemand(t *testing.T) {
	testCases := []struct {
		name   string
		sfc    Sfc
		egress []string
		want   Sfc
		json   string
	}{
		{"nil chain", nil, []string{"b"}, Sfc{}, `"sfc":[]`},
		{"empty chain", Sfc{}, []string{"b"}, Sfc{}, `"sfc":[]`},
		{"chain", Sfc{Transcoder, Firewall}, []string{"b", "c", "b"}, Sfc{Transcoder, Firewall}, `"sfc":["TRANSCODER","FIREWALL"]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDemand(tc.sfc, "a", tc.egress, 1)
			require.NotNil(t, d.Sfc)
			assert.Equal(t, tc.want, d.Sfc)
			assert.NotEmpty(t, d.ID)
			assert.False(t, d.HasEgress("a"))

			data, err := json.Marshal(d)
			require.NoError(t, err)
			assert.Contains(t, string(data), tc.json)
		})
	}

	sfc := Sfc{Firewall}
	d := NewDemand(sfc, "a", []string{"b"}, 1)
	sfc[0] = Transcoder
	assert.Equal(t, Sfc{Firewall}, d.Sfc)
}

func TestDemandBuilderErrors(t *testing.T) {
	testCases := []struct {
		name    string
		builder *DemandBuilder
	}{
		{"no ingress", NewDemandBuilder().Egress("a").Sfc().Volume(1).Create()},
		{"no egress", NewDemandBuilder().Ingress("a").Sfc().Volume(1).Create()},
		{"no volume", NewDemandBuilder().Ingress("a").Egress("b").Sfc().Create()},
		{"no sfc", NewDemandBuilder().Ingress("a").Egress("b").Volume(1).Create()},
		{"sfc too long", NewDemandBuilder().RandomSfc(rand.New(rand.NewSource(1)), 4)},
		{"too few vertices", NewDemandBuilder().RandomEndpoints(rand.New(rand.NewSource(1)), 2, []string{"a", "b"})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Generate(nil)
			assert.Error(t, err)
		})
	}
}

func TestDemandBuilderRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	demands, err := NewDemandBuilder().
		RandomEndpoints(rng, 2, []string{"a", "b", "c", "d"}).
		RandomSfc(rng, 3).
		Volume(1).
		Create().
		Generate(nil)
	require.NoError(t, err)
	require.Len(t, demands, 1)
	d := demands[0]
	assert.Len(t, d.Egress, 2)
	assert.False(t, d.HasEgress(d.Ingress))
	assert.ElementsMatch(t, AllVnfTypes, []VnfType(d.Sfc))
}

func TestParseVnfType(t *testing.T) {
	v, err := ParseVnfType("FIREWALL")
	require.NoError(t, err)
	assert.Equal(t, Firewall, v)

	_, err = ParseVnfType("firewall")
	assert.Error(t, err)
}

func TestRunTrialsStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int64
	err := RunTrials(context.Background(), 1000, 2, func(trial int) error {
		ran.Add(1)
		if trial == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, ran.Load(), int64(1000))
}

func TestRunTrialsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunTrials(ctx, 10, 2, func(int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
