package traffic

import (
	"errors"
	"math/rand"
)

var ErrIncompleteDemand = errors.New("incomplete demand")

// DemandBuilder assembles hand-written demand lists. Set the fields of the
// current demand, call Create, repeat; Generate returns the list.
type DemandBuilder struct {
	ingress string
	egress  []string
	sfc     Sfc
	sfcSet  bool
	volume  float64

	demands []Demand
	err     error
}

func NewDemandBuilder() *DemandBuilder {
	return &DemandBuilder{}
}

func (b *DemandBuilder) Ingress(id string) *DemandBuilder {
	b.ingress = id
	return b
}

func (b *DemandBuilder) Egress(ids ...string) *DemandBuilder {
	b.egress = append([]string(nil), ids...)
	return b
}

func (b *DemandBuilder) AddEgress(id string) *DemandBuilder {
	b.egress = append(b.egress, id)
	return b
}

func (b *DemandBuilder) Sfc(types ...VnfType) *DemandBuilder {
	b.sfc = append(Sfc{}, types...)
	b.sfcSet = true
	return b
}

func (b *DemandBuilder) Volume(v float64) *DemandBuilder {
	b.volume = v
	return b
}

// RandomEndpoints picks an ingress and egressCount distinct egress vertices
func (b *DemandBuilder) RandomEndpoints(rng *rand.Rand, egressCount int, vertices []string) *DemandBuilder {
	if egressCount < 1 || egressCount+1 > len(vertices) {
		b.fail(ErrNotEnoughVertices)
		return b
	}
	ids := pick(rng, vertices, egressCount+1)
	b.ingress = ids[0]
	b.egress = ids[1:]
	return b
}

// RandomSfc picks a chain of n distinct VNF types
func (b *DemandBuilder) RandomSfc(rng *rand.Rand, n int) *DemandBuilder {
	if n < 0 || n > len(AllVnfTypes) {
		b.fail(ErrIncompleteDemand)
		return b
	}
	b.sfc = distinctSfc(rng, n)
	b.sfcSet = true
	return b
}

// Create finishes the current demand and resets the build state
func (b *DemandBuilder) Create() *DemandBuilder {
	switch {
	case b.err != nil:
		return b
	case b.ingress == "":
		b.fail(errors.Join(ErrIncompleteDemand, errors.New("no ingress vertex was set")))
	case len(b.egress) == 0:
		b.fail(errors.Join(ErrIncompleteDemand, errors.New("no egress vertices were set")))
	case b.volume <= 0:
		b.fail(errors.Join(ErrIncompleteDemand, errors.New("demand volume must be positive")))
	case !b.sfcSet:
		b.fail(errors.Join(ErrIncompleteDemand, errors.New("no sfc was set")))
	default:
		b.demands = append(b.demands, NewDemand(b.sfc, b.ingress, b.egress, b.volume))
	}
	b.ingress, b.egress, b.sfc, b.sfcSet, b.volume = "", nil, nil, false, 0
	return b
}

// Generate returns the created demands or the first build error. rng is unused.
func (b *DemandBuilder) Generate(*rand.Rand) ([]Demand, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]Demand(nil), b.demands...), nil
}

func (b *DemandBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
