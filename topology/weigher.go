package topology

const (
	DefaultBandwidth float64 = 1
	DefaultDelay     float64 = 1
)

// LinkWeigher maps an edge to its bandwidth capacity and delay.
// Implementations must be pure: same edge, same weight.
type LinkWeigher interface {
	Weigh(e Edge) Weight
}

// ConstantLinkWeigher gives every edge the same weight
type ConstantLinkWeigher struct {
	weight Weight
}

// NewConstantLinkWeigher creates a weigher returning (bandwidth, delay) for all edges.
// Non-positive values fall back to the defaults.
func NewConstantLinkWeigher(bandwidth, delay float64) *ConstantLinkWeigher {
	if bandwidth <= 0 {
		bandwidth = DefaultBandwidth
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &ConstantLinkWeigher{weight: Weight{Bandwidth: bandwidth, Delay: delay}}
}

func (w *ConstantLinkWeigher) Weigh(Edge) Weight {
	return w.weight
}

// AnnotatedLinkWeigher returns the weight the edge was built with
type AnnotatedLinkWeigher struct{}

func (AnnotatedLinkWeigher) Weigh(e Edge) Weight {
	return e.Weight
}

// MinBandwidth returns the smallest bandwidth the weigher assigns to any edge of t.
// ok is false when t has no edges.
func MinBandwidth(t *Topology, w LinkWeigher) (min float64, ok bool) {
	for i, e := range t.edges {
		bw := w.Weigh(e).Bandwidth
		if i == 0 || bw < min {
			min = bw
		}
		ok = true
	}
	return min, ok
}
