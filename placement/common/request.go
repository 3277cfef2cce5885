package common

import (
	"errors"
	"fmt"

	"sfcplacement/topology"
	"sfcplacement/traffic"
)

var (
	ErrNilTopology   = errors.New("request has no topology")
	ErrNilWeigher    = errors.New("request has no link weigher")
	ErrInvalidDemand = errors.New("invalid demand")
)

// Request is the read-only input of one solve call
type Request struct {
	Topology *topology.Topology
	Demands  []traffic.Demand
	Weigher  topology.LinkWeigher
}

// NewRequest bundles and validates the solve input. The demand slice is copied.
func NewRequest(topo *topology.Topology, demands []traffic.Demand, weigher topology.LinkWeigher) (*Request, error) {
	req := &Request{
		Topology: topo,
		Demands:  append([]traffic.Demand(nil), demands...),
		Weigher:  weigher,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate rejects requests that cannot be solved at all. Unknown vertices are
// never clamped to a default.
func (r *Request) Validate() error {
	if r == nil || r.Topology == nil {
		return ErrNilTopology
	}
	if r.Topology.VertexCount() == 0 {
		return topology.ErrEmptyTopology
	}
	if r.Weigher == nil {
		return ErrNilWeigher
	}
	for i, d := range r.Demands {
		if !r.Topology.HasVertex(d.Ingress) {
			return fmt.Errorf("demand %d (%s): ingress %s: %w", i, d.ID, d.Ingress, topology.ErrUnknownVertex)
		}
		if len(d.Egress) == 0 {
			return fmt.Errorf("demand %d (%s): empty egress set: %w", i, d.ID, ErrInvalidDemand)
		}
		for _, e := range d.Egress {
			if !r.Topology.HasVertex(e) {
				return fmt.Errorf("demand %d (%s): egress %s: %w", i, d.ID, e, topology.ErrUnknownVertex)
			}
		}
		if !(d.Volume > 0) {
			return fmt.Errorf("demand %d (%s): volume %v: %w", i, d.ID, d.Volume, ErrInvalidDemand)
		}
		for _, v := range d.Sfc {
			if !v.Valid() {
				return fmt.Errorf("demand %d (%s): vnf type %q: %w", i, d.ID, v, ErrInvalidDemand)
			}
		}
	}
	return nil
}
