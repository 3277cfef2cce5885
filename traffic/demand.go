package traffic

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Demand is one logical flow from Ingress that must reach every vertex in Egress
// after traversing the Sfc in order.
type Demand struct {
	ID      string   `json:"id"`
	Sfc     Sfc      `json:"sfc"`
	Ingress string   `json:"ingress"`
	Egress  []string `json:"egress"`
	Volume  float64  `json:"volume"`
}

// NewDemand creates a demand with a fresh identity. Egress duplicates are removed
// keeping first-occurrence order. A demand without chain carries an empty Sfc.
func NewDemand(sfc Sfc, ingress string, egress []string, volume float64) Demand {
	return Demand{
		ID:      uuid.NewString(),
		Sfc:     append(Sfc{}, sfc...),
		Ingress: ingress,
		Egress:  dedup(egress),
		Volume:  volume,
	}
}

// HasEgress reports whether id is one of the demand's egress vertices
func (d Demand) HasEgress(id string) bool {
	for _, e := range d.Egress {
		if e == id {
			return true
		}
	}
	return false
}

func (d Demand) String() string {
	return fmt.Sprintf("demand %s: %s -> [%s], sfc %v, volume %.2f",
		d.ID, d.Ingress, strings.Join(d.Egress, ","), d.Sfc, d.Volume)
}

func dedup(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
