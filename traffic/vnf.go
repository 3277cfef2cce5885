package traffic

import "fmt"

// VnfType names a virtual network function kind
type VnfType string

const (
	Transcoder         VnfType = "TRANSCODER"
	Firewall           VnfType = "FIREWALL"
	IntrusionDetection VnfType = "INTRUSION_DETECTION"
)

// AllVnfTypes lists the supported types in a fixed order
var AllVnfTypes = []VnfType{Transcoder, Firewall, IntrusionDetection}

func (t VnfType) Valid() bool {
	switch t {
	case Transcoder, Firewall, IntrusionDetection:
		return true
	}
	return false
}

// ParseVnfType accepts the upper case type names
func ParseVnfType(s string) (VnfType, error) {
	t := VnfType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown vnf type %q", s)
	}
	return t, nil
}

// Sfc is an ordered service function chain. An empty chain means pure routing.
type Sfc []VnfType

func (s Sfc) Len() int {
	return len(s)
}

func (s Sfc) Contains(t VnfType) bool {
	for _, v := range s {
		if v == t {
			return true
		}
	}
	return false
}

func (s Sfc) String() string {
	return fmt.Sprint([]VnfType(s))
}
