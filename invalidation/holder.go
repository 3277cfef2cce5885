package invalidation

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"sfcplacement/placement/common"
)

// Holder keeps the last computed solution until the topology it was computed
// for changes
type Holder struct {
	mu          sync.RWMutex
	solution    *common.Solution
	deviceCount int
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set stores sol as computed for a topology with deviceCount devices
func (h *Holder) Set(sol *common.Solution, deviceCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.solution = sol
	h.deviceCount = deviceCount
}

func (h *Holder) Get() (*common.Solution, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.solution, h.solution != nil
}

// DeviceCount returns the device count of the last Set or observation
func (h *Holder) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deviceCount
}

// Invalidate drops the held solution
func (h *Holder) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateLocked()
}

func (h *Holder) invalidateLocked() {
	if h.solution != nil {
		log.Infof("holder: solution of strategy %s invalidated", h.solution.Strategy)
	}
	h.solution = nil
}

// ObserveDeviceCount records the current device count and invalidates the held
// solution when it differs from the last one. It reports whether the count changed.
func (h *Holder) ObserveDeviceCount(n int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n == h.deviceCount {
		return false
	}
	log.Infof("holder: device count changed from %d to %d", h.deviceCount, n)
	h.invalidateLocked()
	h.deviceCount = n
	return true
}
