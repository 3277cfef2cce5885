package traffic

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
)

// DefaultWorkers returns the logical CPU count, or 4 if it cannot be read
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		log.Warnf("trial runner: failed to read cpu count, err=%v", err)
		return 4
	}
	return n
}

// RunTrials runs fn for trial numbers 0..n-1 on a pool of workers goroutines.
// Trials must not share mutable state. The first error stops submission of new
// trials and is returned once running trials finish.
func RunTrials(ctx context.Context, n, workers int, fn func(trial int) error) error {
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create trial pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	record := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		trial := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := fn(trial); err != nil {
				record(fmt.Errorf("trial %d: %w", trial, err))
			}
		}); err != nil {
			wg.Done()
			record(fmt.Errorf("failed to submit trial %d: %w", trial, err))
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
