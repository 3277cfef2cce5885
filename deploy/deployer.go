package deploy

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	"sfcplacement/placement/common"
)

const DefaultWorkers = 4

// Instance is a deployed VNF and the port it is attached to
type Instance struct {
	DemandID  string              `json:"demand_id"`
	Placement common.VnfPlacement `json:"placement"`
	Port      int                 `json:"port"`
}

// Deployer instantiates the placements of a solution
type Deployer struct {
	instantiator Instantiator
	workers      int
}

func NewDeployer(instantiator Instantiator, workers int) *Deployer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Deployer{instantiator: instantiator, workers: workers}
}

type task struct {
	demandID  string
	placement common.VnfPlacement
}

func tasksOf(sol *common.Solution) []task {
	var tasks []task
	for _, d := range sol.Demands {
		if !d.Feasible {
			continue
		}
		for _, p := range d.Placements() {
			tasks = append(tasks, task{demandID: d.Demand.ID, placement: p})
		}
	}
	return tasks
}

// Deploy instantiates every placement of every feasible demand. The first
// failure stops further submissions; instances created so far are returned
// together with the error so the caller can Undeploy them.
func (dp *Deployer) Deploy(ctx context.Context, sol *common.Solution) ([]Instance, error) {
	tasks := tasksOf(sol)
	if len(tasks) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(dp.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create deploy pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		once      sync.Once
		firstErr  error
		instances = make([]*Instance, len(tasks))
	)
	record := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		idx, t := i, t
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			port, err := dp.instantiator.Instantiate(ctx, t.placement.Type, t.placement.Vertex, t.placement.HwAccelerated)
			if err != nil {
				record(fmt.Errorf("demand %s: %w", t.demandID, err))
				return
			}
			mu.Lock()
			instances[idx] = &Instance{DemandID: t.demandID, Placement: t.placement, Port: port}
			mu.Unlock()
		}); err != nil {
			wg.Done()
			record(fmt.Errorf("failed to submit deployment of %s at %s: %w", t.placement.Type, t.placement.Vertex, err))
		}
	}
	wg.Wait()

	result := make([]Instance, 0, len(tasks))
	for _, inst := range instances {
		if inst != nil {
			result = append(result, *inst)
		}
	}

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		log.Errorf("deployer: stopped after %d/%d instances: %v", len(result), len(tasks), firstErr)
		return result, firstErr
	}
	log.Infof("deployer: deployed %d VNF instances for %d demands", len(result), sol.FeasibleCount())
	return result, nil
}

// Undeploy removes the given instances, returning the first removal error
func (dp *Deployer) Undeploy(ctx context.Context, instances []Instance) error {
	var firstErr error
	for _, inst := range instances {
		p := inst.Placement
		if err := dp.instantiator.Remove(ctx, p.Type, p.Vertex, p.HwAccelerated); err != nil {
			log.Warnf("deployer: failed to remove %s at %s: %v", p.Type, p.Vertex, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
