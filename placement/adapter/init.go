package adapter

import (
	log "github.com/sirupsen/logrus"

	"sfcplacement/placement/common"
	"sfcplacement/placement/heuristic"
	"sfcplacement/placement/optimization"
)

// init automatically registers available placement strategies
func init() {
	if err := common.RegisterGlobal(heuristic.StrategyName, NewHeuristic); err != nil {
		log.Warnf("Failed to register %s strategy: %v", heuristic.StrategyName, err)
	} else {
		log.Debugf("Successfully registered %s strategy", heuristic.StrategyName)
	}

	if err := common.RegisterGlobal(optimization.StrategyName, NewOptimization); err != nil {
		log.Warnf("Failed to register %s strategy: %v", optimization.StrategyName, err)
	} else {
		log.Debugf("Successfully registered %s strategy", optimization.StrategyName)
	}

	log.Debugf("Available placement strategies: %v", common.ListGlobal())
}
