package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfcplacement/config"
	"sfcplacement/placement/common"
)

func testConfig(t *testing.T, strategy string) *config.Config {
	return &config.Config{
		Topology: config.TopologyConfig{File: "../topology/testdata/ref8.toml", Bandwidth: 10, Delay: 1},
		Traffic:  config.TrafficConfig{Seed: 11, Trials: 3, Workers: 2},
		Solver: config.SolverConfig{
			Strategy: strategy,
			Timeout:  time.Minute,
			Options:  common.Options{Goal: common.LoadBalancing, Seed: 5},
		},
		Export: config.ExportConfig{CSV: filepath.Join(t.TempDir(), "solution.csv")},
	}
}

func TestRun(t *testing.T) {
	for _, strategy := range []string{"heuristic", "optimization"} {
		t.Run(strategy, func(t *testing.T) {
			cfg := testConfig(t, strategy)
			topo, sol, err := run(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, 8, topo.VertexCount())
			require.NotNil(t, sol)
			assert.Equal(t, strategy, sol.Strategy)
			assert.NotEmpty(t, sol.Demands)

			f, err := os.Open(cfg.Export.CSV)
			require.NoError(t, err)
			defer f.Close()
			r := csv.NewReader(f)
			r.FieldsPerRecord = -1
			records, err := r.ReadAll()
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(records), 2)
			assert.Equal(t, []string{"goal", string(sol.Goal), "objective", strconv.FormatFloat(sol.Objective, 'g', -1, 64)}, records[0])
			assert.Equal(t, "demand", records[1][0])
		})
	}
}

func TestRunErrors(t *testing.T) {
	cfg := testConfig(t, "annealing")
	_, _, err := run(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t, "heuristic")
	cfg.Topology.File = "missing.toml"
	_, _, err = run(context.Background(), cfg)
	assert.Error(t, err)
}
