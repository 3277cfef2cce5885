package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfcplacement/invalidation"
	"sfcplacement/placement/common"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadExample(t *testing.T) {
	cfg, err := Load("../conf/sfc_placement.toml")
	require.NoError(t, err)

	assert.Equal(t, "topology/testdata/ref8.toml", cfg.Topology.File)
	assert.Equal(t, 10.0, cfg.Topology.Bandwidth)
	assert.Equal(t, int64(42), cfg.Traffic.Seed)
	assert.Equal(t, "optimization", cfg.Solver.Strategy)
	assert.Equal(t, 60*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, common.LoadBalancing, cfg.Solver.Options.Goal)
	assert.Equal(t, 10000, cfg.Solver.Options.MaxWalkSteps)
	assert.Equal(t, "solution.csv", cfg.Export.CSV)
	assert.False(t, cfg.Etcd.Enabled)
	assert.Equal(t, []string{"127.0.0.1:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, 5*time.Second, cfg.Etcd.DialTimeout)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[topology]
file = "topo.toml"

[api]
enabled = true

[etcd]
enabled = true
endpoints = ["10.0.0.1:2379"]
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogDir, cfg.Log.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1, cfg.Traffic.Trials)
	assert.Equal(t, DefaultStrategy, cfg.Solver.Strategy)
	assert.Equal(t, DefaultSolveTimeout, cfg.Solver.Timeout)
	assert.Equal(t, common.LoadBalancing, cfg.Solver.Options.Goal)
	assert.Equal(t, DefaultAPIAddr, cfg.API.Addr)
	assert.Equal(t, invalidation.DefaultDeviceCountKey, cfg.Etcd.Key)
	assert.Equal(t, 5*time.Second, cfg.Etcd.DialTimeout)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "no topology", content: `[solver]
strategy = "heuristic"
`},
		{name: "bad goal", content: `[topology]
file = "t.toml"
[solver.options]
goal = "FASTEST"
`},
		{name: "bad level", content: `[topology]
file = "t.toml"
[log]
level = "loud"
`},
		{name: "etcd without endpoints", content: `[topology]
file = "t.toml"
[etcd]
enabled = true
`},
		{name: "malformed", content: `[topology`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultConfigPath, Path())

	t.Setenv(EnvConfigPath, "/etc/sfc/config.toml")
	assert.Equal(t, "/etc/sfc/config.toml", Path())
}
