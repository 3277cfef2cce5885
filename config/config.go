package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"sfcplacement/invalidation"
	"sfcplacement/placement/common"
)

const (
	EnvConfigPath     = "SFC_PLACEMENT_CONFIG"
	DefaultConfigPath = "sfc_placement.toml"

	DefaultStrategy     = "optimization"
	DefaultSolveTimeout = 60 * time.Second
	DefaultAPIAddr      = "127.0.0.1:8080"
	DefaultLogDir       = "./logs"
)

// Config is the service configuration, one toml table per component
type Config struct {
	Log      LogConfig      `toml:"log"`
	Topology TopologyConfig `toml:"topology"`
	Traffic  TrafficConfig  `toml:"traffic"`
	Solver   SolverConfig   `toml:"solver"`
	Deploy   DeployConfig   `toml:"deploy"`
	Export   ExportConfig   `toml:"export"`
	API      APIConfig      `toml:"api"`
	Etcd     EtcdConfig     `toml:"etcd"`
}

type LogConfig struct {
	Dir   string `toml:"dir"`
	Level string `toml:"level"`
}

// TopologyConfig selects the topology file and link weigher. With Annotated the
// weights from the file are used, otherwise every link gets Bandwidth and Delay.
type TopologyConfig struct {
	File      string  `toml:"file"`
	Annotated bool    `toml:"annotated"`
	Bandwidth float64 `toml:"bandwidth"`
	Delay     float64 `toml:"delay"`
}

type TrafficConfig struct {
	NoSfc   bool  `toml:"no_sfc"`
	Seed    int64 `toml:"seed"`
	Trials  int   `toml:"trials"`
	Workers int   `toml:"workers"`
}

type SolverConfig struct {
	Strategy string         `toml:"strategy"`
	Timeout  time.Duration  `toml:"timeout"`
	Options  common.Options `toml:"options"`
}

type DeployConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	Workers int    `toml:"workers"`
}

type ExportConfig struct {
	CSV string `toml:"csv"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type EtcdConfig struct {
	Enabled bool `toml:"enabled"`
	invalidation.EtcdConfig
}

// Path returns the config path from the environment or the default file name
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load decodes the TOML file at path and fills in defaults
func Load(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := config.setDefaults(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &config, nil
}

func (c *Config) setDefaults() error {
	if c.Topology.File == "" {
		return fmt.Errorf("topology file not specified")
	}
	if c.Log.Dir == "" {
		c.Log.Dir = DefaultLogDir
	}
	if c.Log.Level == "" {
		c.Log.Level = log.InfoLevel.String()
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Traffic.Trials <= 0 {
		c.Traffic.Trials = 1
	}
	if c.Solver.Strategy == "" {
		log.Warningf("Solver strategy not specified in config, using default %s", DefaultStrategy)
		c.Solver.Strategy = DefaultStrategy
	}
	if c.Solver.Timeout <= 0 {
		c.Solver.Timeout = DefaultSolveTimeout
	}
	if c.Solver.Options.Goal == "" {
		c.Solver.Options.Goal = common.LoadBalancing
	}
	if _, err := common.ParseGoal(string(c.Solver.Options.Goal)); err != nil {
		return err
	}
	if c.API.Enabled && c.API.Addr == "" {
		log.Warningf("API addr not specified in config, using default %s", DefaultAPIAddr)
		c.API.Addr = DefaultAPIAddr
	}
	if c.Etcd.Enabled {
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("etcd enabled without endpoints")
		}
		if c.Etcd.DialTimeout <= 0 {
			c.Etcd.DialTimeout = 5 * time.Second
		}
		if c.Etcd.Key == "" {
			c.Etcd.Key = invalidation.DefaultDeviceCountKey
		}
	}
	return nil
}
