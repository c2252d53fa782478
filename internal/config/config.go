// YAML config loader with CUE validation and environment overrides
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// APIConfig points at the backend REST API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"PETCARE_API_URL"`
	Timeout time.Duration `yaml:"timeout" env:"PETCARE_API_TIMEOUT"`
}

// BusConfig selects and addresses the message bus.
type BusConfig struct {
	Backend  string `yaml:"backend" env:"PETCARE_BUS_BACKEND"`
	URL      string `yaml:"url" env:"PETCARE_BUS_URL"`
	ClientID string `yaml:"client_id" env:"PETCARE_BUS_CLIENT_ID"`
	Username string `yaml:"username" env:"PETCARE_BUS_USERNAME"`
	Password string `yaml:"password" env:"PETCARE_BUS_PASSWORD"`
	// Host is the STOMP virtual host.
	Host string `yaml:"host" env:"PETCARE_BUS_HOST"`
}

// RobotConfig tunes the robot session.
type RobotConfig struct {
	Sync         string        `yaml:"sync" env:"PETCARE_ROBOT_SYNC"`
	PollInterval time.Duration `yaml:"poll_interval" env:"PETCARE_POLL_INTERVAL"`
	MoveStep     float64       `yaml:"move_step"`
	SampleRateHz int           `yaml:"sample_rate_hz"`
	InitialMode  string        `yaml:"initial_mode" env:"PETCARE_INITIAL_MODE"`
	KeyRelease   time.Duration `yaml:"key_release" env:"PETCARE_KEY_RELEASE"`
}

// VideoConfig configures the signaling bridge.
type VideoConfig struct {
	Enabled         bool     `yaml:"enabled" env:"PETCARE_VIDEO_ENABLED"`
	STUNServers     []string `yaml:"stun_servers" env:"PETCARE_STUN_SERVERS" envSeparator:","`
	RecordPath      string   `yaml:"record_path" env:"PETCARE_VIDEO_RECORD"`
	IncludeLoopback bool     `yaml:"include_loopback"`
}

// StateConfig locates the local persisted state (user, token, notifications).
type StateConfig struct {
	Path string `yaml:"path" env:"PETCARE_STATE_PATH"`
}

// RecordConfig selects the status history sinks.
type RecordConfig struct {
	File             string `yaml:"file" env:"PETCARE_RECORD_FILE"`
	Stdout           bool   `yaml:"stdout"`
	GreptimeEndpoint string `yaml:"greptime_endpoint" env:"GREPTIMEDB_ENDPOINT"`
	GreptimeDatabase string `yaml:"greptime_database" env:"GREPTIMEDB_DATABASE"`
}

// AdminConfig configures the local admin HTTP surface.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" env:"PETCARE_ADMIN_ENABLED"`
	Addr    string `yaml:"addr" env:"PETCARE_ADMIN_ADDR"`
}

// LogConfig configures logging.
type LogConfig struct {
	File  string `yaml:"file" env:"PETCARE_LOG_FILE"`
	Level string `yaml:"level" env:"PETCARE_LOG_LEVEL"`
}

// SimConfig tunes the fake robot.
type SimConfig struct {
	Tick         time.Duration `yaml:"tick" env:"TICK_INTERVAL"`
	DrainPerTick float64       `yaml:"drain_per_tick"`
	Video        bool          `yaml:"video"`
}

// Config is the root console configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Bus    BusConfig    `yaml:"bus"`
	Robot  RobotConfig  `yaml:"robot"`
	Video  VideoConfig  `yaml:"video"`
	State  StateConfig  `yaml:"state"`
	Record RecordConfig `yaml:"record"`
	Admin  AdminConfig  `yaml:"admin"`
	Log    LogConfig    `yaml:"log"`
	Sim    SimConfig    `yaml:"sim"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Video: VideoConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at configPath, validates it against the CUE
// schema (the embedded one when cueSchemaPath is empty), applies
// environment overrides and fills defaults. An empty configPath yields the
// defaults plus environment overrides.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	cfg := &Config{Video: VideoConfig{Enabled: true}}
	if configPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080/api"
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.Bus.Backend == "" {
		c.Bus.Backend = "stomp"
	}
	if c.Bus.URL == "" {
		switch c.Bus.Backend {
		case "mqtt":
			c.Bus.URL = "tcp://localhost:1883"
		case "stomp":
			c.Bus.URL = "ws://localhost:8080/ws"
		}
	}
	if c.Bus.Host == "" {
		c.Bus.Host = "/"
	}
	if c.Robot.Sync == "" {
		c.Robot.Sync = "push"
	}
	if c.Robot.PollInterval <= 0 {
		c.Robot.PollInterval = time.Second
	}
	if c.Robot.MoveStep <= 0 {
		c.Robot.MoveStep = 1.5
	}
	if c.Robot.SampleRateHz <= 0 {
		c.Robot.SampleRateHz = 20
	}
	if c.Robot.InitialMode == "" {
		c.Robot.InitialMode = "manual"
	}
	if c.Robot.KeyRelease <= 0 {
		c.Robot.KeyRelease = 750 * time.Millisecond
	}
	if len(c.Video.STUNServers) == 0 {
		c.Video.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.State.Path == "" {
		c.State.Path = defaultStatePath()
	}
	if c.Record.GreptimeDatabase == "" {
		c.Record.GreptimeDatabase = "public"
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = "127.0.0.1:8090"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Sim.Tick <= 0 {
		c.Sim.Tick = time.Second
	}
	if c.Sim.DrainPerTick <= 0 {
		c.Sim.DrainPerTick = 0.1
	}
}

// SampleInterval is the input sampling period derived from SampleRateHz.
func (c *Config) SampleInterval() time.Duration {
	return time.Second / time.Duration(c.Robot.SampleRateHz)
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "petcare-console.db"
	}
	return dir + string(os.PathSeparator) + "petcare-console.db"
}
