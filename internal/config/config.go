// Package config loads coordinator and node process configuration.
//
// Values come from three layers, later layers winning:
//
//  1. built-in defaults
//  2. a YAML file named by XVOID_CONFIG_FILE (optional)
//  3. environment variables
//
// Durations are Go duration strings ("30s", "1m30s") in both the file and
// the environment.
//
// Example file:
//
//	coordinator:
//	  addr: ":4000"
//	  max_retries: 5
//	  stale_after: 45s
//	  store:
//	    backend: sqlite
//	    sqlite_path: /var/lib/xvoid/tasks.db
//	node:
//	  capacity: 8
//	  hop_pause: 500ms
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML config file.
const FileEnv = "XVOID_CONFIG_FILE"

// ErrMissing is returned when a required setting has no value.
var ErrMissing = errors.New("missing required setting")

// Duration is a time.Duration that reads from a YAML duration string.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses a duration string such as "15s".
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Store selects the task journal backend.
type Store struct {
	Backend       string `yaml:"backend"` // memory | sqlite | redis
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Coordinator configures the coordinator process.
type Coordinator struct {
	Addr             string   `yaml:"addr"`
	LogLevel         string   `yaml:"log_level"`
	RPCURL           string   `yaml:"rpc_url"`
	ProfilesFile     string   `yaml:"profiles_file"`
	Store            Store    `yaml:"store"`
	MaxRetries       int      `yaml:"max_retries"`
	StaleAfter       Duration `yaml:"stale_after"`
	LivenessInterval Duration `yaml:"liveness_interval"`
	TPSCacheTTL      Duration `yaml:"tps_cache_ttl"`
	TPSHigh          float64  `yaml:"tps_high"`
	TPSLow           float64  `yaml:"tps_low"`
	SubmitRPS        float64  `yaml:"submit_rps"`
	SubmitBurst      int      `yaml:"submit_burst"`
}

// DefaultCoordinator returns the built-in coordinator settings.
func DefaultCoordinator() Coordinator {
	return Coordinator{
		Addr:             ":4000",
		LogLevel:         "info",
		Store:            Store{Backend: StoreMemory, SQLitePath: "xvoid.db"},
		MaxRetries:       3,
		StaleAfter:       Duration(30 * time.Second),
		LivenessInterval: Duration(5 * time.Second),
		TPSCacheTTL:      Duration(60 * time.Second),
		TPSHigh:          2000,
		TPSLow:           1500,
		SubmitRPS:        5,
		SubmitBurst:      10,
	}
}

// Validate checks settings that would otherwise fail at runtime.
func (c Coordinator) Validate() error {
	var errs []error
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("stale_after must be positive, got %s", c.StaleAfter))
	}
	if c.LivenessInterval <= 0 {
		errs = append(errs, fmt.Errorf("liveness_interval must be positive, got %s", c.LivenessInterval))
	}
	if c.TPSLow > c.TPSHigh {
		errs = append(errs, fmt.Errorf("tps_low %.0f exceeds tps_high %.0f", c.TPSLow, c.TPSHigh))
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("%w: sqlite_path", ErrMissing))
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%w: redis_addr", ErrMissing))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	return errors.Join(errs...)
}

// Node configures a worker node process.
type Node struct {
	NodeID            string   `yaml:"node_id"`
	CoordinatorURL    string   `yaml:"coordinator_url"`
	Endpoint          string   `yaml:"endpoint"`
	LogLevel          string   `yaml:"log_level"`
	Capacity          int      `yaml:"capacity"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	PollInterval      Duration `yaml:"poll_interval"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	HopPause          Duration `yaml:"hop_pause"`
	SimFailureRate    float64  `yaml:"sim_failure_rate"`
	SimTPS            float64  `yaml:"sim_tps"`

	// StaleAfter is the coordinator's stale threshold as this node expects
	// it, taken from the coordinator section of the config file or
	// XVOID_STALE_AFTER. It is only used to check HeartbeatInterval.
	StaleAfter Duration `yaml:"-"`
}

// DefaultNode returns the built-in node settings.
func DefaultNode() Node {
	return Node{
		LogLevel:          "info",
		Capacity:          4,
		HeartbeatInterval: Duration(15 * time.Second),
		PollInterval:      Duration(2 * time.Second),
		RequestTimeout:    Duration(15 * time.Second),
		HopPause:          Duration(time.Second),
		SimTPS:            50,
		StaleAfter:        DefaultCoordinator().StaleAfter,
	}
}

// Validate checks required settings and ranges.
func (n Node) Validate() error {
	var errs []error
	if n.NodeID == "" {
		errs = append(errs, fmt.Errorf("%w: XVOID_NODE_ID", ErrMissing))
	}
	if n.CoordinatorURL == "" {
		errs = append(errs, fmt.Errorf("%w: XVOID_COORDINATOR_URL", ErrMissing))
	}
	if n.Capacity < 1 {
		errs = append(errs, fmt.Errorf("capacity must be at least 1, got %d", n.Capacity))
	}
	if n.SimFailureRate < 0 || n.SimFailureRate > 1 {
		errs = append(errs, fmt.Errorf("sim_failure_rate must be in [0, 1], got %g", n.SimFailureRate))
	}
	return errors.Join(errs...)
}

// Warnings describes settings that are valid but work against each other.
func (c Coordinator) Warnings() []string {
	var w []string
	if hb := DefaultNode().HeartbeatInterval; c.StaleAfter <= hb {
		w = append(w, fmt.Sprintf("stale_after %s is not longer than the default node heartbeat %s; nodes on defaults will be reclaimed between heartbeats", c.StaleAfter, hb))
	}
	if c.LivenessInterval > c.StaleAfter {
		w = append(w, fmt.Sprintf("liveness_interval %s exceeds stale_after %s; stale nodes are noticed late", c.LivenessInterval, c.StaleAfter))
	}
	return w
}

// Warnings describes settings that are valid but work against each other.
func (n Node) Warnings() []string {
	var w []string
	if n.StaleAfter > 0 && n.HeartbeatInterval >= n.StaleAfter {
		w = append(w, fmt.Sprintf("heartbeat_interval %s is not shorter than the coordinator stale_after %s; this node's work will be reclaimed while it runs", n.HeartbeatInterval, n.StaleAfter))
	}
	return w
}

// LogWarnings logs each warning at warn level.
func LogWarnings(logger *slog.Logger, warnings []string) {
	for _, w := range warnings {
		logger.Warn("inconsistent configuration", "detail", w)
	}
}

type fileConfig struct {
	Coordinator *Coordinator `yaml:"coordinator"`
	Node        *Node        `yaml:"node"`
}

// LoadCoordinator reads coordinator settings from defaults, the config
// file and the environment.
func LoadCoordinator() (Coordinator, error) {
	cfg := DefaultCoordinator()
	if err := overlayFile(&fileConfig{Coordinator: &cfg}); err != nil {
		return cfg, err
	}

	e := envReader{}
	e.str("COORDINATOR_ADDR", &cfg.Addr)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("XVOID_RPC_URL", &cfg.RPCURL)
	e.str("XVOID_PROFILES_FILE", &cfg.ProfilesFile)
	e.str("XVOID_STORE", &cfg.Store.Backend)
	e.str("XVOID_SQLITE_PATH", &cfg.Store.SQLitePath)
	e.str("XVOID_REDIS_ADDR", &cfg.Store.RedisAddr)
	e.str("XVOID_REDIS_PASSWORD", &cfg.Store.RedisPassword)
	e.integer("XVOID_REDIS_DB", &cfg.Store.RedisDB)
	e.integer("XVOID_MAX_RETRIES", &cfg.MaxRetries)
	e.duration("XVOID_STALE_AFTER", &cfg.StaleAfter)
	e.duration("XVOID_LIVENESS_INTERVAL", &cfg.LivenessInterval)
	e.duration("XVOID_TPS_CACHE_TTL", &cfg.TPSCacheTTL)
	e.float("XVOID_TPS_HIGH", &cfg.TPSHigh)
	e.float("XVOID_TPS_LOW", &cfg.TPSLow)
	e.float("XVOID_SUBMIT_RPS", &cfg.SubmitRPS)
	e.integer("XVOID_SUBMIT_BURST", &cfg.SubmitBurst)
	if err := e.err(); err != nil {
		return cfg, err
	}

	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
	return cfg, cfg.Validate()
}

// LoadNode reads node settings from defaults, the config file and the
// environment. XVOID_NODE_ID and XVOID_COORDINATOR_URL are required.
func LoadNode() (Node, error) {
	cfg := DefaultNode()
	coord := DefaultCoordinator()
	if err := overlayFile(&fileConfig{Coordinator: &coord, Node: &cfg}); err != nil {
		return cfg, err
	}
	cfg.StaleAfter = coord.StaleAfter

	e := envReader{}
	e.str("XVOID_NODE_ID", &cfg.NodeID)
	e.str("XVOID_COORDINATOR_URL", &cfg.CoordinatorURL)
	e.str("XVOID_NODE_ENDPOINT", &cfg.Endpoint)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.integer("XVOID_NODE_CAPACITY", &cfg.Capacity)
	e.duration("XVOID_NODE_HEARTBEAT", &cfg.HeartbeatInterval)
	e.duration("XVOID_NODE_POLL", &cfg.PollInterval)
	e.duration("XVOID_NODE_REQUEST_TIMEOUT", &cfg.RequestTimeout)
	e.duration("XVOID_HOP_PAUSE", &cfg.HopPause)
	e.float("XVOID_SIM_FAILURE_RATE", &cfg.SimFailureRate)
	e.float("XVOID_SIM_TPS", &cfg.SimTPS)
	e.duration("XVOID_STALE_AFTER", &cfg.StaleAfter)
	if err := e.err(); err != nil {
		return cfg, err
	}

	cfg.CoordinatorURL = strings.TrimRight(cfg.CoordinatorURL, "/")
	return cfg, cfg.Validate()
}

// overlayFile decodes the file named by XVOID_CONFIG_FILE over dst. Only
// keys present in the file change dst.
func overlayFile(dst *fileConfig) error {
	path := os.Getenv(FileEnv)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// envReader overlays environment variables, collecting parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) err() error { return errors.Join(e.errs...) }

func (e *envReader) str(k string, dst *string) {
	if v := os.Getenv(k); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(k string, dst *int) {
	v := os.Getenv(k)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return
	}
	*dst = n
}

func (e *envReader) float(k string, dst *float64) {
	v := os.Getenv(k)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return
	}
	*dst = f
}

func (e *envReader) duration(k string, dst *Duration) {
	v := os.Getenv(k)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", k, err))
		return
	}
	*dst = Duration(d)
}
