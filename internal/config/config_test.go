package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks every variable the loaders read so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		FileEnv, "LOG_LEVEL", "COORDINATOR_ADDR", "XVOID_RPC_URL", "XVOID_PROFILES_FILE",
		"XVOID_STORE", "XVOID_SQLITE_PATH", "XVOID_REDIS_ADDR", "XVOID_REDIS_PASSWORD",
		"XVOID_REDIS_DB", "XVOID_MAX_RETRIES", "XVOID_STALE_AFTER", "XVOID_LIVENESS_INTERVAL",
		"XVOID_TPS_CACHE_TTL", "XVOID_TPS_HIGH", "XVOID_TPS_LOW", "XVOID_SUBMIT_RPS",
		"XVOID_SUBMIT_BURST", "XVOID_NODE_ID", "XVOID_COORDINATOR_URL", "XVOID_NODE_ENDPOINT",
		"XVOID_NODE_CAPACITY", "XVOID_NODE_HEARTBEAT", "XVOID_NODE_POLL",
		"XVOID_NODE_REQUEST_TIMEOUT", "XVOID_HOP_PAUSE", "XVOID_SIM_FAILURE_RATE", "XVOID_SIM_TPS",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xvoid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCoordinatorDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadCoordinator()
	require.NoError(t, err)
	assert.Equal(t, DefaultCoordinator(), cfg)
	assert.Equal(t, 30*time.Second, cfg.StaleAfter.Std())
}

func TestLoadCoordinatorLayers(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeFile(t, `
coordinator:
  addr: ":5000"
  max_retries: 5
  stale_after: 45s
  tps_high: 3000
  store:
    backend: sqlite
    sqlite_path: /tmp/tasks.db
`))
	t.Setenv("XVOID_MAX_RETRIES", "7")
	t.Setenv("XVOID_LIVENESS_INTERVAL", "2s")

	cfg, err := LoadCoordinator()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Addr, "file overrides default")
	assert.Equal(t, 7, cfg.MaxRetries, "env overrides file")
	assert.Equal(t, 45*time.Second, cfg.StaleAfter.Std())
	assert.Equal(t, 2*time.Second, cfg.LivenessInterval.Std())
	assert.Equal(t, 3000.0, cfg.TPSHigh)
	assert.Equal(t, 1500.0, cfg.TPSLow, "untouched keys keep defaults")
	assert.Equal(t, Store{Backend: StoreSQLite, SQLitePath: "/tmp/tasks.db"}, cfg.Store)
}

func TestLoadCoordinatorErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"XVOID_MAX_RETRIES": "three"}, "XVOID_MAX_RETRIES"},
		{"bad duration", map[string]string{"XVOID_STALE_AFTER": "soon"}, "XVOID_STALE_AFTER"},
		{"bad float", map[string]string{"XVOID_TPS_HIGH": "fast"}, "XVOID_TPS_HIGH"},
		{"zero retries", map[string]string{"XVOID_MAX_RETRIES": "0"}, "max_retries"},
		{"inverted thresholds", map[string]string{"XVOID_TPS_LOW": "5000"}, "tps_low"},
		{"unknown backend", map[string]string{"XVOID_STORE": "etcd"}, "unknown store backend"},
		{"redis without addr", map[string]string{"XVOID_STORE": "REDIS"}, "redis_addr"},
		{"missing file", map[string]string{FileEnv: "/nonexistent/xvoid.yaml"}, "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadCoordinator()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCoordinatorBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeFile(t, "coordinator:\n  stale_after: forever\n"))
	_, err := LoadCoordinator()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadNode(t *testing.T) {
	t.Run("required settings", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadNode()
		assert.ErrorIs(t, err, ErrMissing)
		assert.Contains(t, err.Error(), "XVOID_NODE_ID")
		assert.Contains(t, err.Error(), "XVOID_COORDINATOR_URL")
	})

	t.Run("env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("XVOID_NODE_ID", "node-7")
		t.Setenv("XVOID_COORDINATOR_URL", "http://coord:4000/")
		t.Setenv("XVOID_NODE_CAPACITY", "8")
		t.Setenv("XVOID_HOP_PAUSE", "250ms")
		t.Setenv("XVOID_SIM_FAILURE_RATE", "0.1")

		cfg, err := LoadNode()
		require.NoError(t, err)
		assert.Equal(t, "node-7", cfg.NodeID)
		assert.Equal(t, "http://coord:4000", cfg.CoordinatorURL)
		assert.Equal(t, 8, cfg.Capacity)
		assert.Equal(t, 250*time.Millisecond, cfg.HopPause.Std())
		assert.Equal(t, 0.1, cfg.SimFailureRate)
		assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval.Std())
		assert.Equal(t, 2*time.Second, cfg.PollInterval.Std())
		assert.Equal(t, 30*time.Second, cfg.StaleAfter.Std())
		assert.Empty(t, cfg.Warnings())
	})

	t.Run("file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(FileEnv, writeFile(t, `
node:
  node_id: node-file
  coordinator_url: http://coord
  poll_interval: 500ms
`))
		cfg, err := LoadNode()
		require.NoError(t, err)
		assert.Equal(t, "node-file", cfg.NodeID)
		assert.Equal(t, 500*time.Millisecond, cfg.PollInterval.Std())
	})

	t.Run("stale threshold from coordinator section", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(FileEnv, writeFile(t, `
coordinator:
  stale_after: 10s
node:
  node_id: node-file
  coordinator_url: http://coord
`))
		cfg, err := LoadNode()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, cfg.StaleAfter.Std())
		require.Len(t, cfg.Warnings(), 1)
		assert.Contains(t, cfg.Warnings()[0], "heartbeat_interval 15s")

		t.Setenv("XVOID_STALE_AFTER", "1m")
		cfg, err = LoadNode()
		require.NoError(t, err)
		assert.Empty(t, cfg.Warnings())
	})

	t.Run("invalid failure rate", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("XVOID_NODE_ID", "n")
		t.Setenv("XVOID_COORDINATOR_URL", "http://c")
		t.Setenv("XVOID_SIM_FAILURE_RATE", "1.5")
		_, err := LoadNode()
		assert.ErrorContains(t, err, "sim_failure_rate")
	})
}

func TestDurationYAML(t *testing.T) {
	var v struct {
		D Duration `yaml:"d"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("d: 1m30s"), &v))
	assert.Equal(t, 90*time.Second, v.D.Std())

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "d: 1m30s\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("d: [1]"), &v))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestCoordinatorWarnings(t *testing.T) {
	cfg := DefaultCoordinator()
	assert.Empty(t, cfg.Warnings())

	cfg.StaleAfter = Duration(15 * time.Second)
	cfg.LivenessInterval = Duration(20 * time.Second)
	w := cfg.Warnings()
	require.Len(t, w, 2)
	assert.Contains(t, w[0], "stale_after 15s")
	assert.Contains(t, w[1], "liveness_interval 20s")
}

func TestNodeWarnings(t *testing.T) {
	cfg := DefaultNode()
	assert.Empty(t, cfg.Warnings())

	cfg.HeartbeatInterval = cfg.StaleAfter
	assert.Len(t, cfg.Warnings(), 1)

	cfg.StaleAfter = 0
	assert.Empty(t, cfg.Warnings(), "unknown threshold is not checked")
}

func TestLogWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	LogWarnings(logger, []string{"heartbeat too slow"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "inconsistent configuration", line["msg"])
	assert.Equal(t, "heartbeat too slow", line["detail"])
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := SetupLogging("warn", &buf)
	logger.Info("dropped")
	slog.Warn("kept", "nodeId", "n1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "n1", line["nodeId"])
}
