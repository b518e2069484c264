// Package main implements the xvoid coordinator, which plans transfer
// requests into fragments and dispatches them to worker nodes.
//
// The coordinator is the single authority over fragment state:
//   - Accepting transfer submissions and planning their fragments
//   - Registering worker nodes and tracking their heartbeats
//   - Handing out fragments one at a time to polling nodes
//   - Applying completion and failure reports with bounded retries
//   - Reclaiming fragments held by nodes that stopped heartbeating
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│              Coordinator                │
//	├─────────────────────────────────────────┤
//	│  HTTP API (internal/api):               │
//	│    /submit          - Plan a transfer   │
//	│    /nodes/*         - Node membership   │
//	│    /tasks/*         - Dispatch, status  │
//	│    /health          - Health check      │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    Planner          - Fragment plans    │
//	│    TaskStore        - Queue and state   │
//	│    LivenessMonitor  - Stale reclaim     │
//	│    Journal          - memory|sqlite|    │
//	│                       redis snapshots   │
//	└─────────────────────────────────────────┘
//
// Configuration is read by internal/config from XVOID_CONFIG_FILE and the
// environment. The most common settings:
//   - COORDINATOR_ADDR: Listen address (default: ":4000")
//   - XVOID_STORE: Journal backend, memory|sqlite|redis (default: memory)
//   - XVOID_RPC_URL: JSON-RPC endpoint for the throughput hint (optional)
//   - LOG_LEVEL: debug|info|warn|error (default: info)
//
// Example usage:
//
//	XVOID_STORE=sqlite XVOID_SQLITE_PATH=/var/lib/xvoid.db ./coordinator
//
//	curl -X POST localhost:4000/submit \
//	  -d '{"recipient":"<address>","amount":1000000,"privacyLevel":"medium"}'
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/xvoid/internal/api"
	"github.com/dreamware/xvoid/internal/config"
	"github.com/dreamware/xvoid/internal/coordinator"
	"github.com/dreamware/xvoid/internal/routing"
	"github.com/dreamware/xvoid/internal/storage"
	"github.com/dreamware/xvoid/internal/throughput"
)

const (
	shutdownTimeout = 5 * time.Second
	redisNamespace  = "xvoid"
)

// logFatal is a variable to allow mocking in tests.
var logFatal = func(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	cfg, err := config.LoadCoordinator()
	if err != nil {
		logFatal("invalid configuration", "error", err)
	}
	logger := config.SetupLogging(cfg.LogLevel, os.Stderr)
	config.LogWarnings(logger, cfg.Warnings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logFatal("listen failed", "addr", cfg.Addr, "error", err)
	}
	if err := run(ctx, cfg, ln); err != nil {
		logFatal("coordinator failed", "error", err)
	}
	slog.Info("coordinator stopped")
}

// app holds the wired coordinator components.
type app struct {
	journal  storage.Store
	store    *coordinator.TaskStore
	monitor  *coordinator.LivenessMonitor
	limiter  *api.RateLimiter
	handler  http.Handler
	restored int
}

// newApp opens the journal, restores persisted tasks and wires the API.
func newApp(ctx context.Context, cfg config.Coordinator) (*app, error) {
	journal, err := openJournal(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	planner, err := newPlanner(cfg)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	store := coordinator.NewTaskStore(
		coordinator.WithMaxRetries(cfg.MaxRetries),
		coordinator.WithStaleAfter(cfg.StaleAfter.Std()),
		coordinator.WithJournal(journal),
	)
	restored, err := store.Restore(ctx)
	if err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("restore tasks: %w", err)
	}

	var source throughput.Source
	if cfg.RPCURL != "" {
		source = throughput.NewRPCSource(cfg.RPCURL)
	}

	limiter := api.NewRateLimiter(cfg.SubmitRPS, cfg.SubmitBurst)
	srv := api.NewServer(store, planner,
		api.WithThroughput(throughput.NewMonitor(source, cfg.TPSCacheTTL.Std())),
		api.WithRateLimiter(limiter),
	)

	monitor := coordinator.NewLivenessMonitor(cfg.LivenessInterval.Std())
	monitor.SetOnStale(func(nodeID string) {
		if n := store.ReclaimStale(); n > 0 {
			slog.Info("reclaimed fragments from stale node", "nodeId", nodeID, "fragments", n)
		}
	})

	return &app{
		journal:  journal,
		store:    store,
		monitor:  monitor,
		limiter:  limiter,
		handler:  srv.Handler(),
		restored: restored,
	}, nil
}

// openJournal returns the snapshot store selected by cfg.Backend.
func openJournal(ctx context.Context, cfg config.Store) (storage.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory, "":
		return storage.NewMemoryStore(), nil
	case config.StoreSQLite:
		st, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		return st, nil
	case config.StoreRedis:
		st := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redisNamespace)
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("connect redis journal: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func newPlanner(cfg config.Coordinator) (*routing.Planner, error) {
	opts := []routing.Option{
		routing.WithThresholds(routing.Thresholds{HighTPS: cfg.TPSHigh, LowTPS: cfg.TPSLow}),
	}
	if cfg.ProfilesFile != "" {
		profiles, err := routing.LoadProfiles(cfg.ProfilesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, routing.WithProfiles(profiles))
	}
	return routing.NewPlanner(opts...), nil
}

// run serves on ln until ctx is canceled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Coordinator, ln net.Listener) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer a.journal.Close()

	if a.restored > 0 {
		slog.Info("restored tasks from journal", "tasks", a.restored, "backend", cfg.Store.Backend)
	}

	go a.monitor.Start(ctx, a.store.Nodes)
	defer a.monitor.Stop()
	go a.limiter.Run(ctx)

	httpSrv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("coordinator listening", "addr", ln.Addr().String(), "backend", cfg.Store.Backend)
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
