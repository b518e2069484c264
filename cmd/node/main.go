// Package main implements the xvoid worker node, which executes fragment
// transfer chains dispatched by the coordinator.
//
// The node is a pull-based worker:
//   - Registering with the coordinator on startup
//   - Heartbeating so the coordinator keeps it live
//   - Polling for the next fragment while it has free capacity
//   - Waiting out each fragment's delay, running its shadow hops and noise
//     transfers, and reporting the outcome
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                 Node                    │
//	├─────────────────────────────────────────┤
//	│  Loops (internal/agent):                │
//	│    heartbeat     - liveness signal      │
//	│    poll          - fetch work orders    │
//	│    worker pool   - bounded by capacity  │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    HTTPDispatcher - coordinator client  │
//	│    Simulated      - transfer executor   │
//	└─────────────────────────────────────────┘
//
// Configuration (see internal/config for the full list):
//   - XVOID_NODE_ID: Unique node identifier (required)
//   - XVOID_COORDINATOR_URL: Coordinator base URL (required)
//   - XVOID_NODE_CAPACITY: Concurrent fragments (default: 4)
//   - XVOID_SIM_FAILURE_RATE: Simulated transfer failure rate (default: 0)
//
// Example usage:
//
//	XVOID_NODE_ID=node-1 \
//	XVOID_COORDINATOR_URL=http://localhost:4000 \
//	XVOID_NODE_CAPACITY=8 \
//	./node
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/xvoid/internal/agent"
	"github.com/dreamware/xvoid/internal/config"
	"github.com/dreamware/xvoid/internal/transfer"
)

// logFatal is a variable to allow mocking in tests.
var logFatal = func(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	cfg, err := config.LoadNode()
	if err != nil {
		logFatal("invalid configuration", "error", err)
	}
	logger := config.SetupLogging(cfg.LogLevel, os.Stderr)
	config.LogWarnings(logger, cfg.Warnings())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logFatal("node failed", "nodeId", cfg.NodeID, "error", err)
	}
	slog.Info("node stopped", "nodeId", cfg.NodeID)
}

// newAgent builds the agent for cfg with a simulated executor and a fresh
// source credential.
func newAgent(cfg config.Node) (*agent.Agent, error) {
	executor := transfer.NewSimulated(
		transfer.WithFailureRate(cfg.SimFailureRate),
		transfer.WithTPS(cfg.SimTPS),
	)
	source, err := executor.GenerateEphemeralCredential()
	if err != nil {
		return nil, fmt.Errorf("generate source credential: %w", err)
	}

	return agent.New(agent.Config{
		NodeID:            cfg.NodeID,
		Endpoint:          cfg.Endpoint,
		Capacity:          cfg.Capacity,
		HeartbeatInterval: cfg.HeartbeatInterval.Std(),
		PollInterval:      cfg.PollInterval.Std(),
		RequestTimeout:    cfg.RequestTimeout.Std(),
		HopPause:          cfg.HopPause.Std(),
		Source:            source,
	}, agent.NewHTTPDispatcher(cfg.CoordinatorURL), executor)
}

// run blocks until ctx is canceled and in-flight fragments have drained.
func run(ctx context.Context, cfg config.Node) error {
	a, err := newAgent(cfg)
	if err != nil {
		return err
	}

	slog.Info("node starting",
		"nodeId", cfg.NodeID,
		"coordinator", cfg.CoordinatorURL,
		"capacity", cfg.Capacity)

	if err := a.Run(ctx); err != nil {
		return err
	}

	st := a.Stats()
	slog.Info("node drained",
		"nodeId", cfg.NodeID,
		"completed", st.Completed,
		"failed", st.Failed,
		"abandoned", st.Abandoned)
	return nil
}
