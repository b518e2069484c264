package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/xvoid/internal/agent"
	"github.com/dreamware/xvoid/internal/api"
	"github.com/dreamware/xvoid/internal/cluster"
	"github.com/dreamware/xvoid/internal/config"
	"github.com/dreamware/xvoid/internal/coordinator"
	"github.com/dreamware/xvoid/internal/routing"
)

func testNodeConfig(coordinatorURL string) config.Node {
	cfg := config.DefaultNode()
	cfg.NodeID = "node-test"
	cfg.CoordinatorURL = coordinatorURL
	cfg.Capacity = 2
	cfg.PollInterval = config.Duration(10 * time.Millisecond)
	cfg.HeartbeatInterval = config.Duration(50 * time.Millisecond)
	cfg.RequestTimeout = config.Duration(time.Second)
	cfg.HopPause = config.Duration(-1)
	cfg.SimTPS = 0
	return cfg
}

// TestNewAgent tests agent construction from node configuration
func TestNewAgent(t *testing.T) {
	a, err := newAgent(testNodeConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	assert.Equal(t, agent.StateIdle, a.State())

	cfg := testNodeConfig("http://127.0.0.1:1")
	cfg.Capacity = 0
	_, err = newAgent(cfg)
	assert.ErrorIs(t, err, agent.ErrInvalidConfig)
}

// TestRunRegistrationFailure tests that an unreachable coordinator is fatal
func TestRunRegistrationFailure(t *testing.T) {
	cfg := testNodeConfig("http://127.0.0.1:1")

	err := run(context.Background(), cfg)
	assert.ErrorContains(t, err, "register node node-test")
}

// TestRunCompletesDispatchedWork tests a node against a live coordinator API
func TestRunCompletesDispatchedWork(t *testing.T) {
	store := coordinator.NewTaskStore()
	srv := httptest.NewServer(api.NewServer(store, routing.NewPlanner()).Handler())
	defer srv.Close()

	_, err := store.CreateTask(coordinator.NewTask{
		TrackingID: "track-node",
		Recipient:  "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Tier:       cluster.TierMedium,
		Amount:     3000,
		Fragments: []cluster.FragmentSpec{
			{FragmentID: "track-node-1", Amount: 1000, DelayMs: 5, ShadowWalletCount: 1, NoiseTxCount: 1},
			{FragmentID: "track-node-2", Amount: 2000, DelayMs: 5, ShadowWalletCount: 2},
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testNodeConfig(srv.URL)) }()

	require.Eventually(t, func() bool {
		sum, err := store.TaskStatus("track-node")
		return err == nil && sum.State == cluster.TaskCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec, ok := store.Node("node-test")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Capacity)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}

	task, err := store.Task("track-node")
	require.NoError(t, err)
	for _, f := range task.Fragments {
		sig, ok := f.Signature.Get()
		assert.True(t, ok)
		assert.Contains(t, sig, "SIM-")
	}
}
