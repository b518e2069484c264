package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dreamware/xvoid/internal/cluster"
)

// Liveness statuses reported by the LivenessMonitor.
const (
	StatusLive    = "live"
	StatusStale   = "stale"
	StatusUnknown = "unknown"
)

// NodeLiveness tracks the liveness verdict for a single node.
// Thread-safe: Protected by LivenessMonitor's mutex when accessed.
type NodeLiveness struct {
	LastCheck     time.Time // Timestamp of the last sweep that saw the node
	LastHeartbeat time.Time // Heartbeat timestamp observed at that sweep
	NodeID        string    // Unique identifier of the node
	Status        string    // Current status: "live", "stale", "unknown"
}

// LivenessMonitor periodically sweeps the node roster and classifies each
// node as live or stale by heartbeat age. Nodes heartbeat the coordinator,
// so the monitor never calls out to them; it reads the verdict the
// registry computes.
//
// On a live → stale transition it invokes the onStale callback, which the
// coordinator wires to TaskStore.ReclaimStale so fragments held by the
// vanished node become dispatchable without waiting for the next poll.
// Thread-safe: All methods are safe for concurrent access.
type LivenessMonitor struct {
	nodes    map[string]*NodeLiveness // Current verdict per node
	onStale  func(nodeID string)      // Callback when a node goes stale
	logger   *slog.Logger
	ctx      context.Context    // Context for cancellation
	cancel   context.CancelFunc // Cancel function for shutdown
	interval time.Duration      // How often to sweep
	mu       sync.RWMutex       // Protects nodes map
	wg       sync.WaitGroup     // Wait group for graceful shutdown
}

// NewLivenessMonitor creates a monitor that sweeps every interval.
//
// Example:
//
//	monitor := NewLivenessMonitor(5 * time.Second)
//	monitor.SetOnStale(func(nodeID string) { store.ReclaimStale() })
//	go monitor.Start(ctx, store.Nodes)
func NewLivenessMonitor(interval time.Duration) *LivenessMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &LivenessMonitor{
		interval: interval,
		nodes:    make(map[string]*NodeLiveness),
		logger:   slog.Default().With("component", "liveness-monitor"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnStale sets the callback invoked when a node transitions to stale.
// It must be set before Start.
func (m *LivenessMonitor) SetOnStale(callback func(nodeID string)) {
	m.onStale = callback
}

// Start sweeps the nodes returned by nodeProvider until ctx is canceled or
// Stop is called. The first sweep runs immediately. Start blocks.
func (m *LivenessMonitor) Start(ctx context.Context, nodeProvider func() []cluster.NodeView) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("liveness monitor started", "interval", m.interval)

	m.sweep(nodeProvider())

	for {
		select {
		case <-ticker.C:
			m.sweep(nodeProvider())
		case <-ctx.Done():
			m.logger.Info("liveness monitor stopping", "reason", "context canceled")
			return
		case <-m.ctx.Done():
			m.logger.Info("liveness monitor stopping", "reason", "stopped")
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit.
func (m *LivenessMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// sweep records the verdict for every node and fires onStale for each
// live → stale transition. Callbacks run after the lock is released.
func (m *LivenessMonitor) sweep(nodes []cluster.NodeView) {
	now := time.Now()
	var wentStale []string

	m.mu.Lock()
	for _, n := range nodes {
		rec, exists := m.nodes[n.NodeID]
		if !exists {
			rec = &NodeLiveness{NodeID: n.NodeID, Status: StatusUnknown}
			m.nodes[n.NodeID] = rec
		}
		previous := rec.Status
		rec.LastCheck = now
		rec.LastHeartbeat = n.LastHeartbeat

		if n.Live {
			rec.Status = StatusLive
			if previous == StatusStale {
				m.logger.Info("node recovered", "nodeId", n.NodeID)
			}
			continue
		}

		rec.Status = StatusStale
		if previous != StatusStale {
			m.logger.Warn("node went stale",
				"nodeId", n.NodeID,
				"lastHeartbeat", n.LastHeartbeat)
			wentStale = append(wentStale, n.NodeID)
		}
	}
	m.mu.Unlock()

	if m.onStale == nil {
		return
	}
	for _, id := range wentStale {
		m.onStale(id)
	}
}

// GetNodeLiveness returns a copy of the verdict for nodeID, or nil if the
// node has not been seen.
func (m *LivenessMonitor) GetNodeLiveness(nodeID string) *NodeLiveness {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.nodes[nodeID]
	if !exists {
		return nil
	}
	c := *rec
	return &c
}

// GetAllNodeLiveness returns a copy of every verdict keyed by node id.
func (m *LivenessMonitor) GetAllNodeLiveness() map[string]*NodeLiveness {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*NodeLiveness, len(m.nodes))
	for id, rec := range m.nodes {
		c := *rec
		result[id] = &c
	}
	return result
}

// IsLive reports whether nodeID was live at the last sweep.
func (m *LivenessMonitor) IsLive(nodeID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.nodes[nodeID]
	return exists && rec.Status == StatusLive
}
