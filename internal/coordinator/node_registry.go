package coordinator

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/xvoid/internal/cluster"
)

// RegisterNode adds a node or refreshes an existing one.
//
// A new node starts with a load equal to the in-flight fragments it already
// owns, which is zero unless tasks were restored from the journal.
// Re-registering a known id keeps its load
// so in-flight work is not masked; endpoint, capacity and heartbeat are
// refreshed, and load is clamped if the capacity shrank.
//
// Returns a copy of the resulting record, or ErrInvalidNode for a missing id
// or a capacity below one.
func (s *TaskStore) RegisterNode(req cluster.RegisterRequest) (cluster.NodeRecord, error) {
	if strings.TrimSpace(req.NodeID) == "" {
		return cluster.NodeRecord{}, fmt.Errorf("%w: missing node id", ErrInvalidNode)
	}
	if req.Capacity < 1 {
		return cluster.NodeRecord{}, fmt.Errorf("%w: capacity %d", ErrInvalidNode, req.Capacity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.nodes[req.NodeID]; ok {
		rec.Endpoint = req.Endpoint
		rec.Capacity = req.Capacity
		rec.Load = min(rec.Load, rec.Capacity)
		rec.LastHeartbeat = now
		s.logger.Info("node re-registered",
			"nodeId", req.NodeID,
			"capacity", rec.Capacity,
			"load", rec.Load)
		return *rec, nil
	}

	rec := &cluster.NodeRecord{
		NodeID:        req.NodeID,
		Endpoint:      req.Endpoint,
		Capacity:      req.Capacity,
		Load:          min(s.ownedInFlightLocked(req.NodeID), req.Capacity),
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	s.nodes[req.NodeID] = rec
	s.logger.Info("node registered",
		"nodeId", req.NodeID,
		"endpoint", req.Endpoint,
		"capacity", req.Capacity,
		"load", rec.Load)
	return *rec, nil
}

func (s *TaskStore) ownedInFlightLocked(nodeID string) int {
	n := 0
	for fragmentID := range s.inFlight {
		entry, idx, ok := s.lookupLocked(fragmentID)
		if !ok {
			continue
		}
		if owner, _ := entry.task.Fragments[idx].AssignedNodeID.Get(); owner == nodeID {
			n++
		}
	}
	return n
}

// Heartbeat refreshes a node's liveness.
func (s *TaskStore) Heartbeat(nodeID string) (cluster.NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[nodeID]
	if !ok {
		return cluster.NodeRecord{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	rec.LastHeartbeat = s.now()
	return *rec, nil
}

// Node returns a copy of one node record.
func (s *TaskStore) Node(nodeID string) (cluster.NodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.nodes[nodeID]
	if !ok {
		return cluster.NodeRecord{}, false
	}
	return *rec, true
}

// Nodes returns every registered node with its liveness verdict, sorted by
// node id.
func (s *TaskStore) Nodes() []cluster.NodeView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	views := make([]cluster.NodeView, 0, len(s.nodes))
	for _, rec := range s.nodes {
		views = append(views, cluster.NodeView{NodeRecord: *rec, Live: s.liveAt(*rec, now)})
	}
	slices.SortFunc(views, func(a, b cluster.NodeView) int {
		return strings.Compare(a.NodeID, b.NodeID)
	})
	return views
}

// Roster returns a snapshot of the live nodes for planning, sorted by node
// id. Stale nodes are left out so new fragments are not preferred for them.
func (s *TaskStore) Roster() []cluster.NodeRecord {
	views := s.Nodes()
	roster := make([]cluster.NodeRecord, 0, len(views))
	for _, v := range views {
		if v.Live {
			roster = append(roster, v.NodeRecord)
		}
	}
	return roster
}

// IsLive reports whether rec's heartbeat is younger than the staleness
// threshold.
func (s *TaskStore) IsLive(rec cluster.NodeRecord) bool {
	return s.liveAt(rec, s.now())
}

func (s *TaskStore) liveAt(rec cluster.NodeRecord, now time.Time) bool {
	return now.Sub(rec.LastHeartbeat) < s.staleAfter
}
