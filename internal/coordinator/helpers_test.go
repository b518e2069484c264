package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/xvoid/internal/cluster"
)

// fakeClock is a manually advanced clock safe for concurrent use.
type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *fakeClock, opts ...Option) *TaskStore {
	t.Helper()
	base := []Option{
		WithClock(clock.Now),
		WithStaleAfter(30 * time.Second),
		WithMaxRetries(3),
	}
	return NewTaskStore(append(base, opts...)...)
}

func node(id string, capacity int) cluster.RegisterRequest {
	return cluster.RegisterRequest{NodeID: id, Endpoint: "http://" + id, Capacity: capacity}
}

func registerNodes(t *testing.T, s *TaskStore, reqs ...cluster.RegisterRequest) {
	t.Helper()
	for _, r := range reqs {
		_, err := s.RegisterNode(r)
		require.NoError(t, err)
	}
}

// spec builds a fragment spec; an empty preferred node leaves it unassigned.
func spec(id string, amount int64, preferred string) cluster.FragmentSpec {
	fs := cluster.FragmentSpec{FragmentID: id, Amount: amount, DelayMs: 10}
	if preferred != "" {
		fs.AssignedNodeID = cluster.Some(preferred)
	}
	return fs
}

func createTestTask(t *testing.T, s *TaskStore, trackingID string, amount int64, specs ...cluster.FragmentSpec) *cluster.Task {
	t.Helper()
	task, err := s.CreateTask(NewTask{
		TrackingID: trackingID,
		Recipient:  "recipient-address",
		Tier:       cluster.TierLow,
		Amount:     amount,
		Fragments:  specs,
	})
	require.NoError(t, err)
	return task
}

func completed(nodeID, trackingID, fragmentID string) cluster.ReportRequest {
	return cluster.ReportRequest{
		NodeID:     nodeID,
		TrackingID: trackingID,
		FragmentID: fragmentID,
		Status:     cluster.FragmentCompleted,
		Signature:  cluster.Some("sig-" + fragmentID),
	}
}

func failed(nodeID, trackingID, fragmentID, msg string) cluster.ReportRequest {
	return cluster.ReportRequest{
		NodeID:     nodeID,
		TrackingID: trackingID,
		FragmentID: fragmentID,
		Status:     cluster.FragmentFailed,
		Error:      cluster.Some(msg),
	}
}
