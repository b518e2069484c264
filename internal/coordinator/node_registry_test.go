package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/xvoid/internal/cluster"
)

func TestRegisterNode(t *testing.T) {
	tests := []struct {
		name    string
		req     cluster.RegisterRequest
		wantErr error
	}{
		{"valid", node("a", 2), nil},
		{"missing id", cluster.RegisterRequest{Capacity: 1}, ErrInvalidNode},
		{"blank id", cluster.RegisterRequest{NodeID: "  ", Capacity: 1}, ErrInvalidNode},
		{"zero capacity", cluster.RegisterRequest{NodeID: "a"}, ErrInvalidNode},
		{"negative capacity", cluster.RegisterRequest{NodeID: "a", Capacity: -1}, ErrInvalidNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			s := newTestStore(t, clock)
			rec, err := s.RegisterNode(tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, s.Nodes())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, cluster.NodeRecord{
				NodeID:        "a",
				Endpoint:      "http://a",
				Capacity:      2,
				RegisteredAt:  clock.Now(),
				LastHeartbeat: clock.Now(),
			}, rec)
		})
	}
}

func TestReRegisterPreservesLoad(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	registerNodes(t, s, node("a", 3))
	createTestTask(t, s, "t1", 20, spec("t1-1", 10, ""), spec("t1-2", 10, ""))
	for i := 0; i < 2; i++ {
		_, err := s.FetchNext("a")
		require.NoError(t, err)
	}
	registeredAt := clock.Now()

	clock.Advance(10 * time.Second)
	rec, err := s.RegisterNode(cluster.RegisterRequest{NodeID: "a", Endpoint: "http://a:2", Capacity: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Load, "load survives re-registration")
	assert.Equal(t, 4, rec.Capacity)
	assert.Equal(t, "http://a:2", rec.Endpoint)
	assert.Equal(t, registeredAt, rec.RegisteredAt)
	assert.Equal(t, clock.Now(), rec.LastHeartbeat)

	rec, err = s.RegisterNode(cluster.RegisterRequest{NodeID: "a", Capacity: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Load, "load clamped to shrunk capacity")
}

func TestHeartbeat(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)

	_, err := s.Heartbeat("ghost")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	registerNodes(t, s, node("a", 1))
	clock.Advance(time.Minute)
	rec, _ := s.Node("a")
	assert.False(t, s.IsLive(rec))

	rec, err = s.Heartbeat("a")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), rec.LastHeartbeat)
	assert.True(t, s.IsLive(rec))
}

func TestNodesAndRoster(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	registerNodes(t, s, node("c", 1), node("a", 1))
	clock.Advance(20 * time.Second)
	registerNodes(t, s, node("b", 1))
	clock.Advance(15 * time.Second)

	views := s.Nodes()
	require.Len(t, views, 3)
	assert.Equal(t, "a", views[0].NodeID)
	assert.Equal(t, "b", views[1].NodeID)
	assert.Equal(t, "c", views[2].NodeID)
	assert.False(t, views[0].Live)
	assert.True(t, views[1].Live)
	assert.False(t, views[2].Live)

	roster := s.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "b", roster[0].NodeID)

	_, ok := s.Node("missing")
	assert.False(t, ok)
}
