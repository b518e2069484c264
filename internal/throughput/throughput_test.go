package throughput

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/xvoid/internal/cluster"
)

func TestAverageTPS(t *testing.T) {
	tests := []struct {
		name    string
		samples []PerformanceSample
		want    cluster.Optional[float64]
	}{
		{"no samples", nil, cluster.None[float64]()},
		{"zero period", []PerformanceSample{{NumTransactions: 10}}, cluster.None[float64]()},
		{"single", []PerformanceSample{{NumTransactions: 120000, SamplePeriodSecs: 60}}, cluster.Some(2000.0)},
		{"averaged", []PerformanceSample{
			{NumTransactions: 60000, SamplePeriodSecs: 60},
			{NumTransactions: 120000, SamplePeriodSecs: 60},
		}, cluster.Some(1500.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AverageTPS(tt.samples))
		})
	}
}

func TestRPCSource(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req rpcRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "2.0", req.JSONRPC)
			assert.Equal(t, "getRecentPerformanceSamples", req.Method)
			assert.Equal(t, []any{float64(DefaultSampleCount)}, req.Params)

			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[
				{"slot":10,"numTransactions":3000,"numSlots":150,"samplePeriodSecs":60},
				{"slot":11,"numTransactions":1800,"numSlots":150,"samplePeriodSecs":60}]}`))
		}))
		defer srv.Close()

		tps, err := NewRPCSource(srv.URL).TPS(context.Background())
		require.NoError(t, err)
		assert.Equal(t, cluster.Some(40.0), tps)
	})

	t.Run("rpc error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
		}))
		defer srv.Close()

		_, err := NewRPCSource(srv.URL).TPS(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "method not found")
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewRPCSource(srv.URL).TPS(context.Background())
		assert.True(t, cluster.IsStatus(err, http.StatusServiceUnavailable))
	})
}

func TestMonitorCaches(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) (cluster.Optional[float64], error) {
		calls.Add(1)
		return cluster.Some(1800.0), nil
	})

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMonitor(src, time.Minute)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	assert.Equal(t, cluster.Some(1800.0), m.Hint(ctx))
	assert.Equal(t, cluster.Some(1800.0), m.Hint(ctx))
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(61 * time.Second)
	assert.Equal(t, cluster.Some(1800.0), m.Hint(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestMonitorErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(context.Context) (cluster.Optional[float64], error) {
		if calls.Add(1) == 1 {
			return cluster.None[float64](), errors.New("rpc down")
		}
		return cluster.Some(900.0), nil
	})
	m := NewMonitor(src, time.Minute)

	ctx := context.Background()
	assert.False(t, m.Hint(ctx).IsSet())
	assert.Equal(t, cluster.Some(900.0), m.Hint(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestMonitorWithoutSource(t *testing.T) {
	assert.False(t, NewMonitor(nil, 0).Hint(context.Background()).IsSet())

	var m *Monitor
	assert.False(t, m.Hint(context.Background()).IsSet())
	assert.Equal(t, DefaultTTL, NewMonitor(nil, 0).ttl)
}
