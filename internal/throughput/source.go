// Package throughput supplies the planner's optional network throughput
// hint. A Source measures transactions per second; a Monitor caches the
// measurement so request intake never waits on the network more than once
// per TTL.
package throughput

import (
	"context"
	"fmt"

	"github.com/dreamware/xvoid/internal/cluster"
)

// DefaultSampleCount is how many recent performance samples RPCSource
// averages over.
const DefaultSampleCount = 5

// Source measures current network throughput. A nil error with an absent
// value means the network reported nothing usable.
type Source interface {
	TPS(ctx context.Context) (cluster.Optional[float64], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (cluster.Optional[float64], error)

// TPS calls f.
func (f SourceFunc) TPS(ctx context.Context) (cluster.Optional[float64], error) {
	return f(ctx)
}

// PerformanceSample is one entry of a getRecentPerformanceSamples result.
type PerformanceSample struct {
	Slot             uint64 `json:"slot"`
	NumTransactions  uint64 `json:"numTransactions"`
	NumSlots         uint64 `json:"numSlots"`
	SamplePeriodSecs uint64 `json:"samplePeriodSecs"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type rpcResponse struct {
	Error  *rpcError           `json:"error"`
	Result []PerformanceSample `json:"result"`
}

// RPCSource reads throughput from a ledger node's JSON-RPC endpoint using
// getRecentPerformanceSamples.
type RPCSource struct {
	URL     string
	Samples int
}

// NewRPCSource returns a source averaging the default number of samples.
func NewRPCSource(url string) *RPCSource {
	return &RPCSource{URL: url, Samples: DefaultSampleCount}
}

// TPS returns total transactions over total sample seconds.
func (s *RPCSource) TPS(ctx context.Context) (cluster.Optional[float64], error) {
	n := s.Samples
	if n <= 0 {
		n = DefaultSampleCount
	}

	var resp rpcResponse
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getRecentPerformanceSamples", Params: []any{n}}
	if err := cluster.PostJSON(ctx, s.URL, req, &resp); err != nil {
		return cluster.None[float64](), fmt.Errorf("getRecentPerformanceSamples: %w", err)
	}
	if resp.Error != nil {
		return cluster.None[float64](), fmt.Errorf("getRecentPerformanceSamples: rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return AverageTPS(resp.Result), nil
}

// AverageTPS divides the summed transaction counts by the summed sample
// periods. It is absent when there are no samples or no elapsed time.
func AverageTPS(samples []PerformanceSample) cluster.Optional[float64] {
	var txs, secs uint64
	for _, s := range samples {
		txs += s.NumTransactions
		secs += s.SamplePeriodSecs
	}
	if secs == 0 {
		return cluster.None[float64]()
	}
	return cluster.Some(float64(txs) / float64(secs))
}
