package agent

import (
	"context"
	"net/url"
	"strings"

	"github.com/dreamware/xvoid/internal/cluster"
)

// Dispatcher is the coordinator's dispatch API as seen from a node.
type Dispatcher interface {
	Register(ctx context.Context, req cluster.RegisterRequest) error
	Heartbeat(ctx context.Context, nodeID string) error
	// FetchNext returns nil when there is no work.
	FetchNext(ctx context.Context, nodeID string) (*cluster.WorkOrder, error)
	Report(ctx context.Context, req cluster.ReportRequest) (cluster.TaskStatusSummary, error)
}

// HTTPDispatcher talks to a coordinator over its JSON HTTP API.
type HTTPDispatcher struct {
	baseURL string
}

// NewHTTPDispatcher returns a client for the coordinator at baseURL.
func NewHTTPDispatcher(baseURL string) *HTTPDispatcher {
	return &HTTPDispatcher{baseURL: strings.TrimRight(baseURL, "/")}
}

func (d *HTTPDispatcher) Register(ctx context.Context, req cluster.RegisterRequest) error {
	return cluster.PostJSON(ctx, d.baseURL+"/nodes/register", req, nil)
}

func (d *HTTPDispatcher) Heartbeat(ctx context.Context, nodeID string) error {
	var resp cluster.HeartbeatResponse
	return cluster.PostJSON(ctx, d.baseURL+"/nodes/heartbeat", cluster.HeartbeatRequest{NodeID: nodeID}, &resp)
}

func (d *HTTPDispatcher) FetchNext(ctx context.Context, nodeID string) (*cluster.WorkOrder, error) {
	var resp cluster.FetchResponse
	if err := cluster.GetJSON(ctx, d.baseURL+"/tasks/next?nodeId="+url.QueryEscape(nodeID), &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (d *HTTPDispatcher) Report(ctx context.Context, req cluster.ReportRequest) (cluster.TaskStatusSummary, error) {
	var summary cluster.TaskStatusSummary
	err := cluster.PostJSON(ctx, d.baseURL+"/tasks/report", req, &summary)
	return summary, err
}
