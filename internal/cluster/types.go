package cluster

import (
	"fmt"
	"time"
)

// PrivacyTier names a privacy profile controlling fragment count, timing
// and obfuscation intensity.
type PrivacyTier string

const (
	TierLow    PrivacyTier = "low"
	TierMedium PrivacyTier = "medium"
	TierHigh   PrivacyTier = "high"
)

// ParseTier validates s as a privacy tier.
func ParseTier(s string) (PrivacyTier, error) {
	switch t := PrivacyTier(s); t {
	case TierLow, TierMedium, TierHigh:
		return t, nil
	}
	return "", fmt.Errorf("unknown privacy tier %q", s)
}

// FragmentState is the coordination state of a single fragment. The
// spellings are part of the wire format.
type FragmentState string

const (
	FragmentPending   FragmentState = "pending"
	FragmentAssigned  FragmentState = "assigned"
	FragmentCompleted FragmentState = "completed"
	FragmentFailed    FragmentState = "failed"
)

// TaskState is the aggregate state of a task derived from its fragments.
type TaskState string

const (
	TaskInProgress TaskState = "in_progress"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
)

// NodeRecord is the coordinator's view of a registered worker node.
// Invariant: 0 <= Load <= Capacity.
type NodeRecord struct {
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	RegisteredAt  time.Time `json:"registeredAt"`
	NodeID        string    `json:"nodeId"`
	Endpoint      string    `json:"endpoint"`
	Capacity      int       `json:"capacity"`
	Load          int       `json:"load"`
}

// Headroom is the number of additional fragments the node can accept.
func (n NodeRecord) Headroom() int {
	return n.Capacity - n.Load
}

// FragmentSpec is one planned fragment, produced by the planner before the
// task exists.
type FragmentSpec struct {
	AssignedNodeID    Optional[string] `json:"assignedNodeId"`
	FragmentID        string           `json:"fragmentId"`
	Amount            int64            `json:"amount"`
	DelayMs           int64            `json:"delayMs"`
	ShadowWalletCount int              `json:"shadowWalletCount"`
	NoiseTxCount      int              `json:"noiseTxCount"`
}

// WorkOrder is the executor-facing payload handed to a worker at dispatch.
type WorkOrder struct {
	FragmentID        string `json:"fragmentId"`
	TrackingID        string `json:"trackingId"`
	Recipient         string `json:"recipient"`
	AssignedNodeID    string `json:"assignedNodeId"`
	Amount            int64  `json:"amount"`
	DelayMs           int64  `json:"delayMs"`
	ShadowWalletCount int    `json:"shadowWalletCount"`
	NoiseTxCount      int    `json:"noiseTxCount"`
}

// Delay returns DelayMs as a duration.
func (w WorkOrder) Delay() time.Duration {
	return time.Duration(w.DelayMs) * time.Millisecond
}

// FragmentStatus is the coordination bookkeeping for one fragment. It is
// owned by its parent Task.
type FragmentStatus struct {
	UpdatedAt      time.Time        `json:"updatedAt"`
	AssignedNodeID Optional[string] `json:"assignedNodeId"`
	Signature      Optional[string] `json:"signature"`
	LastError      Optional[string] `json:"lastError"`
	FragmentID     string           `json:"fragmentId"`
	Status         FragmentState    `json:"status"`
	Amount         int64            `json:"amount"`
	Retries        int              `json:"retries"`
}

// Task is one transfer request split into a fixed set of fragments.
// Invariant: TotalFragments == len(Fragments) and the fragment amounts sum
// to Amount.
type Task struct {
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	TrackingID     string           `json:"trackingId"`
	Recipient      string           `json:"recipient"`
	PrivacyTier    PrivacyTier      `json:"privacyLevel"`
	Fragments      []FragmentStatus `json:"fragments"`
	Amount         int64            `json:"amount"`
	TotalFragments int              `json:"totalFragments"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Fragments = append([]FragmentStatus(nil), t.Fragments...)
	return &c
}

// TaskStatusSummary aggregates a task's fragments.
// Invariant: Completed + Pending + Failed == Total.
type TaskStatusSummary struct {
	TrackingID string    `json:"trackingId"`
	State      TaskState `json:"state"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Pending    int       `json:"pending"`
	Failed     int       `json:"failed"`
}

// Terminal reports whether every fragment has reached a terminal state.
func (s TaskStatusSummary) Terminal() bool {
	return s.State != TaskInProgress
}

// RegisterRequest is sent by a node when it starts.
type RegisterRequest struct {
	NodeID   string `json:"nodeId"`
	Endpoint string `json:"endpoint"`
	Capacity int    `json:"capacity"`
}

// HeartbeatRequest refreshes a node's liveness.
type HeartbeatRequest struct {
	NodeID string `json:"nodeId"`
}

// HeartbeatResponse acknowledges a heartbeat with the node's current load.
type HeartbeatResponse struct {
	OK   bool `json:"ok"`
	Load int  `json:"load"`
}

// FetchResponse carries the next work order, or null when there is none.
type FetchResponse struct {
	Task *WorkOrder `json:"task"`
}

// ReportRequest is a worker's outcome for one fragment. Status must be
// completed or failed.
type ReportRequest struct {
	Signature  Optional[string] `json:"signature"`
	Error      Optional[string] `json:"error"`
	NodeID     string           `json:"nodeId"`
	TrackingID string           `json:"trackingId"`
	FragmentID string           `json:"fragmentId"`
	Status     FragmentState    `json:"status"`
}

// SubmitRequest asks the coordinator to plan and enqueue a transfer.
// Amount is in the minimal currency unit.
type SubmitRequest struct {
	Recipient    string `json:"recipient"`
	PrivacyLevel string `json:"privacyLevel"`
	Amount       int64  `json:"amount"`
}

// SubmitResponse returns the tracking id of an accepted transfer.
type SubmitResponse struct {
	TrackingID string `json:"trackingId"`
	Fragments  int    `json:"fragments"`
}

// NodeView is a node record annotated with the liveness verdict.
type NodeView struct {
	NodeRecord
	Live bool `json:"live"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
