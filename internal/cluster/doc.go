// Package cluster holds the data shapes shared by the coordinator, the
// worker nodes and the operator CLI, plus the small JSON-over-HTTP helpers
// they use to talk to each other.
//
// # Overview
//
// A transfer request becomes a Task owning a fixed list of fragments. Each
// fragment has two faces:
//
//   - FragmentStatus: coordination bookkeeping kept by the coordinator
//     (state, owner, retries, last error, receipt signature)
//   - WorkOrder: the executor-facing payload that crosses the wire to a
//     worker at dispatch time (amount, delay, hop and noise counts)
//
// The two are joined by fragment id. NodeRecord is referenced from a
// fragment only by node id, so a node dropping out of liveness never
// invalidates fragment history.
//
// # Wire format
//
// Field names and the fragment state spellings (pending, assigned,
// completed, failed) are part of the wire contract:
//
//	POST /nodes/register   RegisterRequest        → NodeRecord
//	POST /nodes/heartbeat  HeartbeatRequest       → HeartbeatResponse
//	GET  /tasks/next       ?nodeId=               → FetchResponse
//	POST /tasks/report     ReportRequest          → TaskStatusSummary
//	GET  /tasks/{id}/status                       → TaskStatusSummary
//	POST /submit           SubmitRequest          → SubmitResponse
//
// Optional fields use Optional[T], which encodes as JSON null when absent,
// so "not yet assigned" never collides with "assigned to the empty string".
//
// # Errors
//
// PostJSON and GetJSON return *HTTPError for any non-2xx response. The
// coordinator always answers errors with an ErrorResponse body, whose
// message is copied onto HTTPError.Message. Use IsStatus to branch on a
// specific status code.
package cluster
