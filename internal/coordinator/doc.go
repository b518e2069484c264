// Package coordinator implements the dispatch side of xvoid: the node
// registry, the task store that owns every fragment's lifecycle, and the
// liveness monitor that frees work held by vanished nodes.
//
// # Overview
//
// A transfer is planned into fragments (see package routing) and handed to
// TaskStore.CreateTask. From then on the TaskStore is the single source of
// truth: worker nodes poll FetchNext for work orders and answer with
// ReportFragment, and status queries aggregate from the same state.
//
//	 client ──submit──▶ planner ──specs──▶ CreateTask
//	                                          │
//	                           ┌──────────────▼──────────────┐
//	 node ──FetchNext─────────▶│          TaskStore          │
//	 node ──ReportFragment────▶│  queue · index · in-flight  │
//	 node ──Heartbeat─────────▶│  node records (load/cap)    │
//	                           └──────────────┬──────────────┘
//	                                          │ snapshots
//	                                          ▼
//	                                    storage.Store
//
// # Fragment lifecycle
//
//	pending ──FetchNext──▶ assigned ──report completed──▶ completed
//	   ▲                      │
//	   │  report failed       │
//	   └──(retries < max)─────┤
//	   ▲                      └──report failed (retries ≥ max)──▶ failed
//	   └────reclaim (owner stale)──────┘
//
// # Concurrency
//
// One RWMutex guards all node, task and queue state. Registration,
// heartbeat, task creation, dispatch, report and reclaim take it
// exclusively, so no two of them interleave. Queries take it shared and
// return copies. A node's load and a fragment's status and owner are only
// ever changed under the lock.
//
// # Staleness
//
// A node is live while its last heartbeat is younger than the staleness
// threshold. Fragments held by a stale node go back to pending at the start
// of every FetchNext and whenever the LivenessMonitor sees a node go stale.
// A late report from the old owner is refused with ErrFragmentNotAssigned.
package coordinator
