package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/xvoid/internal/cluster"
	"github.com/dreamware/xvoid/internal/storage"
)

var (
	// ErrNodeNotFound is returned for a node id that was never registered.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidNode is returned for a registration with no id or capacity.
	ErrInvalidNode = errors.New("invalid node registration")
	// ErrTaskNotFound is returned for an unknown tracking id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrFragmentNotFound is returned for an unknown fragment id.
	ErrFragmentNotFound = errors.New("fragment not found")
	// ErrFragmentNotAssigned is returned when a node reports a fragment it
	// does not currently hold.
	ErrFragmentNotAssigned = errors.New("fragment not assigned to node")
	// ErrDuplicateTask is returned when a tracking id is reused.
	ErrDuplicateTask = errors.New("task already exists")
	// ErrInvalidTask is returned for a task whose fragments are empty,
	// duplicated, or do not sum to the task amount.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvalidReport is returned for a report status other than
	// completed or failed.
	ErrInvalidReport = errors.New("invalid report")
)

const (
	// DefaultMaxRetries is the number of failed reports after which a
	// fragment becomes terminally failed.
	DefaultMaxRetries = 3
	// DefaultStaleAfter is the heartbeat age past which a node's
	// assignments may be reclaimed.
	DefaultStaleAfter = 30 * time.Second

	taskKeyPrefix  = "task:"
	journalTimeout = 5 * time.Second
)

// fragmentRef locates a fragment inside its parent task.
type fragmentRef struct {
	trackingID string
	index      int
}

// taskEntry pairs a task's bookkeeping with the work orders handed out for
// its fragments. orders[i] belongs to task.Fragments[i].
type taskEntry struct {
	task   *cluster.Task
	orders []cluster.WorkOrder
}

// taskSnapshot is the journal record for one task.
type taskSnapshot struct {
	Task   *cluster.Task       `json:"task"`
	Orders []cluster.WorkOrder `json:"orders"`
}

// TaskStore is the single source of truth for node capacity, fragment
// assignment and retry state. It owns the node registry, every task and its
// fragments, the global fragment index, the FIFO dispatch queue and the set
// of in-flight fragments.
//
// Every mutating operation (RegisterNode, Heartbeat, CreateTask, FetchNext,
// ReportFragment, ReclaimStale) runs under one exclusive lock, so dispatch
// and report are atomic with respect to each other. Read-only queries take
// the shared lock and return copies.
//
// Architecture:
//
//	┌────────────────────────────────────────────┐
//	│                 TaskStore                  │
//	├────────────────────────────────────────────┤
//	│  nodes:     nodeId → NodeRecord            │
//	│  tasks:     trackingId → Task + WorkOrders │
//	│  fragments: fragmentId → (task, index)     │
//	│  queue:     [fragmentId, ...] FIFO         │
//	│  inFlight:  {fragmentId} status=assigned   │
//	├────────────────────────────────────────────┤
//	│  journal:   storage.Store (optional)       │
//	└────────────────────────────────────────────┘
type TaskStore struct {
	nodes      map[string]*cluster.NodeRecord
	tasks      map[string]*taskEntry
	fragments  map[string]fragmentRef
	inFlight   map[string]struct{}
	// reclaimed maps a requeued fragment to the node it was taken from,
	// until the fragment is dispatched again or finishes.
	reclaimed  map[string]string
	journal    storage.Store
	logger     *slog.Logger
	now        func() time.Time
	queue      []string
	staleAfter time.Duration
	maxRetries int
	mu         sync.RWMutex

	// restoredOwnerGrace shields in-flight fragments of not yet re-registered
	// owners from reclaim after Restore.
	restoredOwnerGrace time.Time
}

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithMaxRetries sets how many failed reports a fragment survives.
func WithMaxRetries(n int) Option {
	return func(s *TaskStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithStaleAfter sets the staleness threshold for reclaim.
func WithStaleAfter(d time.Duration) Option {
	return func(s *TaskStore) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) { s.now = now }
}

// WithJournal writes a snapshot of every mutated task to st.
func WithJournal(st storage.Store) Option {
	return func(s *TaskStore) { s.journal = st }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *TaskStore) { s.logger = l }
}

// NewTaskStore returns an empty store.
//
// Example:
//
//	store := coordinator.NewTaskStore(
//	    coordinator.WithMaxRetries(3),
//	    coordinator.WithStaleAfter(30*time.Second),
//	    coordinator.WithJournal(storage.NewMemoryStore()),
//	)
func NewTaskStore(opts ...Option) *TaskStore {
	s := &TaskStore{
		nodes:      make(map[string]*cluster.NodeRecord),
		tasks:      make(map[string]*taskEntry),
		fragments:  make(map[string]fragmentRef),
		inFlight:   make(map[string]struct{}),
		reclaimed:  make(map[string]string),
		maxRetries: DefaultMaxRetries,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "task-store")
	}
	return s
}

// MaxRetries returns the configured retry bound.
func (s *TaskStore) MaxRetries() int { return s.maxRetries }

// StaleAfter returns the configured staleness threshold.
func (s *TaskStore) StaleAfter() time.Duration { return s.staleAfter }

// NewTask is the input to CreateTask: a planned transfer.
type NewTask struct {
	TrackingID string
	Recipient  string
	Tier       cluster.PrivacyTier
	Fragments  []cluster.FragmentSpec
	Amount     int64
}

func (nt NewTask) validate() error {
	switch {
	case nt.TrackingID == "":
		return fmt.Errorf("%w: missing tracking id", ErrInvalidTask)
	case nt.Recipient == "":
		return fmt.Errorf("%w: missing recipient", ErrInvalidTask)
	case nt.Amount <= 0:
		return fmt.Errorf("%w: amount %d", ErrInvalidTask, nt.Amount)
	case len(nt.Fragments) == 0:
		return fmt.Errorf("%w: no fragments", ErrInvalidTask)
	}

	seen := make(map[string]struct{}, len(nt.Fragments))
	var sum int64
	for _, f := range nt.Fragments {
		if f.FragmentID == "" {
			return fmt.Errorf("%w: fragment without id", ErrInvalidTask)
		}
		if _, dup := seen[f.FragmentID]; dup {
			return fmt.Errorf("%w: duplicate fragment %s", ErrInvalidTask, f.FragmentID)
		}
		if f.Amount < 0 {
			return fmt.Errorf("%w: fragment %s amount %d", ErrInvalidTask, f.FragmentID, f.Amount)
		}
		seen[f.FragmentID] = struct{}{}
		sum += f.Amount
	}
	if sum != nt.Amount {
		return fmt.Errorf("%w: fragments sum to %d, want %d", ErrInvalidTask, sum, nt.Amount)
	}
	return nil
}

// CreateTask allocates a task from a plan, indexes every fragment and
// appends the fragment ids to the dispatch queue in plan order. This is the
// only place fragments are created.
//
// A planned preferred node is kept as the fragment's AssignedNodeID while it
// is pending; FetchNext leaves such a fragment to that node for as long as
// the node stays live.
//
// Returns a copy of the new task, or ErrInvalidTask / ErrDuplicateTask.
func (s *TaskStore) CreateTask(nt NewTask) (*cluster.Task, error) {
	if err := nt.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[nt.TrackingID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, nt.TrackingID)
	}
	for _, f := range nt.Fragments {
		if _, exists := s.fragments[f.FragmentID]; exists {
			return nil, fmt.Errorf("%w: fragment %s already exists", ErrInvalidTask, f.FragmentID)
		}
	}

	now := s.now()
	task := &cluster.Task{
		TrackingID:     nt.TrackingID,
		Recipient:      nt.Recipient,
		Amount:         nt.Amount,
		PrivacyTier:    nt.Tier,
		TotalFragments: len(nt.Fragments),
		CreatedAt:      now,
		UpdatedAt:      now,
		Fragments:      make([]cluster.FragmentStatus, len(nt.Fragments)),
	}
	orders := make([]cluster.WorkOrder, len(nt.Fragments))

	for i, f := range nt.Fragments {
		task.Fragments[i] = cluster.FragmentStatus{
			FragmentID:     f.FragmentID,
			Amount:         f.Amount,
			AssignedNodeID: f.AssignedNodeID,
			Status:         cluster.FragmentPending,
			UpdatedAt:      now,
		}
		orders[i] = cluster.WorkOrder{
			FragmentID:        f.FragmentID,
			TrackingID:        nt.TrackingID,
			Recipient:         nt.Recipient,
			Amount:            f.Amount,
			DelayMs:           f.DelayMs,
			ShadowWalletCount: f.ShadowWalletCount,
			NoiseTxCount:      f.NoiseTxCount,
		}
		s.fragments[f.FragmentID] = fragmentRef{trackingID: nt.TrackingID, index: i}
		s.queue = append(s.queue, f.FragmentID)
	}

	entry := &taskEntry{task: task, orders: orders}
	s.tasks[nt.TrackingID] = entry
	s.persistLocked(entry)

	s.logger.Info("task created",
		"trackingId", nt.TrackingID,
		"tier", nt.Tier,
		"fragments", len(nt.Fragments))
	return task.Clone(), nil
}

// FetchNext dispatches the next eligible fragment to nodeID.
//
// Algorithm:
//  1. Reject unknown nodes with ErrNodeNotFound.
//  2. Return stale in-flight fragments held by other nodes to the queue.
//  3. A saturated node (load >= capacity) gets no work.
//  4. Scan the queue in order. Skip fragments that are not pending, and
//     fragments preferred for a different node that is still live.
//  5. Assign the first eligible fragment: remove it from the queue, mark it
//     assigned to nodeID, bump the node's load and heartbeat.
//
// Returns (nil, nil) when there is no work for the node.
func (s *TaskStore) FetchNext(nodeID string) (*cluster.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	now := s.now()
	s.reclaimLocked(now, nodeID)

	if node.Load >= node.Capacity {
		return nil, nil
	}

	for i, fragmentID := range s.queue {
		entry, idx, ok := s.lookupLocked(fragmentID)
		if !ok {
			continue
		}
		fs := &entry.task.Fragments[idx]
		if !s.dispatchableLocked(fs, nodeID, now) {
			continue
		}

		s.queue = slices.Delete(s.queue, i, i+1)
		s.inFlight[fragmentID] = struct{}{}
		delete(s.reclaimed, fragmentID)

		fs.Status = cluster.FragmentAssigned
		fs.AssignedNodeID = cluster.Some(nodeID)
		fs.UpdatedAt = now
		entry.task.UpdatedAt = now

		node.Load = min(node.Load+1, node.Capacity)
		node.LastHeartbeat = now

		order := entry.orders[idx]
		order.AssignedNodeID = nodeID
		entry.orders[idx] = order
		s.persistLocked(entry)

		s.logger.Info("fragment dispatched",
			"trackingId", order.TrackingID,
			"fragmentId", fragmentID,
			"nodeId", nodeID,
			"load", node.Load,
			"capacity", node.Capacity)
		return &order, nil
	}
	return nil, nil
}

// dispatchableLocked decides whether nodeID may take fs now.
func (s *TaskStore) dispatchableLocked(fs *cluster.FragmentStatus, nodeID string, now time.Time) bool {
	if fs.Status != cluster.FragmentPending {
		return false
	}
	prior, ok := fs.AssignedNodeID.Get()
	if !ok || prior == nodeID {
		return true
	}
	owner, known := s.nodes[prior]
	return !known || !s.liveAt(*owner, now)
}

// ReportFragment applies a worker's outcome for one fragment and returns the
// task's recomputed aggregate.
//
// The fragment must currently be assigned to req.NodeID; anything else is
// rejected with ErrFragmentNotAssigned and nothing changes. On acceptance the
// node's load drops by one (floor 0) and its heartbeat is refreshed first.
//
// One exception: a completed report from a node whose fragment was reclaimed
// and has not been dispatched again is accepted. The transfer already
// happened, so the fragment leaves the queue instead of running twice. The
// node's load is not touched; reclaim already released it.
//
//   - completed: the signature is stored and any prior error cleared.
//   - failed: retries is incremented and the error recorded. Below the retry
//     bound the fragment goes back to pending, unassigned, at the back of the
//     queue. At the bound it becomes terminally failed.
func (s *TaskStore) ReportFragment(req cluster.ReportRequest) (cluster.TaskStatusSummary, error) {
	if req.Status != cluster.FragmentCompleted && req.Status != cluster.FragmentFailed {
		return cluster.TaskStatusSummary{}, fmt.Errorf("%w: status %q", ErrInvalidReport, req.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, idx, ok := s.lookupLocked(req.FragmentID)
	if !ok || (req.TrackingID != "" && req.TrackingID != entry.task.TrackingID) {
		return cluster.TaskStatusSummary{}, fmt.Errorf("%w: %s", ErrFragmentNotFound, req.FragmentID)
	}

	fs := &entry.task.Fragments[idx]
	if s.lateCompletionLocked(fs, req) {
		return s.acceptLateCompletionLocked(entry, fs, req), nil
	}
	if owner, _ := fs.AssignedNodeID.Get(); fs.Status != cluster.FragmentAssigned || owner != req.NodeID {
		return cluster.TaskStatusSummary{}, fmt.Errorf("%w: %s is %s (node %q)",
			ErrFragmentNotAssigned, req.FragmentID, fs.Status, owner)
	}

	now := s.now()
	if node, ok := s.nodes[req.NodeID]; ok {
		node.Load = max(node.Load-1, 0)
		node.LastHeartbeat = now
	}
	delete(s.inFlight, req.FragmentID)
	delete(s.reclaimed, req.FragmentID)

	fs.UpdatedAt = now
	entry.task.UpdatedAt = now
	log := s.logger.With(
		"trackingId", entry.task.TrackingID,
		"fragmentId", req.FragmentID,
		"nodeId", req.NodeID)

	switch req.Status {
	case cluster.FragmentCompleted:
		fs.Status = cluster.FragmentCompleted
		fs.Signature = req.Signature
		fs.LastError = cluster.None[string]()
		log.Info("fragment completed", "signature", req.Signature.OrElse(""))

	case cluster.FragmentFailed:
		fs.Retries++
		fs.LastError = cluster.Some(req.Error.OrElse("unspecified failure"))
		if fs.Retries < s.maxRetries {
			fs.Status = cluster.FragmentPending
			fs.AssignedNodeID = cluster.None[string]()
			s.queue = append(s.queue, req.FragmentID)
			log.Warn("fragment failed, requeued",
				"retries", fs.Retries,
				"maxRetries", s.maxRetries,
				"error", fs.LastError.OrElse(""))
		} else {
			fs.Status = cluster.FragmentFailed
			log.Error("fragment failed permanently",
				"retries", fs.Retries,
				"error", fs.LastError.OrElse(""))
		}
	}

	s.persistLocked(entry)
	return Summarize(entry.task), nil
}

// lateCompletionLocked reports whether req completes a fragment that was
// reclaimed from req.NodeID and is still waiting in the queue.
func (s *TaskStore) lateCompletionLocked(fs *cluster.FragmentStatus, req cluster.ReportRequest) bool {
	if req.Status != cluster.FragmentCompleted || fs.Status != cluster.FragmentPending || fs.AssignedNodeID.IsSet() {
		return false
	}
	from, ok := s.reclaimed[fs.FragmentID]
	return ok && from == req.NodeID
}

func (s *TaskStore) acceptLateCompletionLocked(entry *taskEntry, fs *cluster.FragmentStatus, req cluster.ReportRequest) cluster.TaskStatusSummary {
	now := s.now()
	if i := slices.Index(s.queue, fs.FragmentID); i >= 0 {
		s.queue = slices.Delete(s.queue, i, i+1)
	}
	delete(s.reclaimed, fs.FragmentID)
	if node, ok := s.nodes[req.NodeID]; ok {
		node.LastHeartbeat = now
	}

	fs.Status = cluster.FragmentCompleted
	fs.AssignedNodeID = cluster.Some(req.NodeID)
	fs.Signature = req.Signature
	fs.LastError = cluster.None[string]()
	fs.UpdatedAt = now
	entry.task.UpdatedAt = now
	s.persistLocked(entry)

	s.logger.Info("late completion accepted for reclaimed fragment",
		"trackingId", entry.task.TrackingID,
		"fragmentId", fs.FragmentID,
		"nodeId", req.NodeID,
		"signature", req.Signature.OrElse(""))
	return Summarize(entry.task)
}

// ReclaimStale returns every in-flight fragment whose owner has gone stale
// to the back of the queue and releases the owner's load. Reclaim does not
// count as a retry. It returns the number of fragments reclaimed.
func (s *TaskStore) ReclaimStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reclaimLocked(s.now(), "")
}

// reclaimLocked reclaims stale in-flight fragments, leaving those owned by
// except alone. Candidates are requeued in fragment id order.
func (s *TaskStore) reclaimLocked(now time.Time, except string) int {
	var stale []string
	for fragmentID := range s.inFlight {
		entry, idx, ok := s.lookupLocked(fragmentID)
		if !ok || entry.task.Fragments[idx].Status != cluster.FragmentAssigned {
			delete(s.inFlight, fragmentID)
			continue
		}
		owner, _ := entry.task.Fragments[idx].AssignedNodeID.Get()
		if owner == except {
			continue
		}
		rec, known := s.nodes[owner]
		if known && s.liveAt(*rec, now) {
			continue
		}
		if !known && now.Before(s.restoredOwnerGrace) {
			continue
		}
		stale = append(stale, fragmentID)
	}
	slices.Sort(stale)

	for _, fragmentID := range stale {
		entry, idx, _ := s.lookupLocked(fragmentID)
		fs := &entry.task.Fragments[idx]
		owner, _ := fs.AssignedNodeID.Get()
		if rec, known := s.nodes[owner]; known {
			rec.Load = max(rec.Load-1, 0)
		}

		fs.Status = cluster.FragmentPending
		fs.AssignedNodeID = cluster.None[string]()
		fs.LastError = cluster.Some(fmt.Sprintf("reclaimed: node %s stale", owner))
		fs.UpdatedAt = now
		entry.task.UpdatedAt = now

		delete(s.inFlight, fragmentID)
		s.reclaimed[fragmentID] = owner
		s.queue = append(s.queue, fragmentID)
		s.persistLocked(entry)

		s.logger.Warn("fragment reclaimed from stale node",
			"trackingId", entry.task.TrackingID,
			"fragmentId", fragmentID,
			"nodeId", owner)
	}
	return len(stale)
}

// TaskStatus returns the aggregate status of a task.
func (s *TaskStore) TaskStatus(trackingID string) (cluster.TaskStatusSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[trackingID]
	if !ok {
		return cluster.TaskStatusSummary{}, fmt.Errorf("%w: %s", ErrTaskNotFound, trackingID)
	}
	return Summarize(entry.task), nil
}

// Task returns a copy of a task with its per-fragment detail.
func (s *TaskStore) Task(trackingID string) (*cluster.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[trackingID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, trackingID)
	}
	return entry.task.Clone(), nil
}

// Stats is a point-in-time count of the store's contents.
type Stats struct {
	Nodes     int `json:"nodes"`
	LiveNodes int `json:"liveNodes"`
	Tasks     int `json:"tasks"`
	Queued    int `json:"queued"`
	InFlight  int `json:"inFlight"`
}

// Stats returns current counts.
func (s *TaskStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	st := Stats{
		Nodes:    len(s.nodes),
		Tasks:    len(s.tasks),
		Queued:   len(s.queue),
		InFlight: len(s.inFlight),
	}
	for _, n := range s.nodes {
		if s.liveAt(*n, now) {
			st.LiveNodes++
		}
	}
	return st
}

// Restore loads task snapshots from the journal and rebuilds the fragment
// index, the dispatch queue and the in-flight set. Tasks are replayed in
// creation order, so pending fragments are queued in creation order too.
// Node records are not journaled; nodes re-register and in-flight work held
// by nodes that never come back is reclaimed as stale. Owners that have not
// re-registered get one staleness period from Restore before their fragments
// are reclaimed.
//
// Returns the number of tasks restored. Without a journal it is a no-op.
func (s *TaskStore) Restore(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}

	keys, err := s.journal.List(ctx, taskKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("restore: list snapshots: %w", err)
	}

	entries := make([]*taskEntry, 0, len(keys))
	for _, key := range keys {
		raw, err := s.journal.Get(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("restore %s: %w", key, err)
		}
		var snap taskSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return 0, fmt.Errorf("restore %s: %w", key, err)
		}
		if snap.Task == nil || len(snap.Orders) != len(snap.Task.Fragments) {
			return 0, fmt.Errorf("restore %s: %w: corrupt snapshot", key, ErrInvalidTask)
		}
		entries = append(entries, &taskEntry{task: snap.Task, orders: snap.Orders})
	}
	slices.SortStableFunc(entries, func(a, b *taskEntry) int {
		return a.task.CreatedAt.Compare(b.task.CreatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.restoredOwnerGrace = s.now().Add(s.staleAfter)
	restored := 0
	for _, e := range entries {
		id := e.task.TrackingID
		if _, exists := s.tasks[id]; exists {
			continue
		}
		s.tasks[id] = e
		for i, fs := range e.task.Fragments {
			s.fragments[fs.FragmentID] = fragmentRef{trackingID: id, index: i}
			switch fs.Status {
			case cluster.FragmentPending:
				s.queue = append(s.queue, fs.FragmentID)
			case cluster.FragmentAssigned:
				s.inFlight[fs.FragmentID] = struct{}{}
			}
		}
		restored++
	}

	s.logger.Info("task store restored",
		"tasks", restored,
		"queued", len(s.queue),
		"inFlight", len(s.inFlight))
	return restored, nil
}

func (s *TaskStore) lookupLocked(fragmentID string) (*taskEntry, int, bool) {
	ref, ok := s.fragments[fragmentID]
	if !ok {
		return nil, 0, false
	}
	entry, ok := s.tasks[ref.trackingID]
	if !ok {
		return nil, 0, false
	}
	return entry, ref.index, true
}

// persistLocked writes the task's snapshot to the journal. In-memory state
// stays authoritative, so a journal failure is logged and not returned.
func (s *TaskStore) persistLocked(e *taskEntry) {
	if s.journal == nil {
		return
	}
	raw, err := json.Marshal(taskSnapshot{Task: e.task, Orders: e.orders})
	if err != nil {
		s.logger.Error("encode task snapshot", "trackingId", e.task.TrackingID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.journal.Put(ctx, taskKeyPrefix+e.task.TrackingID, raw); err != nil {
		s.logger.Error("journal task snapshot", "trackingId", e.task.TrackingID, "error", err)
	}
}
