// Package agent implements the worker node: it registers with the
// coordinator, heartbeats, polls for work orders and executes each
// fragment's transfer chain under a concurrency bound equal to the node's
// declared capacity.
//
// Lifecycle:
//
//	idle → registering → running (heartbeat ∥ poll ∥ worker pool)
//	     → shutting-down → stopped
//
// Shutdown stops polling first, then waits for in-flight fragments to
// finish, then stops heartbeating. A fragment still sleeping out its delay
// when shutdown begins is dropped without a report; the coordinator
// reclaims it once this node's heartbeat goes stale.
//
// When a heartbeat or poll finds the coordinator has forgotten the node,
// typically after a coordinator restart, the agent registers again.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/xvoid/internal/cluster"
	"github.com/dreamware/xvoid/internal/coordinator"
	"github.com/dreamware/xvoid/internal/transfer"
)

// State is the agent's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRegistering
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRegistering:
		return "registering"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Noise transfers move a random amount in [minNoiseAmount, maxNoiseAmount].
const (
	minNoiseAmount = 100
	maxNoiseAmount = 1100
)

// Defaults applied by New when the config leaves a field zero.
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultPollInterval      = 2 * time.Second
	DefaultRequestTimeout    = 15 * time.Second
	DefaultHopPause          = time.Second
)

// ErrInvalidConfig is returned by New for a config it cannot run with.
var ErrInvalidConfig = errors.New("invalid agent config")

// Config describes one worker node.
type Config struct {
	// Source funds every main-chain first hop and every noise transfer.
	Source            transfer.Credential
	NodeID            string
	Endpoint          string
	Capacity          int
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	RequestTimeout    time.Duration
	// HopPause is the pause after each shadow hop. Negative disables it.
	HopPause time.Duration
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HopPause == 0 {
		c.HopPause = DefaultHopPause
	}
}

func (c Config) validate() error {
	switch {
	case c.NodeID == "":
		return fmt.Errorf("%w: missing node id", ErrInvalidConfig)
	case c.Capacity < 1:
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, c.Capacity)
	case c.Source.Address == "":
		return fmt.Errorf("%w: missing source credential", ErrInvalidConfig)
	}
	return nil
}

// Stats counts fragment outcomes seen by this agent.
type Stats struct {
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	Abandoned      int64 `json:"abandoned"`
	ReportFailures int64 `json:"reportFailures"`
	NoiseFailures  int64 `json:"noiseFailures"`
	Reregistered   int64 `json:"reregistered"`
}

// Agent is one worker node's runtime.
type Agent struct {
	dispatcher Dispatcher
	executor   transfer.Executor
	logger     *slog.Logger
	slots      chan struct{}
	rng        *rand.Rand
	cfg        Config
	wg         sync.WaitGroup
	rngMu      sync.Mutex
	state      atomic.Int32

	completed      atomic.Int64
	failed         atomic.Int64
	abandoned      atomic.Int64
	reportFailures atomic.Int64
	noiseFailures  atomic.Int64
	reregistered   atomic.Int64
}

// New builds an agent. The pool size equals cfg.Capacity, matching the
// capacity the coordinator enforces for this node.
func New(cfg Config, dispatcher Dispatcher, executor transfer.Executor) (*Agent, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if dispatcher == nil || executor == nil {
		return nil, fmt.Errorf("%w: dispatcher and executor are required", ErrInvalidConfig)
	}
	return &Agent{
		cfg:        cfg,
		dispatcher: dispatcher,
		executor:   executor,
		slots:      make(chan struct{}, cfg.Capacity),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:     slog.Default().With("component", "agent", "nodeId", cfg.NodeID),
	}, nil
}

// State returns the current lifecycle state.
func (a *Agent) State() State { return State(a.state.Load()) }

func (a *Agent) setState(s State) {
	prev := State(a.state.Swap(int32(s)))
	if prev != s {
		a.logger.Debug("agent state", "from", prev, "to", s)
	}
}

// Stats returns a snapshot of outcome counters.
func (a *Agent) Stats() Stats {
	return Stats{
		Completed:      a.completed.Load(),
		Failed:         a.failed.Load(),
		Abandoned:      a.abandoned.Load(),
		ReportFailures: a.reportFailures.Load(),
		NoiseFailures:  a.noiseFailures.Load(),
		Reregistered:   a.reregistered.Load(),
	}
}

// Run registers the node and serves work until ctx is canceled. A
// registration failure is returned immediately; it is not retried. After
// ctx is canceled Run drains in-flight fragments and returns nil.
func (a *Agent) Run(ctx context.Context) error {
	a.setState(StateRegistering)
	if err := a.register(ctx); err != nil {
		a.setState(StateStopped)
		return fmt.Errorf("register node %s: %w", a.cfg.NodeID, err)
	}
	a.setState(StateRunning)
	a.logger.Info("agent started",
		"capacity", a.cfg.Capacity,
		"pollInterval", a.cfg.PollInterval,
		"heartbeatInterval", a.cfg.HeartbeatInterval)

	// heartbeats outlive ctx until the pool has drained
	hbCtx, stopHeartbeat := context.WithCancel(context.WithoutCancel(ctx))
	var g errgroup.Group
	g.Go(func() error {
		a.heartbeatLoop(hbCtx)
		return nil
	})

	a.pollLoop(ctx)

	a.setState(StateShuttingDown)
	a.logger.Info("agent shutting down, draining pool")
	a.wg.Wait()
	stopHeartbeat()
	_ = g.Wait()

	a.setState(StateStopped)
	a.logger.Info("agent stopped")
	return nil
}

func (a *Agent) register(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	return a.dispatcher.Register(rctx, cluster.RegisterRequest{
		NodeID:   a.cfg.NodeID,
		Endpoint: a.cfg.Endpoint,
		Capacity: a.cfg.Capacity,
	})
}

// unknownNode reports whether err means the coordinator has no record of
// this node, as happens after a coordinator restart.
func unknownNode(err error) bool {
	return errors.Is(err, coordinator.ErrNodeNotFound) || cluster.IsStatus(err, http.StatusNotFound)
}

// reregister registers again after the coordinator forgot this node. The
// coordinator keeps the load of fragments this node still owns.
func (a *Agent) reregister(ctx context.Context, cause error) {
	if err := a.register(ctx); err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("re-registration failed", "cause", cause, "error", err)
		}
		return
	}
	a.reregistered.Add(1)
	a.logger.Info("node re-registered with coordinator", "cause", cause)
}

// heartbeatLoop fires every HeartbeatInterval. Failures are logged and
// swallowed.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
			err := a.dispatcher.Heartbeat(hctx, a.cfg.NodeID)
			cancel()
			switch {
			case err == nil || ctx.Err() != nil:
			case unknownNode(err):
				a.reregister(ctx, err)
			default:
				a.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// pollLoop asks for work whenever a pool slot is free and hands each order
// to a worker goroutine without waiting for it. With no work, no free slot
// or a fetch error it waits one poll interval.
func (a *Agent) pollLoop(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case a.slots <- struct{}{}:
		default:
			if !sleepCtx(ctx, a.cfg.PollInterval) {
				return
			}
			continue
		}

		order, err := a.fetch(ctx)
		if err != nil || order == nil {
			<-a.slots
			switch {
			case err == nil || ctx.Err() != nil:
			case unknownNode(err):
				a.reregister(ctx, err)
			default:
				a.logger.Warn("poll failed", "error", err)
			}
			if !sleepCtx(ctx, a.cfg.PollInterval) {
				return
			}
			continue
		}

		if ctx.Err() != nil {
			<-a.slots
			a.abandoned.Add(1)
			a.logger.Warn("work order received during shutdown, left for reclaim",
				"trackingId", order.TrackingID,
				"fragmentId", order.FragmentID)
			return
		}

		a.wg.Add(1)
		go func(order cluster.WorkOrder) {
			defer a.wg.Done()
			defer func() { <-a.slots }()
			a.execute(ctx, order)
		}(*order)
	}
}

func (a *Agent) fetch(ctx context.Context) (*cluster.WorkOrder, error) {
	fctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	return a.dispatcher.FetchNext(fctx, a.cfg.NodeID)
}

// execute runs one fragment end to end and reports the outcome. Once the
// delay has elapsed the chain and the report run to completion even if ctx
// is canceled meanwhile; only the pauses between hops are cut short.
func (a *Agent) execute(ctx context.Context, order cluster.WorkOrder) {
	log := a.logger.With("trackingId", order.TrackingID, "fragmentId", order.FragmentID)
	log.Info("fragment accepted",
		"amount", order.Amount,
		"delayMs", order.DelayMs,
		"hops", order.ShadowWalletCount,
		"noise", order.NoiseTxCount)

	if !sleepCtx(ctx, order.Delay()) {
		a.abandoned.Add(1)
		log.Warn("shutdown during fragment delay, left for reclaim")
		return
	}

	runCtx := context.WithoutCancel(ctx)
	report := cluster.ReportRequest{
		NodeID:     a.cfg.NodeID,
		TrackingID: order.TrackingID,
		FragmentID: order.FragmentID,
	}

	receipt, err := a.executeFragment(runCtx, ctx, order)
	if err != nil {
		a.failed.Add(1)
		report.Status = cluster.FragmentFailed
		report.Error = cluster.Some(err.Error())
		log.Warn("fragment failed", "error", err)
	} else {
		a.completed.Add(1)
		report.Status = cluster.FragmentCompleted
		if receipt.Signature != "" {
			report.Signature = cluster.Some(receipt.Signature)
		}
		log.Info("fragment executed", "signature", receipt.Signature)
	}

	rctx, cancel := context.WithTimeout(runCtx, a.cfg.RequestTimeout)
	defer cancel()
	summary, err := a.dispatcher.Report(rctx, report)
	if err != nil {
		a.reportFailures.Add(1)
		log.Error("report failed, fragment left for reclaim", "status", report.Status, "error", err)
		return
	}
	log.Info("fragment reported",
		"status", report.Status,
		"taskState", summary.State,
		"completed", summary.Completed,
		"pending", summary.Pending,
		"failed", summary.Failed)
}

// executeFragment runs the main chain while noise transfers go out
// alongside it. Only a main-chain error fails the fragment. Hop pauses end
// early once pauseCtx is done.
func (a *Agent) executeFragment(ctx, pauseCtx context.Context, order cluster.WorkOrder) (transfer.Receipt, error) {
	var noise errgroup.Group
	for i := 0; i < order.NoiseTxCount; i++ {
		noise.Go(func() error {
			a.sendNoise(ctx, order, i)
			return nil
		})
	}

	receipt, err := a.mainChain(ctx, pauseCtx, order)
	_ = noise.Wait()
	return receipt, err
}

// mainChain moves the full amount through ShadowWalletCount fresh
// credentials in order, then to the recipient. Each hop's source is the
// previous hop's destination, so hops never overlap.
func (a *Agent) mainChain(ctx, pauseCtx context.Context, order cluster.WorkOrder) (transfer.Receipt, error) {
	if order.Amount <= 0 {
		return transfer.Receipt{}, nil
	}

	shadows := make([]transfer.Credential, order.ShadowWalletCount)
	for i := range shadows {
		cred, err := a.executor.GenerateEphemeralCredential()
		if err != nil {
			return transfer.Receipt{}, fmt.Errorf("shadow wallet %d: %w", i+1, err)
		}
		shadows[i] = cred
	}

	from := a.cfg.Source
	for i, shadow := range shadows {
		if _, err := a.executor.Transfer(ctx, from, shadow.Address, order.Amount); err != nil {
			return transfer.Receipt{}, fmt.Errorf("hop %d/%d: %w", i+1, len(shadows), err)
		}
		from = shadow
		if a.cfg.HopPause > 0 {
			sleepCtx(pauseCtx, a.cfg.HopPause)
		}
	}

	receipt, err := a.executor.Transfer(ctx, from, order.Recipient, order.Amount)
	if err != nil {
		return transfer.Receipt{}, fmt.Errorf("final transfer: %w", err)
	}
	return receipt, nil
}

func (a *Agent) sendNoise(ctx context.Context, order cluster.WorkOrder, n int) {
	log := a.logger.With("trackingId", order.TrackingID, "fragmentId", order.FragmentID, "noise", n+1)

	dest, err := a.executor.GenerateEphemeralCredential()
	if err != nil {
		a.noiseFailures.Add(1)
		log.Warn("noise address generation failed", "error", err)
		return
	}
	amount := a.noiseAmount()
	if _, err := a.executor.Transfer(transfer.WithNoise(ctx), a.cfg.Source, dest.Address, amount); err != nil {
		a.noiseFailures.Add(1)
		log.Warn("noise transfer failed", "error", err)
		return
	}
	log.Debug("noise transfer sent", "amount", amount)
}

func (a *Agent) noiseAmount() int64 {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return minNoiseAmount + a.rng.Int64N(maxNoiseAmount-minNoiseAmount+1)
}

// sleepCtx waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
