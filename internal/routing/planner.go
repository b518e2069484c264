// Package routing turns one transfer request into a plan of fragments with
// randomized size, timing and obfuscation parameters.
//
// The planner is side-effect free: it reads a snapshot of the node roster
// and returns fragment specs. Enqueueing them is the coordinator's job.
package routing

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/xvoid/internal/cluster"
)

var (
	// ErrInvalidAmount is returned for a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrUnknownTier is returned for a tier with no profile.
	ErrUnknownTier = errors.New("unknown privacy tier")
	// ErrNoNodes is returned when the roster is empty.
	ErrNoNodes = errors.New("no available nodes")
)

const (
	// weights are drawn in thousandths from [0.2, 1.0]
	minWeight = 200
	maxWeight = 1000

	minScaledDelayMs = 250
)

// Thresholds decide how a throughput hint scales fragment delays. Above
// HighTPS delays shrink by 20%, below LowTPS they grow by 20%.
type Thresholds struct {
	HighTPS float64 `yaml:"high_tps" json:"highTps"`
	LowTPS  float64 `yaml:"low_tps" json:"lowTps"`
}

// DefaultThresholds returns the stock throughput thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{HighTPS: 2000, LowTPS: 1500}
}

// Planner builds fragment plans. It is safe for concurrent use.
type Planner struct {
	profiles   Profiles
	thresholds Thresholds
	mu         sync.Mutex // guards rng
	rng        *rand.Rand
}

// Option configures a Planner.
type Option func(*Planner)

// WithProfiles replaces the tier table.
func WithProfiles(p Profiles) Option {
	return func(pl *Planner) { pl.profiles = p }
}

// WithThresholds replaces the throughput thresholds.
func WithThresholds(t Thresholds) Option {
	return func(pl *Planner) { pl.thresholds = t }
}

// WithRand sets the random source, mainly so tests can seed it.
func WithRand(r *rand.Rand) Option {
	return func(pl *Planner) { pl.rng = r }
}

// NewPlanner returns a planner using the default profiles and thresholds
// unless overridden.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		profiles:   DefaultProfiles(),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return p
}

// Profile returns the profile for tier.
func (p *Planner) Profile(tier cluster.PrivacyTier) (Profile, bool) {
	prof, ok := p.profiles[tier]
	return prof, ok
}

// Plan splits amount into the tier's fragment count and assigns each
// fragment a delay, hop count, noise count and preferred node. Fragment ids
// are "<trackingID>-<n>", 1-based.
//
// The amounts always sum to amount exactly. Node preference spreads
// fragments over the roster ordered by headroom (capacity - load),
// descending, ties broken by node id. The roster is not modified.
func (p *Planner) Plan(trackingID string, amount int64, tier cluster.PrivacyTier, roster []cluster.NodeRecord, hint cluster.Optional[float64]) ([]cluster.FragmentSpec, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	profile, ok := p.profiles[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	if len(roster) == 0 {
		return nil, ErrNoNodes
	}

	ranked := rankNodes(roster)

	p.mu.Lock()
	defer p.mu.Unlock()

	amounts := splitAmount(p.rng, amount, profile.Fragments)
	specs := make([]cluster.FragmentSpec, profile.Fragments)
	for i := range specs {
		specs[i] = cluster.FragmentSpec{
			FragmentID:        fmt.Sprintf("%s-%d", trackingID, i+1),
			Amount:            amounts[i],
			DelayMs:           p.scaleDelay(randRange(p.rng, profile.DelayMs), hint),
			ShadowWalletCount: int(randRange(p.rng, profile.ShadowWallets)),
			NoiseTxCount:      int(randRange(p.rng, profile.NoiseTxs)),
			AssignedNodeID:    cluster.Some(ranked[i%len(ranked)].NodeID),
		}
	}
	return specs, nil
}

func (p *Planner) scaleDelay(delay int64, hint cluster.Optional[float64]) int64 {
	tps, ok := hint.Get()
	if !ok || tps <= 0 {
		return delay
	}
	switch {
	case tps > p.thresholds.HighTPS:
		return max(minScaledDelayMs, delay*8/10)
	case tps < p.thresholds.LowTPS:
		return delay * 12 / 10
	}
	return delay
}

// rankNodes returns a copy of roster sorted by headroom, descending.
func rankNodes(roster []cluster.NodeRecord) []cluster.NodeRecord {
	ranked := slices.Clone(roster)
	slices.SortStableFunc(ranked, func(a, b cluster.NodeRecord) int {
		if d := b.Headroom() - a.Headroom(); d != 0 {
			return d
		}
		return strings.Compare(a.NodeID, b.NodeID)
	})
	return ranked
}

// splitAmount divides total into n parts proportional to random weights.
// Every part but the last is floor(total*w/sum) computed with a 128-bit
// product; the last takes the remainder.
func splitAmount(rng *rand.Rand, total int64, n int) []int64 {
	if n == 1 {
		return []int64{total}
	}

	weights := make([]uint64, n)
	var sum uint64
	for i := range weights {
		weights[i] = uint64(minWeight + rng.IntN(maxWeight-minWeight+1))
		sum += weights[i]
	}

	parts := make([]int64, n)
	var allocated int64
	for i := 0; i < n-1; i++ {
		hi, lo := bits.Mul64(uint64(total), weights[i])
		q, _ := bits.Div64(hi, lo, sum)
		parts[i] = int64(q)
		allocated += parts[i]
	}
	parts[n-1] = total - allocated

	if parts[n-1] < 0 {
		absorbDeficit(parts)
	}
	return parts
}

// absorbDeficit clamps a negative last part to zero and takes the deficit
// from the largest earlier parts so the sum is unchanged.
func absorbDeficit(parts []int64) {
	last := len(parts) - 1
	deficit := -parts[last]
	parts[last] = 0
	for deficit > 0 {
		largest := 0
		for i := 1; i < last; i++ {
			if parts[i] > parts[largest] {
				largest = i
			}
		}
		take := min(deficit, parts[largest])
		if take == 0 {
			return
		}
		parts[largest] -= take
		deficit -= take
	}
}

func randRange(rng *rand.Rand, r Range) int64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Int64N(r.Max-r.Min+1)
}
