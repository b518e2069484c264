package throughput

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dreamware/xvoid/internal/cluster"
)

// DefaultTTL is how long a measurement is reused.
const DefaultTTL = 60 * time.Second

type sample struct {
	at    time.Time
	value cluster.Optional[float64]
}

// Monitor caches a Source's measurement for a TTL. Concurrent misses share
// one fetch. Fetch errors are logged and yield an absent hint; they are not
// cached, so the next call tries again.
type Monitor struct {
	source Source
	logger *slog.Logger
	now    func() time.Time
	last   *sample
	group  singleflight.Group
	ttl    time.Duration
	mu     sync.Mutex
}

// NewMonitor wraps source. A nil source makes Hint always absent.
func NewMonitor(source Source, ttl time.Duration) *Monitor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Monitor{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default().With("component", "throughput"),
	}
}

// Hint returns the cached throughput, refreshing it when older than the TTL.
func (m *Monitor) Hint(ctx context.Context) cluster.Optional[float64] {
	if m == nil || m.source == nil {
		return cluster.None[float64]()
	}

	m.mu.Lock()
	if m.last != nil && m.now().Sub(m.last.at) < m.ttl {
		v := m.last.value
		m.mu.Unlock()
		return v
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("tps", func() (any, error) {
		value, err := m.source.TPS(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.last = &sample{at: m.now(), value: value}
		m.mu.Unlock()
		return value, nil
	})
	if err != nil {
		m.logger.Warn("failed to load throughput hint", "error", err)
		return cluster.None[float64]()
	}

	value := v.(cluster.Optional[float64])
	if tps, ok := value.Get(); ok {
		m.logger.Debug("throughput hint refreshed", "tps", tps)
	}
	return value
}
