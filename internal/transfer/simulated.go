package transfer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Simulated is an Executor that never touches a ledger. Credentials are
// real ed25519 key pairs; receipts carry "SIM-" signatures ("SIM-NOISE-"
// for decoys). A failure rate and a throughput limit make it behave like a
// flaky, rate-limited network.
type Simulated struct {
	limiter     *rate.Limiter
	logger      *slog.Logger
	rng         *mrand.Rand
	failureRate float64
	transfers   atomic.Int64
	failures    atomic.Int64
	mu          sync.Mutex // guards rng
}

// SimulatedOption configures a Simulated executor.
type SimulatedOption func(*Simulated)

// WithFailureRate makes each transfer fail with probability p in [0, 1].
func WithFailureRate(p float64) SimulatedOption {
	return func(s *Simulated) { s.failureRate = min(max(p, 0), 1) }
}

// WithTPS caps the executor at tps transfers per second. Zero or less
// disables pacing.
func WithTPS(tps float64) SimulatedOption {
	return func(s *Simulated) {
		if tps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(tps), max(1, int(tps)))
	}
}

// WithSimulatedRand sets the random source used for failure draws.
func WithSimulatedRand(r *mrand.Rand) SimulatedOption {
	return func(s *Simulated) { s.rng = r }
}

// NewSimulated returns a simulated executor with no failures and no pacing
// unless configured.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		logger: slog.Default().With("component", "sim-executor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))
	}
	return s
}

// Transfer fabricates a receipt after waiting for the rate limiter.
func (s *Simulated) Transfer(ctx context.Context, source Credential, destination string, amount int64) (Receipt, error) {
	if err := validate(source, destination, amount); err != nil {
		return Receipt{}, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Receipt{}, &Error{Err: err, From: source.Address, Destination: destination, Amount: amount}
		}
	} else if err := ctx.Err(); err != nil {
		return Receipt{}, &Error{Err: err, From: source.Address, Destination: destination, Amount: amount}
	}

	if s.fail() {
		s.failures.Add(1)
		return Receipt{}, &Error{Err: ErrSimulatedFailure, From: source.Address, Destination: destination, Amount: amount}
	}

	prefix := "SIM"
	if IsNoise(ctx) {
		prefix = "SIM-NOISE"
	}
	now := time.Now()
	receipt := Receipt{
		Signature: fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		From:      source.Address,
		To:        destination,
		Amount:    amount,
		At:        now,
	}
	s.transfers.Add(1)
	s.logger.Debug("simulated transfer",
		"to", destination,
		"amount", amount,
		"signature", receipt.Signature,
		"noise", IsNoise(ctx))
	return receipt, nil
}

// GenerateEphemeralCredential creates a fresh ed25519 key pair whose
// address is the hex-encoded public key.
func (s *Simulated) GenerateEphemeralCredential() (Credential, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Credential{}, fmt.Errorf("generate credential: %w", err)
	}
	return Credential{Address: hex.EncodeToString(pub), PrivateKey: priv}, nil
}

// Transfers returns the number of successful transfers.
func (s *Simulated) Transfers() int64 { return s.transfers.Load() }

// Failures returns the number of injected failures.
func (s *Simulated) Failures() int64 { return s.failures.Load() }

func (s *Simulated) fail() bool {
	if s.failureRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failureRate
}
