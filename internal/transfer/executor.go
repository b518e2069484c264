// Package transfer defines the capability worker nodes use to move funds
// and ships a simulated implementation for development and tests.
//
// The coordination core treats an Executor as opaque: it never knows which
// ledger backs it. A real implementation signs and submits ledger
// transactions; Simulated fabricates receipts.
package transfer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransfer is returned for a transfer with a missing source,
	// missing destination or non-positive amount.
	ErrInvalidTransfer = errors.New("invalid transfer")
	// ErrSimulatedFailure is the cause injected by Simulated's failure rate.
	ErrSimulatedFailure = errors.New("simulated transfer failure")
)

// Credential is a key pair able to sign transfers out of Address.
type Credential struct {
	Address    string
	PrivateKey ed25519.PrivateKey
}

// Receipt is the proof of a completed transfer.
type Receipt struct {
	At        time.Time
	Signature string
	From      string
	To        string
	Amount    int64
}

// Executor moves funds. Transfer blocks until the transfer is confirmed or
// fails; it must honor ctx cancellation.
type Executor interface {
	Transfer(ctx context.Context, source Credential, destination string, amount int64) (Receipt, error)
	GenerateEphemeralCredential() (Credential, error)
}

// Error wraps a failed transfer with its parameters.
type Error struct {
	Err         error
	From        string
	Destination string
	Amount      int64
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer %d from %s to %s: %v", e.Amount, e.From, e.Destination, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type noiseKey struct{}

// WithNoise marks ctx as carrying a decoy transfer. Executors may use it
// to label or size the transfer differently.
func WithNoise(ctx context.Context) context.Context {
	return context.WithValue(ctx, noiseKey{}, true)
}

// IsNoise reports whether ctx was marked with WithNoise.
func IsNoise(ctx context.Context) bool {
	v, _ := ctx.Value(noiseKey{}).(bool)
	return v
}

func validate(source Credential, destination string, amount int64) error {
	switch {
	case source.Address == "":
		return fmt.Errorf("%w: missing source", ErrInvalidTransfer)
	case destination == "":
		return fmt.Errorf("%w: missing destination", ErrInvalidTransfer)
	case amount <= 0:
		return fmt.Errorf("%w: amount %d", ErrInvalidTransfer, amount)
	}
	return nil
}
