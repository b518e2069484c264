package transfer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEphemeralCredential(t *testing.T) {
	sim := NewSimulated()

	a, err := sim.GenerateEphemeralCredential()
	require.NoError(t, err)
	b, err := sim.GenerateEphemeralCredential()
	require.NoError(t, err)

	assert.NotEqual(t, a.Address, b.Address)
	pub, err := hex.DecodeString(a.Address)
	require.NoError(t, err)
	assert.Len(t, pub, ed25519.PublicKeySize)
	assert.Equal(t, ed25519.PublicKey(pub), a.PrivateKey.Public())
}

func TestSimulatedTransfer(t *testing.T) {
	sim := NewSimulated()
	src, err := sim.GenerateEphemeralCredential()
	require.NoError(t, err)

	receipt, err := sim.Transfer(context.Background(), src, "dest", 500)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.Signature, "SIM-"))
	assert.False(t, strings.HasPrefix(receipt.Signature, "SIM-NOISE-"))
	assert.Equal(t, src.Address, receipt.From)
	assert.Equal(t, "dest", receipt.To)
	assert.Equal(t, int64(500), receipt.Amount)

	noise, err := sim.Transfer(WithNoise(context.Background()), src, "decoy", 100)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(noise.Signature, "SIM-NOISE-"))
	assert.NotEqual(t, receipt.Signature, noise.Signature)

	assert.Equal(t, int64(2), sim.Transfers())
}

func TestSimulatedTransferValidation(t *testing.T) {
	sim := NewSimulated()
	src := Credential{Address: "src"}

	tests := []struct {
		name   string
		source Credential
		dest   string
		amount int64
	}{
		{"missing source", Credential{}, "dest", 1},
		{"missing destination", src, "", 1},
		{"zero amount", src, "dest", 0},
		{"negative amount", src, "dest", -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Transfer(context.Background(), tt.source, tt.dest, tt.amount)
			assert.ErrorIs(t, err, ErrInvalidTransfer)
		})
	}
}

func TestSimulatedFailureRate(t *testing.T) {
	src := Credential{Address: "src"}

	always := NewSimulated(WithFailureRate(1))
	_, err := always.Transfer(context.Background(), src, "dest", 1)
	assert.ErrorIs(t, err, ErrSimulatedFailure)
	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "dest", terr.Destination)
	assert.Equal(t, int64(1), always.Failures())

	half := NewSimulated(WithFailureRate(0.5), WithSimulatedRand(rand.New(rand.NewPCG(1, 2))))
	fails := 0
	for i := 0; i < 1000; i++ {
		if _, err := half.Transfer(context.Background(), src, "dest", 1); err != nil {
			fails++
		}
	}
	assert.InDelta(t, 500, fails, 100)

	// out-of-range rates are clamped
	assert.Equal(t, 1.0, NewSimulated(WithFailureRate(3)).failureRate)
	assert.Equal(t, 0.0, NewSimulated(WithFailureRate(-1)).failureRate)
}

func TestSimulatedPacing(t *testing.T) {
	sim := NewSimulated(WithTPS(20))
	src := Credential{Address: "src"}

	start := time.Now()
	for i := 0; i < 30; i++ {
		_, err := sim.Transfer(context.Background(), src, "dest", 1)
		require.NoError(t, err)
	}
	// burst of 20, then 10 more at 20/s
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestSimulatedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, sim := range []*Simulated{NewSimulated(), NewSimulated(WithTPS(1))} {
		_, err := sim.Transfer(ctx, Credential{Address: "src"}, "dest", 1)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestIsNoise(t *testing.T) {
	assert.False(t, IsNoise(context.Background()))
	assert.True(t, IsNoise(WithNoise(context.Background())))
}
