// Package swap drives the visible lifetime of a swap-backed invoice: it
// prices the invoice, creates the swap with the external provider, holds
// the rate lock countdown, transparently re-prices and replaces the swap
// when the lock expires, and reconciles the amounts once the swap settles.
package swap

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Status is the provider-reported state of a swap.
type Status uint8

const (
	// StatusCreated means the swap exists but no payment has been seen.
	StatusCreated Status = iota

	// StatusMempool means the payment transaction has been seen in the
	// mempool but not yet confirmed.
	StatusMempool

	// StatusConfirmed means the payment transaction has confirmed.
	StatusConfirmed

	// StatusSettled means the swap completed and the preimage was
	// revealed. This state is terminal.
	StatusSettled

	// StatusExpired means the swap timed out provider-side without a
	// payment. This state is terminal.
	StatusExpired
)

// String returns a human readable identifier for the status.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusMempool:
		return "mempool"
	case StatusConfirmed:
		return "confirmed"
	case StatusSettled:
		return "settled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal returns true for states no swap ever leaves.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusExpired
}

// statusFromString parses a provider status string.
func statusFromString(s string) (Status, error) {
	switch s {
	case "created":
		return StatusCreated, nil
	case "mempool", "seen-in-mempool":
		return StatusMempool, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "settled":
		return StatusSettled, nil
	case "expired":
		return StatusExpired, nil
	default:
		return 0, fmt.Errorf("unknown swap status %q", s)
	}
}

// Swap is the provider's answer to a swap creation request.
type Swap struct {
	// ID identifies the swap with the provider.
	ID string

	// Invoice is the payment request the payer settles.
	Invoice string

	// Address is the on-chain address funds arrive at.
	Address string

	// ExpectedAmount is the satoshi amount the provider expects.
	ExpectedAmount btcutil.Amount
}

// StatusUpdate is one status report for a swap.
type StatusUpdate struct {
	// Status is the provider-reported state.
	Status Status

	// Preimage is the revealed payment preimage, set only once the swap
	// settled.
	Preimage *lntypes.Preimage

	// AmountReceived is the satoshi amount that actually arrived, set
	// once known.
	AmountReceived btcutil.Amount
}

// Provider is the narrow contract of the external swap service. Its
// internals are entirely out of scope here; the lifecycle controller only
// creates swaps, polls them, and occasionally asks for a best-effort
// cancel.
type Provider interface {
	// CreateSwap requests a new swap paying the given satoshi amount to
	// the destination address.
	CreateSwap(ctx context.Context, amount btcutil.Amount, description,
		destination string) (*Swap, error)

	// GetStatus reports the current state of a swap.
	GetStatus(ctx context.Context, id string) (*StatusUpdate, error)

	// Cancel asks the provider to abandon a swap. Best effort: the
	// caller tolerates failure and simply lets the swap expire
	// provider-side.
	Cancel(ctx context.Context, id string) error
}
