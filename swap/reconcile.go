package swap

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// exactThresholdPercent is the band around zero, in percent of the
// requested amount, inside which a payment counts as exact. The boundary is
// inclusive on the outside: a difference of exactly +0.1% is an overpay and
// exactly -0.1% is an underpay.
const exactThresholdPercent = 0.1

// Verdict classifies a settled payment against the requested amount.
type Verdict uint8

const (
	// VerdictExact means the received amount matches the request to
	// within the threshold.
	VerdictExact Verdict = iota

	// VerdictOverpay means the payer sent at least 0.1% too much.
	VerdictOverpay

	// VerdictUnderpay means the payer sent at least 0.1% too little.
	VerdictUnderpay
)

// String returns a human readable identifier for the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictExact:
		return "exact"
	case VerdictOverpay:
		return "overpay"
	case VerdictUnderpay:
		return "underpay"
	default:
		return "unknown"
	}
}

// Comparison is the derived outcome of reconciling a settled payment. It is
// computed on demand and never stored.
type Comparison struct {
	// Requested is the satoshi amount the invoice asked for.
	Requested btcutil.Amount

	// Received is the satoshi amount that actually arrived.
	Received btcutil.Amount

	// Diff is Received minus Requested.
	Diff btcutil.Amount

	// DiffPercent is Diff as a percentage of Requested, zero when
	// nothing was requested.
	DiffPercent float64

	// Verdict is the classification of the difference.
	Verdict Verdict
}

// Compare reconciles the satoshi amount requested against the amount
// received.
func Compare(requested, received btcutil.Amount) Comparison {
	diff := received - requested

	var diffPercent float64
	if requested > 0 {
		diffPercent = float64(diff) / float64(requested) * 100
	}

	verdict := VerdictExact
	switch {
	case diffPercent >= exactThresholdPercent:
		verdict = VerdictOverpay

	case diffPercent <= -exactThresholdPercent:
		verdict = VerdictUnderpay
	}

	return Comparison{
		Requested:   requested,
		Received:    received,
		Diff:        diff,
		DiffPercent: diffPercent,
		Verdict:     verdict,
	}
}

// Difference is the display form of a comparison.
type Difference struct {
	// Message describes the satoshi difference.
	Message string

	// FiatMessage optionally states the fiat equivalent of the
	// difference. Empty for exact payments or when no usable exchange
	// rate was supplied.
	FiatMessage string
}

// FormatDifference renders a comparison for display. Exact payments get a
// fixed neutral message and never a fiat line. Over- and underpayments
// state the absolute satoshi delta and the signed percentage to two
// decimals, plus a fiat equivalent line when a positive exchange rate is
// supplied; a zero, negative or absent rate omits the fiat line entirely.
func FormatDifference(c Comparison, currency string,
	exchangeRate float64) Difference {

	if c.Verdict == VerdictExact {
		return Difference{
			Message: "Payment amount matches the requested " +
				"amount.",
		}
	}

	absDiff := c.Diff
	if absDiff < 0 {
		absDiff = -absDiff
	}

	var direction string
	switch c.Verdict {
	case VerdictOverpay:
		direction = "Overpaid"
	case VerdictUnderpay:
		direction = "Underpaid"
	}

	diff := Difference{
		Message: fmt.Sprintf("%s by %d sats (%+.2f%%).", direction,
			int64(absDiff), c.DiffPercent),
	}

	if exchangeRate > 0 {
		fiatDiff := absDiff.ToBTC() * exchangeRate
		diff.FiatMessage = fmt.Sprintf("%s %.2f", currency, fiatDiff)
	}

	return diff
}
