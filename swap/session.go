package swap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/lightninglabs/paylink/backup"
	"github.com/lightninglabs/paylink/rates"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// DefaultLockDuration is how long a quoted exchange rate is honored
	// before the invoice is re-priced.
	DefaultLockDuration = 10 * time.Minute

	// DefaultStatusInterval is how often the provider is polled for
	// status while an invoice is live.
	DefaultStatusInterval = 5 * time.Second
)

// FiatToSats converts a fiat amount into satoshis at the passed rate,
// rounding to the nearest satoshi.
func FiatToSats(fiatAmount, rate float64) (btcutil.Amount, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("exchange rate %v is not positive", rate)
	}

	return btcutil.NewAmount(fiatAmount / rate)
}

// Quote is one priced invoice together with the pricing context it was
// minted under. A quote is never mutated: when its rate lock expires it is
// superseded by a fresh quote and abandoned.
type Quote struct {
	// SwapID identifies the underlying swap with the provider.
	SwapID string

	// Invoice is the payment request shown to the payer.
	Invoice string

	// Address is the on-chain destination of the swap.
	Address string

	// ExpectedAmount is the satoshi amount the invoice asks for.
	ExpectedAmount btcutil.Amount

	// FiatAmount is the fiat amount the invoice was priced from.
	FiatAmount float64

	// Currency is the fiat currency code.
	Currency string

	// ExchangeRate is the rate the quote was priced at, retained for
	// fiat-equivalent display.
	ExchangeRate float64

	// LockExpiresAt is when the quote's rate lock runs out.
	LockExpiresAt time.Time
}

// Settlement is the terminal outcome of a payment session.
type Settlement struct {
	// Quote is the invoice that got paid.
	Quote *Quote

	// Preimage is the revealed payment preimage, when the provider
	// reported one.
	Preimage *lntypes.Preimage

	// AmountReceived is the satoshi amount that actually arrived.
	AmountReceived btcutil.Amount

	// Comparison reconciles the received amount against the request.
	Comparison Comparison
}

// SessionConfig bundles the collaborators of a payment session.
type SessionConfig struct {
	// Provider creates and reports on swaps.
	Provider Provider

	// Rates prices invoices.
	Rates rates.Source

	// Uploader runs the recovery backup protocol.
	Uploader *backup.Uploader

	// MerchantID is the merchant the payment, and its backup, belong to.
	MerchantID string

	// SeedMaterial is the wallet seed backed up for recovery.
	SeedMaterial string

	// Destination is the address the merchant receives funds at.
	Destination string

	// LockDuration overrides DefaultLockDuration when non-zero.
	LockDuration time.Duration

	// StatusTicker drives provider polling. A default interval ticker is
	// used when unset.
	StatusTicker ticker.Ticker

	// Clock is the session's time source.
	Clock clock.Clock

	// OnQuote is invoked every time a new invoice becomes live: once at
	// start, and once per rate lock expiry. It is never invoked before
	// the invoice's recovery backup exists server-side.
	OnQuote func(*Quote)

	// OnSettled is invoked exactly once, when the swap settles.
	OnSettled func(*Settlement)
}

// activeQuote is the session's single live invoice: the quote, its rate
// lock, and the last status the provider reported for it.
type activeQuote struct {
	quote  *Quote
	lock   *RateLock
	status Status
}

// Session owns the visible lifetime of one payment: it mints quotes,
// replaces them when their rate lock expires, and settles at most once.
// The payer-observed payment session is continuous even though the
// underlying swap changes identity on every re-price. At any moment
// exactly one invoice is live; replacement is swap-then-publish, so a late
// status report for a retired invoice can never resurrect it.
type Session struct {
	cfg SessionConfig

	// id identifies the session in logs only; swaps have their own ids.
	id string

	fiatAmount  float64
	currency    string
	description string

	mtx           sync.Mutex
	current       *activeQuote
	backupSession *backup.Session
	record        *backup.Record
	settled       bool

	ctx    context.Context
	cancel context.CancelFunc

	started sync.Once
	stopped sync.Once
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewSession creates a payment session for the passed fiat amount. Nothing
// happens until Start is called.
func NewSession(cfg SessionConfig, fiatAmount float64, currency,
	description string) *Session {

	if cfg.LockDuration == 0 {
		cfg.LockDuration = DefaultLockDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.StatusTicker == nil {
		cfg.StatusTicker = ticker.New(DefaultStatusInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		cfg:         cfg,
		id:          uuid.New().String(),
		fiatAmount:  fiatAmount,
		currency:    currency,
		description: description,
		ctx:         ctx,
		cancel:      cancel,
		quit:        make(chan struct{}),
	}
}

// Start prices the first invoice, creates its swap, uploads its recovery
// backup, and only then publishes it and begins the countdown and status
// polling. If the backup cannot be stored the invoice is never published:
// the swap is best-effort canceled and the error returned.
func (s *Session) Start(ctx context.Context) error {
	var startErr error
	s.started.Do(func() {
		startErr = s.start(ctx)
	})

	return startErr
}

func (s *Session) start(ctx context.Context) error {
	quote, err := s.newQuote(ctx)
	if err != nil {
		return err
	}

	if err := s.uploadBackup(ctx, quote); err != nil {
		// Fail closed: no invoice may be shown for a swap without a
		// stored backup. The freshly minted swap is abandoned.
		s.cancelSwap(quote.SwapID)
		return err
	}

	s.publish(quote)

	s.cfg.StatusTicker.Resume()
	s.wg.Add(1)
	go s.pollLoop()

	return nil
}

// Stop winds the session down: the poll loop exits, the live rate lock is
// retired, and any in-flight provider call is canceled.
func (s *Session) Stop() {
	s.markDone()

	s.mtx.Lock()
	current := s.current
	s.mtx.Unlock()
	if current != nil {
		current.lock.Stop()
	}

	s.wg.Wait()
}

// markDone signals termination without waiting for the goroutines.
func (s *Session) markDone() {
	s.stopped.Do(func() {
		s.cancel()
		close(s.quit)
	})
}

// CurrentQuote returns the live invoice, or nil before Start.
func (s *Session) CurrentQuote() *Quote {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.current == nil {
		return nil
	}

	return s.current.quote
}

// LockRemaining reports how much of the live invoice's rate lock is left.
func (s *Session) LockRemaining() time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.current == nil {
		return 0
	}

	return s.current.lock.Remaining()
}

// newQuote fetches the current median rate, converts the session's fiat
// amount to satoshis, and creates a swap for that amount.
func (s *Session) newQuote(ctx context.Context) (*Quote, error) {
	rate, err := s.cfg.Rates.MedianRate(ctx, s.currency)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch exchange rate: %w",
			err)
	}

	amount, err := FiatToSats(s.fiatAmount, rate)
	if err != nil {
		return nil, err
	}

	newSwap, err := s.cfg.Provider.CreateSwap(
		ctx, amount, s.description, s.cfg.Destination,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create swap: %w", err)
	}

	expectedAmount := newSwap.ExpectedAmount
	if expectedAmount == 0 {
		expectedAmount = amount
	}

	log.Infof("Session %v: created swap %v for %v (%v %s at rate %v)",
		s.id, newSwap.ID, expectedAmount, s.fiatAmount, s.currency,
		rate)

	return &Quote{
		SwapID:         newSwap.ID,
		Invoice:        newSwap.Invoice,
		Address:        newSwap.Address,
		ExpectedAmount: expectedAmount,
		FiatAmount:     s.fiatAmount,
		Currency:       s.currency,
		ExchangeRate:   rate,
		LockExpiresAt:  s.cfg.Clock.Now().Add(s.cfg.LockDuration),
	}, nil
}

// uploadBackup creates and uploads the recovery record for a quote. The
// first upload establishes the backup session; replacements re-run the full
// protocol for their new swap.
func (s *Session) uploadBackup(ctx context.Context, quote *Quote) error {
	rec := backup.NewRecord(
		quote.SwapID, s.cfg.SeedMaterial, quote.Invoice,
		quote.ExpectedAmount, s.cfg.Clock.Now(),
		&backup.RecordMetadata{
			FiatAmount:  s.fiatAmount,
			Currency:    s.currency,
			Description: s.description,
		},
	)

	backupSession, err := s.cfg.Uploader.Upload(
		ctx, s.cfg.MerchantID, rec,
	)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	s.record = rec
	s.backupSession = backupSession
	s.mtx.Unlock()

	return nil
}

// publish atomically makes the passed quote the session's single live
// invoice and starts its rate lock. The swap behind the quote, and its
// backup, must already exist.
func (s *Session) publish(quote *Quote) {
	lock := NewRateLock(
		s.cfg.Clock, s.cfg.LockDuration, func() {
			s.handleExpiry(quote.SwapID)
		},
	)

	s.mtx.Lock()
	s.current = &activeQuote{
		quote:  quote,
		lock:   lock,
		status: StatusCreated,
	}
	s.mtx.Unlock()

	lock.Start()

	if s.cfg.OnQuote != nil {
		s.cfg.OnQuote(quote)
	}
}

// handleExpiry reacts to the rate lock of the passed swap running out: if
// that swap is still the live one and no payment has been observed for it,
// a freshly priced replacement is minted, backed up, and published, and the
// expired swap is best-effort canceled.
func (s *Session) handleExpiry(expiredID string) {
	s.mtx.Lock()
	current := s.current
	switch {
	// Late expiry for an invoice that is no longer live.
	case s.settled || current == nil ||
		current.quote.SwapID != expiredID:

		s.mtx.Unlock()
		return

	// A payment is already in flight for this invoice. Replacing it now
	// would invalidate the payer's transaction, so the swap is left to
	// run its course at the locked rate. A provider-expired swap is not
	// in flight: it is dead and must be replaced like any other expiry.
	case current.status != StatusCreated &&
		current.status != StatusExpired:
		s.mtx.Unlock()
		log.Infof("Session %v: rate lock expired for swap %v but "+
			"payment is in flight (%v), keeping invoice", s.id,
			expiredID, current.status)
		return
	}
	s.mtx.Unlock()

	log.Infof("Session %v: rate lock expired for swap %v, re-pricing",
		s.id, expiredID)

	quote, err := s.newQuote(s.ctx)
	if err != nil {
		log.Errorf("Session %v: unable to re-price after rate lock "+
			"expiry: %v", s.id, err)
		return
	}

	if err := s.uploadBackup(s.ctx, quote); err != nil {
		log.Errorf("Session %v: unable to back up replacement swap "+
			"%v: %v", s.id, quote.SwapID, err)
		s.cancelSwap(quote.SwapID)
		return
	}

	// The session may have settled while the replacement was being
	// minted; in that case the fresh swap is surplus and dropped.
	s.mtx.Lock()
	if s.settled {
		s.mtx.Unlock()
		s.cancelSwap(quote.SwapID)
		return
	}
	s.mtx.Unlock()

	s.publish(quote)

	// The abandoned swap is canceled on a best effort basis; if the
	// provider refuses, it simply expires on their side.
	s.cancelSwap(expiredID)
}

// cancelSwap best-effort cancels a swap with the provider.
func (s *Session) cancelSwap(swapID string) {
	if err := s.cfg.Provider.Cancel(s.ctx, swapID); err != nil {
		log.Warnf("Session %v: unable to cancel swap %v: %v", s.id,
			swapID, err)
	}
}

// pollLoop polls the provider for the live swap's status until the session
// ends.
func (s *Session) pollLoop() {
	defer s.wg.Done()
	defer s.cfg.StatusTicker.Stop()

	for {
		select {
		case <-s.cfg.StatusTicker.Ticks():
			s.pollOnce()

		case <-s.quit:
			return
		}
	}
}

// pollOnce fetches one status report for the live swap and dispatches it.
func (s *Session) pollOnce() {
	s.mtx.Lock()
	if s.settled || s.current == nil {
		s.mtx.Unlock()
		return
	}
	swapID := s.current.quote.SwapID
	s.mtx.Unlock()

	update, err := s.cfg.Provider.GetStatus(s.ctx, swapID)
	if err != nil {
		log.Warnf("Session %v: unable to poll swap %v: %v", s.id,
			swapID, err)
		return
	}

	s.handleStatus(swapID, update)
}

// handleStatus applies one provider status report. Reports for swaps that
// are no longer live are discarded: the invoice they belong to was retired
// by a re-price and must not come back to life.
func (s *Session) handleStatus(swapID string, update *StatusUpdate) {
	s.mtx.Lock()
	current := s.current
	if s.settled || current == nil || current.quote.SwapID != swapID {
		s.mtx.Unlock()
		log.Debugf("Session %v: discarding status %v for retired "+
			"swap %v", s.id, update.Status, swapID)
		return
	}

	current.status = update.Status

	switch update.Status {
	case StatusSettled:
		s.settled = true
		s.mtx.Unlock()
		s.settle(current, update)

	case StatusExpired:
		s.mtx.Unlock()
		log.Infof("Session %v: swap %v expired provider-side", s.id,
			swapID)

		// The swap is dead, so its rate lock no longer has anything
		// to defend. Retire it before minting the replacement.
		current.lock.Stop()
		s.handleExpiry(swapID)

	default:
		s.mtx.Unlock()
		log.Tracef("Session %v: swap %v status %v", s.id, swapID,
			update.Status)
	}
}

// settle finalizes the session after the provider reported settlement: the
// countdown stops, the recovery backup is updated to claimed, and the
// received amount is reconciled against the request.
func (s *Session) settle(current *activeQuote, update *StatusUpdate) {
	// The payment is done; the rate no longer needs defending.
	current.lock.Stop()

	received := update.AmountReceived
	if received == 0 {
		received = current.quote.ExpectedAmount
	}

	// Update the stored backup with the revealed preimage. The payment
	// already succeeded, so a failure here only degrades recoverability
	// and is deliberately not surfaced to the payer.
	s.mtx.Lock()
	rec, backupSession := s.record, s.backupSession
	s.mtx.Unlock()
	if rec != nil && backupSession != nil {
		if update.Preimage != nil {
			rec.SetSettled(*update.Preimage, received)
		}

		result := s.cfg.Uploader.MarkSettled(s.ctx, backupSession, rec)
		result.WhenErr(func(err error) {
			log.Warnf("Session %v: backup update after "+
				"settlement failed for swap %v: %v", s.id,
				current.quote.SwapID, err)
		})
	}

	comparison := Compare(current.quote.ExpectedAmount, received)
	log.Infof("Session %v: swap %v settled: %v", s.id,
		current.quote.SwapID, newLogClosure(func() string {
			return spew.Sdump(comparison)
		}))

	if s.cfg.OnSettled != nil {
		s.cfg.OnSettled(&Settlement{
			Quote:          current.quote,
			Preimage:       update.Preimage,
			AmountReceived: received,
			Comparison:     comparison,
		})
	}

	s.markDone()
}
