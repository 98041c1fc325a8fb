package swap

import (
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// RateLock is the one-shot countdown attached to a quoted invoice: for its
// duration the quoted fiat to satoshi rate is honored, and the moment it
// runs out the owning session replaces the invoice with a freshly priced
// one. The lock is a small finite-state object, created then expired, with
// an expiry callback that fires at most once and never after Stop. All
// time flows through an injected clock so the lock can be driven by real
// or simulated time.
type RateLock struct {
	clock    clock.Clock
	duration time.Duration
	onExpiry func()

	mtx      sync.Mutex
	started  bool
	stopped  bool
	fired    bool
	deadline time.Time

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewRateLock creates a lock counting down the passed duration. The expiry
// callback runs on the lock's own goroutine.
func NewRateLock(c clock.Clock, duration time.Duration,
	onExpiry func()) *RateLock {

	return &RateLock{
		clock:    c,
		duration: duration,
		onExpiry: onExpiry,
		quit:     make(chan struct{}),
	}
}

// Start begins the countdown. Calling Start more than once is a no-op.
func (r *RateLock) Start() {
	r.mtx.Lock()
	if r.started || r.stopped {
		r.mtx.Unlock()
		return
	}
	r.started = true
	r.deadline = r.clock.Now().Add(r.duration)
	r.mtx.Unlock()

	// Register with the clock before returning so the countdown is
	// armed the moment Start returns, even if time advances immediately
	// afterwards.
	tick := r.clock.TickAfter(r.duration)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case <-tick:
			r.expire()

		case <-r.quit:
		}
	}()
}

// Stop retires the lock. After Stop returns, the expiry callback is
// guaranteed to never fire.
func (r *RateLock) Stop() {
	r.mtx.Lock()
	if r.stopped {
		r.mtx.Unlock()
		return
	}
	r.stopped = true
	r.mtx.Unlock()

	close(r.quit)
	r.wg.Wait()
}

// Tick re-evaluates the countdown against the clock, firing the expiry
// callback if the deadline has passed. Ticking is optional (the lock also
// watches the clock itself) and ticking after expiry is harmless: the
// callback still fires at most once.
func (r *RateLock) Tick() {
	r.mtx.Lock()
	pastDeadline := r.started && !r.clock.Now().Before(r.deadline)
	r.mtx.Unlock()

	if pastDeadline {
		r.expire()
	}
}

// Remaining reports how much of the countdown is left, for display. Before
// Start it reports the full duration, after expiry it reports zero.
func (r *RateLock) Remaining() time.Duration {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if !r.started {
		return r.duration
	}
	if r.fired {
		return 0
	}

	remaining := r.deadline.Sub(r.clock.Now())
	if remaining < 0 {
		return 0
	}

	return remaining
}

// Expired reports whether the lock has fired its expiry.
func (r *RateLock) Expired() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.fired
}

// expire performs the single created to expired transition.
func (r *RateLock) expire() {
	r.mtx.Lock()
	if r.stopped || r.fired {
		r.mtx.Unlock()
		return
	}
	r.fired = true
	r.mtx.Unlock()

	if r.onExpiry != nil {
		r.onExpiry()
	}
}

// FormatRemaining renders a countdown duration as M:SS for display.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int(d.Round(time.Second).Seconds())

	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}
