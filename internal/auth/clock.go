package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts wall time and tickers so expiry polling can be driven in tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker the token clock needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// DefaultPollInterval is how often the token clock checks expiry.
const DefaultPollInterval = time.Second

type tokenState int

const (
	tokenAbsent tokenState = iota
	tokenValid
	tokenExpired
)

// TokenClock polls the token store and reports expiry once.
// At most one polling goroutine is active per TokenClock.
type TokenClock struct {
	store    *TokenStore
	clock    Clock
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	ticker Ticker
}

// NewTokenClock returns a stopped clock polling store every interval.
func NewTokenClock(store *TokenStore, clock Clock, interval time.Duration, logger *zap.Logger) *TokenClock {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenClock{store: store, clock: clock, interval: interval, logger: logger}
}

// Start begins polling, stopping any previous run first. onExpired is called
// at most once per Start, from the polling goroutine, after the clock has
// already stopped itself.
func (tc *TokenClock) Start(onExpired func()) {
	tc.StartWatching(onExpired, nil)
}

// StartWatching is Start with a second callback for a token that disappears
// from the store without this process clearing it. At most one of the two
// callbacks runs per start.
func (tc *TokenClock) StartWatching(onExpired, onAbsent func()) {
	tc.mu.Lock()
	tc.stopLocked()
	tc.gen++
	gen := tc.gen
	ctx, cancel := context.WithCancel(context.Background())
	ticker := tc.clock.NewTicker(tc.interval)
	tc.cancel = cancel
	tc.ticker = ticker
	tc.mu.Unlock()

	tc.logger.Debug("token clock started", zap.Duration("interval", tc.interval))
	go tc.run(ctx, gen, ticker, onExpired, onAbsent)
}

// Stop cancels polling. It is idempotent and never blocks on the polling goroutine.
func (tc *TokenClock) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.stopLocked()
}

// Running reports whether a polling goroutine is active.
func (tc *TokenClock) Running() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.cancel != nil
}

func (tc *TokenClock) stopLocked() {
	if tc.cancel == nil {
		return
	}
	tc.cancel()
	tc.ticker.Stop()
	tc.cancel = nil
	tc.ticker = nil
	tc.logger.Debug("token clock stopped")
}

// stopIf stops the clock only if run gen is still the active one.
func (tc *TokenClock) stopIf(gen uint64) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.gen != gen || tc.cancel == nil {
		return false
	}
	tc.stopLocked()
	return true
}

func (tc *TokenClock) active(gen uint64) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.gen == gen && tc.cancel != nil
}

func (tc *TokenClock) run(ctx context.Context, gen uint64, ticker Ticker, onExpired, onAbsent func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !tc.active(gen) {
				return
			}
			switch tc.check(ctx) {
			case tokenAbsent:
				if tc.stopIf(gen) && onAbsent != nil {
					onAbsent()
				}
				return
			case tokenExpired:
				if tc.stopIf(gen) && onExpired != nil {
					onExpired()
				}
				return
			}
		}
	}
}

func (tc *TokenClock) check(ctx context.Context) tokenState {
	return evaluate(ctx, tc.store, tc.clock.Now())
}

// evaluate classifies the stored token at now. A token whose expiry is
// missing or unreadable counts as expired.
func evaluate(ctx context.Context, store *TokenStore, now time.Time) tokenState {
	if store.Read(ctx) == "" {
		return tokenAbsent
	}
	expiry, ok := store.ReadExpiry(ctx)
	if !ok || now.After(expiry) {
		return tokenExpired
	}
	return tokenValid
}
