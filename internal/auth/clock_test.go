package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/persistence"
)

var epoch = time.Date(2025, 8, 16, 12, 0, 0, 0, time.UTC)

func newClockFixture(t *testing.T) (*TokenClock, *TokenStore, *ManualClock) {
	t.Helper()
	store := NewTokenStore(persistence.NewMemoryStore(), zap.NewNop())
	clock := NewManualClock(epoch)
	return NewTokenClock(store, clock, time.Second, zap.NewNop()), store, clock
}

func TestTokenClockFiresOnceOnExpiry(t *testing.T) {
	tc, store, clock := newClockFixture(t)
	require.NoError(t, store.Save(context.Background(), "tok", epoch.Add(3*time.Second)))

	var fired atomic.Int32
	tc.Start(func() { fired.Add(1) })
	require.True(t, tc.Running())

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !tc.Running() }, time.Second, 5*time.Millisecond)

	clock.Advance(5 * time.Second)
	assert.Never(t, func() bool { return fired.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestTokenClockStopsWhenTokenDisappears(t *testing.T) {
	tc, _, clock := newClockFixture(t)

	var fired atomic.Int32
	tc.Start(func() { fired.Add(1) })
	clock.Advance(time.Second)

	require.Eventually(t, func() bool { return !tc.Running() }, time.Second, 5*time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestTokenClockReportsTokenClearedElsewhere(t *testing.T) {
	tc, store, clock := newClockFixture(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "tok", epoch.Add(time.Hour)))

	var expired, absent atomic.Int32
	tc.StartWatching(func() { expired.Add(1) }, func() { absent.Add(1) })

	clock.Advance(time.Second)
	assert.Never(t, func() bool { return absent.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, store.Clear(ctx))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return absent.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, expired.Load())
	assert.False(t, tc.Running())
}

func TestTokenClockMissingExpiryCountsAsExpired(t *testing.T) {
	kv := persistence.NewMemoryStore()
	store := NewTokenStore(kv, zap.NewNop())
	clock := NewManualClock(epoch)
	tc := NewTokenClock(store, clock, time.Second, zap.NewNop())
	require.NoError(t, kv.Put(context.Background(), map[string]string{TokenKey: "tok", ExpiryKey: "soon"}))

	var fired atomic.Int32
	tc.Start(func() { fired.Add(1) })
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTokenClockRestartDoesNotLeak(t *testing.T) {
	tc, store, clock := newClockFixture(t)
	require.NoError(t, store.Save(context.Background(), "tok", epoch.Add(time.Hour)))

	tc.Start(func() {})
	tc.Start(func() {})
	tc.Start(func() {})
	assert.Equal(t, 1, clock.ActiveTickers())

	tc.Stop()
	tc.Stop()
	assert.False(t, tc.Running())
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestTokenClockStopCancelsPendingTick(t *testing.T) {
	tc, store, clock := newClockFixture(t)
	require.NoError(t, store.Save(context.Background(), "tok", epoch.Add(-time.Second)))

	var fired atomic.Int32
	tc.Start(func() { fired.Add(1) })
	tc.Stop()
	clock.Advance(2 * time.Second)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestTokenClockWithSystemClock(t *testing.T) {
	store := NewTokenStore(persistence.NewMemoryStore(), zap.NewNop())
	tc := NewTokenClock(store, SystemClock{}, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, store.Save(context.Background(), "tok", time.Now().Add(30*time.Millisecond)))

	done := make(chan struct{})
	tc.Start(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry never fired")
	}
}
