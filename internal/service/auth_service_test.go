package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/events"
	"github.com/spec-kit/pedidos-console/internal/notify"
	"github.com/spec-kit/pedidos-console/internal/persistence"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

var t0 = time.Date(2025, 8, 16, 9, 0, 0, 0, time.UTC)

type countingKV struct {
	*persistence.MemoryStore
	deletes atomic.Int32
	// beforePut, when set, runs at the start of every Put.
	beforePut func()
}

func (c *countingKV) Put(ctx context.Context, entries map[string]string) error {
	if c.beforePut != nil {
		c.beforePut()
	}
	return c.MemoryStore.Put(ctx, entries)
}

func (c *countingKV) Delete(ctx context.Context, keys ...string) error {
	c.deletes.Add(1)
	return c.MemoryStore.Delete(ctx, keys...)
}

type stubProvider struct {
	grant auth.Grant
	err   error
	calls atomic.Int32
}

func (p *stubProvider) Authenticate(context.Context, auth.Credentials) (auth.Grant, error) {
	p.calls.Add(1)
	return p.grant, p.err
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type fixture struct {
	svc        *AuthService
	kv         *countingKV
	store      *auth.TokenStore
	tokenClock *auth.TokenClock
	clock      *auth.ManualClock
	provider   *stubProvider
	inbox      *notify.Inbox
	nav        *recordingNavigator
	dispatcher events.Dispatcher
}

func newFixture(t *testing.T, interactive bool) *fixture {
	t.Helper()
	logger := zap.NewNop()
	kv := &countingKV{MemoryStore: persistence.NewMemoryStore()}
	store := auth.NewTokenStore(kv, logger)
	clock := auth.NewManualClock(t0)
	tokenClock := auth.NewTokenClock(store, clock, time.Second, logger)
	f := &fixture{
		kv:         kv,
		store:      store,
		tokenClock: tokenClock,
		clock:      clock,
		provider:   &stubProvider{grant: auth.Grant{Token: "opaque-token"}},
		inbox:      notify.NewInbox(10, logger),
		nav:        &recordingNavigator{},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.svc = NewAuthService(AuthDependencies{
		Provider:     f.provider,
		Store:        store,
		TokenClock:   tokenClock,
		Clock:        clock,
		Notifier:     f.inbox,
		Navigator:    f.nav,
		Dispatcher:   f.dispatcher,
		SimulatedTTL: 600 * time.Second,
		Interactive:  interactive,
	}, logger)
	t.Cleanup(tokenClock.Stop)
	return f
}

func (f *fixture) countEvents(eventType events.EventType) *atomic.Int32 {
	var n atomic.Int32
	f.dispatcher.Subscribe(eventType, func(context.Context, events.Event) error {
		n.Add(1)
		return nil
	})
	return &n
}

var creds = auth.Credentials{Username: "admin", Password: "admin"}

func TestLoginThenLogoutAlwaysEndsAnonymous(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.Login(ctx, creds))
		assert.Equal(t, auth.Authenticated, f.svc.Status())
		assert.True(t, f.tokenClock.Running())

		f.svc.Logout(ctx)
		assert.Equal(t, auth.Anonymous, f.svc.Status())
		assert.False(t, f.tokenClock.Running())
		assert.Equal(t, 0, f.kv.Len())
	}
	assert.Equal(t, []string{auth.LoginPath, auth.LoginPath, auth.LoginPath}, f.nav.Paths())
}

func TestLogoutWhenAnonymousIsQuiet(t *testing.T) {
	f := newFixture(t, false)
	ended := f.countEvents(events.EventSessionEnded)

	f.svc.Logout(context.Background())
	f.svc.Logout(context.Background())

	assert.Empty(t, f.nav.Paths())
	assert.Zero(t, ended.Load())
	assert.Equal(t, auth.Anonymous, f.svc.Status())
}

func TestLogoutClearsResidualStorage(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, "left-over", t0.Add(time.Hour)))

	f.svc.Logout(ctx)
	assert.Equal(t, 0, f.kv.Len())
	assert.Equal(t, []string{auth.LoginPath}, f.nav.Paths())
}

func TestLoginFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"bad credentials", apperrors.NewAuthFailed("invalid username or password"), apperrors.CodeAuthFailed},
		{"unreachable", apperrors.NewUnreachable(errors.New("dial tcp: refused")), apperrors.CodeUnreachable},
		{"unexpected", errors.New("boom"), apperrors.CodeServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.provider.err = tc.err

			err := f.svc.Login(context.Background(), creds)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tc.code), err.Error())
			assert.Equal(t, auth.Anonymous, f.svc.Status())
			assert.Equal(t, 0, f.kv.Len())
			assert.False(t, f.tokenClock.Running())
		})
	}
}

func TestLoginRejectsIncompleteCredentialsLocally(t *testing.T) {
	f := newFixture(t, false)
	err := f.svc.Login(context.Background(), auth.Credentials{Username: "admin"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationRejected))
	assert.Zero(t, f.provider.calls.Load())
}

func TestLoginRejectsEmptyGrant(t *testing.T) {
	f := newFixture(t, false)
	f.provider.grant = auth.Grant{}
	err := f.svc.Login(context.Background(), creds)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeServerError))
	assert.Equal(t, auth.Anonymous, f.svc.Status())
}

func TestLoginExpiryPrecedence(t *testing.T) {
	ctx := context.Background()

	t.Run("grant expiry wins", func(t *testing.T) {
		f := newFixture(t, false)
		f.provider.grant = auth.Grant{Token: "opaque", ExpiresAt: t0.Add(time.Minute)}
		require.NoError(t, f.svc.Login(ctx, creds))
		exp, ok := f.store.ReadExpiry(ctx)
		require.True(t, ok)
		assert.True(t, exp.Equal(t0.Add(time.Minute)))
	})

	t.Run("token exp claim", func(t *testing.T) {
		f := newFixture(t, false)
		tm := auth.NewTokenManager("k", 5*time.Minute, f.clock.Now)
		token, exp, err := tm.GenerateToken("admin", []string{"ADMIN"})
		require.NoError(t, err)
		f.provider.grant = auth.Grant{Token: token}
		require.NoError(t, f.svc.Login(ctx, creds))
		got, ok := f.store.ReadExpiry(ctx)
		require.True(t, ok)
		assert.True(t, got.Equal(exp))
	})

	t.Run("simulated ttl", func(t *testing.T) {
		f := newFixture(t, false)
		require.NoError(t, f.svc.Login(ctx, creds))
		got, ok := f.store.ReadExpiry(ctx)
		require.True(t, ok)
		assert.True(t, got.Equal(t0.Add(600*time.Second)))
	})
}

func TestExpiryScenarioAtSixHundredSeconds(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	expired := f.countEvents(events.EventSessionExpired)
	require.NoError(t, f.svc.Login(ctx, creds))

	f.clock.Advance(599 * time.Second)
	assert.True(t, f.svc.IsAuthenticated(ctx))
	assert.Equal(t, auth.Authenticated, f.svc.Status())

	f.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return f.svc.Status() == auth.Anonymous }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.kv.Len())
	assert.False(t, f.tokenClock.Running())
	require.Eventually(t, func() bool { return len(f.nav.Paths()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), expired.Load())
}

func TestHandleExpiryClearsOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	expired := f.countEvents(events.EventSessionExpired)
	require.NoError(t, f.svc.Login(ctx, creds))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			f.svc.HandleExpiry(ctx)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), f.kv.deletes.Load())
	assert.Equal(t, int32(1), expired.Load())
	assert.Len(t, f.inbox.List(), 1)
	assert.Equal(t, auth.Anonymous, f.svc.Status())
	require.Eventually(t, func() bool { return len(f.nav.Paths()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestInteractiveExpiryNavigatesAfterAck(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, creds))

	f.svc.HandleExpiry(ctx)
	assert.Equal(t, auth.Anonymous, f.svc.Status(), "state cleared before the ack")
	assert.Equal(t, 0, f.kv.Len())

	pending := f.inbox.List()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].RequiresAck)
	assert.Equal(t, SessionExpiredTitle, pending[0].Title)
	assert.Never(t, func() bool { return len(f.nav.Paths()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	require.True(t, f.inbox.Ack(pending[0].ID))
	require.Eventually(t, func() bool { return len(f.nav.Paths()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, auth.LoginPath, f.nav.Paths()[0])
}

func TestIsAuthenticatedIsSideEffectFreeWhileValid(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, creds))

	updates, cancel := f.svc.SessionState().Observe()
	defer cancel()
	<-updates

	for i := 0; i < 1000; i++ {
		require.True(t, f.svc.IsAuthenticated(ctx))
	}

	select {
	case v := <-updates:
		t.Fatalf("unexpected state broadcast %v", v)
	default:
	}
	assert.True(t, f.tokenClock.Running())
	assert.Equal(t, 1, f.clock.ActiveTickers())
	assert.Zero(t, f.kv.deletes.Load())
	assert.Empty(t, f.inbox.List())
}

func TestIsAuthenticatedClearsExpiredSilently(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.svc.Login(ctx, creds))
	f.tokenClock.Stop()

	f.clock.Advance(601 * time.Second)
	assert.False(t, f.svc.IsAuthenticated(ctx))
	assert.False(t, f.svc.IsAuthenticated(ctx))

	assert.Equal(t, auth.Anonymous, f.svc.Status())
	assert.Equal(t, int32(1), f.kv.deletes.Load())
	assert.Empty(t, f.inbox.List(), "silent path never notifies")
	assert.Empty(t, f.nav.Paths(), "silent path never navigates")
}

func TestInitIsSilent(t *testing.T) {
	ctx := context.Background()

	t.Run("stale session", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.store.Save(ctx, "old", t0.Add(-time.Second)))

		assert.Equal(t, auth.Anonymous, f.svc.Init(ctx))
		assert.Equal(t, 0, f.kv.Len())
		assert.Empty(t, f.inbox.List())
		assert.Empty(t, f.nav.Paths())
		assert.False(t, f.tokenClock.Running())
	})

	t.Run("valid session resumes", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.store.Save(ctx, "current", t0.Add(time.Minute)))

		assert.Equal(t, auth.Authenticated, f.svc.Init(ctx))
		assert.Equal(t, auth.Authenticated, f.svc.Status())
		assert.True(t, f.tokenClock.Running())
		assert.Empty(t, f.inbox.List())
	})

	t.Run("nothing stored", func(t *testing.T) {
		f := newFixture(t, true)
		assert.Equal(t, auth.Anonymous, f.svc.Init(ctx))
		assert.Zero(t, f.kv.deletes.Load())
	})
}

func TestGarbageTokenIsAuthenticatedButPrivilegeless(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.store.Save(ctx, "token-de-prueba-123", t0.Add(time.Minute)))
	require.Equal(t, auth.Authenticated, f.svc.Init(ctx))

	claims := f.svc.Claims(ctx)
	assert.Empty(t, claims.Subject)
	assert.NotNil(t, claims.Roles)
	assert.Empty(t, claims.Roles)
	assert.False(t, f.svc.HasRole(ctx, "ADMIN"))
	assert.False(t, f.svc.HasAnyRole(ctx, "ADMIN", "VENTAS"))
	assert.True(t, f.svc.IsAuthenticated(ctx))
}

func TestGarbageExpiryCountsAsExpired(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	require.NoError(t, f.kv.Put(ctx, map[string]string{auth.TokenKey: "tok", auth.ExpiryKey: "mañana"}))

	assert.False(t, f.svc.IsAuthenticated(ctx))
	assert.Equal(t, 0, f.kv.Len())
}

func TestClaimsFollowSessionChanges(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tm := auth.NewTokenManager("k", 10*time.Minute, f.clock.Now)
	token, _, err := tm.GenerateToken("maria", []string{"ADMIN"})
	require.NoError(t, err)
	f.provider.grant = auth.Grant{Token: token}

	require.NoError(t, f.svc.Login(ctx, creds))
	assert.Equal(t, "maria", f.svc.Username(ctx))
	assert.True(t, f.svc.HasRole(ctx, "admin"))

	f.svc.Logout(ctx)
	assert.Empty(t, f.svc.Username(ctx))
	assert.False(t, f.svc.HasRole(ctx, "ADMIN"))
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.provider.grant = auth.Grant{Token: "abcdefghijklmnopqrstuvwxyz"}
	require.NoError(t, f.svc.Login(ctx, creds))

	f.tokenClock.Stop()
	f.clock.Advance(11 * time.Minute)

	snap := f.svc.Snapshot(ctx)
	assert.True(t, snap.Authenticated)
	assert.True(t, snap.HasToken)
	assert.True(t, snap.Expired)
	assert.Equal(t, "abcdefghijklmnopqrst...", snap.TokenPreview)
	require.NotNil(t, snap.ExpiresAt)
	assert.Equal(t, 2, f.kv.Len(), "snapshot never clears")
}

func TestSessionEventsAreAudited(t *testing.T) {
	f := newFixture(t, false)
	NewAuditService(f.dispatcher, zap.NewNop(), nil).RegisterHandlers()
	started := f.countEvents(events.EventSessionStarted)
	ended := f.countEvents(events.EventSessionEnded)

	require.NoError(t, f.svc.Login(context.Background(), creds))
	f.svc.Logout(context.Background())

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, int32(1), ended.Load())
}

func TestStaleExpiryTickSparesFreshLogin(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.provider.grant = auth.Grant{Token: "first", ExpiresAt: t0.Add(10 * time.Second)}
	require.NoError(t, f.svc.Login(ctx, creds))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.kv.beforePut = func() {
		close(entered)
		<-release
	}
	f.provider.grant = auth.Grant{Token: "second", ExpiresAt: t0.Add(time.Hour)}

	loginErr := make(chan error, 1)
	go func() { loginErr <- f.svc.Login(ctx, creds) }()
	<-entered

	// The first session's clock sees its token expired while the second
	// login is still writing.
	f.clock.Advance(11 * time.Second)
	require.Eventually(t, func() bool { return !f.tokenClock.Running() }, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-loginErr)

	assert.Never(t, func() bool { return f.svc.Status() == auth.Anonymous }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "second", f.store.Read(ctx))
	assert.True(t, f.tokenClock.Running())
	assert.Empty(t, f.inbox.List())
	assert.Empty(t, f.nav.Paths())
}

func TestIsAuthenticatedAdoptsTokenSavedElsewhere(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	started := f.countEvents(events.EventSessionStarted)
	require.Equal(t, auth.Anonymous, f.svc.Init(ctx))

	tm := auth.NewTokenManager("k", time.Minute, f.clock.Now)
	token, exp, err := tm.GenerateToken("lucia", []string{"VENTAS"})
	require.NoError(t, err)
	require.NoError(t, f.store.Save(ctx, token, exp))

	assert.True(t, f.svc.IsAuthenticated(ctx))
	assert.Equal(t, auth.Authenticated, f.svc.Status())
	assert.True(t, f.tokenClock.Running())
	assert.Equal(t, "lucia", f.svc.Username(ctx))
	assert.Equal(t, int32(1), started.Load())

	assert.True(t, f.svc.IsAuthenticated(ctx))
	assert.Equal(t, int32(1), started.Load(), "adopted once")
	assert.Equal(t, 1, f.clock.ActiveTickers())

	f.clock.Advance(61 * time.Second)
	require.Eventually(t, func() bool { return f.svc.Status() == auth.Anonymous }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.inbox.List()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTokenClearedElsewhereEndsSessionSilently(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	ended := f.countEvents(events.EventSessionEnded)
	require.NoError(t, f.svc.Login(ctx, creds))

	require.NoError(t, f.store.Clear(ctx))
	f.clock.Advance(time.Second)

	require.Eventually(t, func() bool { return f.svc.Status() == auth.Anonymous }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, f.tokenClock.Running())
	assert.Empty(t, f.inbox.List())
	assert.Empty(t, f.nav.Paths())
}

func TestInitClearsResidueSealedUnderRotatedKey(t *testing.T) {
	const (
		oldKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
		newKey = "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100"
	)
	ctx := context.Background()
	logger := zap.NewNop()
	inner := persistence.NewMemoryStore()

	before, err := persistence.NewSealedStore(inner, oldKey)
	require.NoError(t, err)
	require.NoError(t, auth.NewTokenStore(before, logger).Save(ctx, "tok", t0.Add(time.Hour)))

	after, err := persistence.NewSealedStore(inner, newKey)
	require.NoError(t, err)
	store := auth.NewTokenStore(after, logger)
	clock := auth.NewManualClock(t0)
	tokenClock := auth.NewTokenClock(store, clock, time.Second, logger)
	t.Cleanup(tokenClock.Stop)

	svc := NewAuthService(AuthDependencies{
		Provider:   &stubProvider{},
		Store:      store,
		TokenClock: tokenClock,
		Clock:      clock,
		Notifier:   notify.NewInbox(1, logger),
		Navigator:  &recordingNavigator{},
	}, logger)

	assert.Equal(t, auth.Anonymous, svc.Init(ctx))
	assert.Equal(t, 0, inner.Len())
}
