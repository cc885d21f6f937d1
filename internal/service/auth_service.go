package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/events"
	"github.com/spec-kit/pedidos-console/internal/notify"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

// DefaultSimulatedTTL is used when neither the auth API nor the token states an expiry.
const DefaultSimulatedTTL = 600 * time.Second

const tokenPreviewLen = 20

// SessionExpiredTitle titles the notification raised when the clock detects expiry.
const SessionExpiredTitle = "Sesión expirada"

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	Provider     auth.Provider
	Store        *auth.TokenStore
	TokenClock   *auth.TokenClock
	Clock        auth.Clock
	Notifier     notify.Notifier
	Navigator    auth.Navigator
	Dispatcher   events.Dispatcher
	SimulatedTTL time.Duration
	// Interactive makes the session-expired notification wait for an ack
	// before navigating to the login entry point.
	Interactive bool
}

// AuthService owns the operator session. It is the only writer of the
// session state; everything else observes it through SessionState().
type AuthService struct {
	provider    auth.Provider
	store       *auth.TokenStore
	tokenClock  *auth.TokenClock
	clock       auth.Clock
	notifier    notify.Notifier
	nav         auth.Navigator
	dispatcher  events.Dispatcher
	ttl         time.Duration
	interactive bool
	logger      *zap.Logger

	mu          sync.Mutex
	state       *auth.SessionState
	claims      *auth.Claims
	claimsToken string
	// epoch changes whenever the clock is restarted or the session cleared;
	// clock callbacks carry the epoch they were started under.
	epoch uint64
}

// Snapshot is a debug view of the session.
type Snapshot struct {
	Authenticated bool       `json:"authenticated"`
	HasToken      bool       `json:"has_token"`
	TokenPreview  string     `json:"token_preview,omitempty"`
	Expired       bool       `json:"expired"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Subject       string     `json:"subject,omitempty"`
	Roles         []string   `json:"roles"`
	ClockRunning  bool       `json:"clock_running"`
}

// NewAuthService builds the service in the anonymous state. Call Init before use.
func NewAuthService(deps AuthDependencies, logger *zap.Logger) *AuthService {
	if deps.Clock == nil {
		deps.Clock = auth.SystemClock{}
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.Nop{}
	}
	if deps.SimulatedTTL <= 0 {
		deps.SimulatedTTL = DefaultSimulatedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		provider:    deps.Provider,
		store:       deps.Store,
		tokenClock:  deps.TokenClock,
		clock:       deps.Clock,
		notifier:    deps.Notifier,
		nav:         deps.Navigator,
		dispatcher:  deps.Dispatcher,
		ttl:         deps.SimulatedTTL,
		interactive: deps.Interactive,
		logger:      logger.Named("auth"),
		state:       auth.NewSessionState(auth.Anonymous),
	}
}

// SessionState exposes the read-only status broadcast.
func (s *AuthService) SessionState() auth.StatusObserver {
	return s.state
}

// Status returns the current session status.
func (s *AuthService) Status() auth.Status {
	return s.state.Current()
}

// Init performs the silent startup check. A stale session is cleared without
// notifying or navigating; a valid one resumes polling.
func (s *AuthService) Init(ctx context.Context) auth.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims = nil
	if !s.validLocked(ctx) {
		if s.store.Present(ctx) {
			s.clearLocked(ctx)
			s.logger.Info("stale session cleared at startup")
			s.publish(ctx, events.EventSessionEnded, "", events.SessionEndedPayload{Reason: "stale"})
		}
		s.state.Set(auth.Anonymous)
		return auth.Anonymous
	}

	s.state.Set(auth.Authenticated)
	s.startClockLocked()
	s.logger.Info("session resumed")
	return auth.Authenticated
}

// Login exchanges credentials for a token and starts the session.
// Bad credentials yield an AUTH_FAILED error, transport failures UNREACHABLE.
func (s *AuthService) Login(ctx context.Context, creds auth.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	grant, err := s.provider.Authenticate(ctx, creds)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			s.logger.Info("login rejected", zap.String("username", creds.Username), zap.String("code", domainErr.Code))
			return err
		}
		return &apperrors.DomainError{Code: apperrors.CodeServerError, Message: "login failed", HTTPStatus: http.StatusBadGateway, Err: err}
	}
	if grant.Token == "" {
		return apperrors.NewDomainError(apperrors.CodeServerError, "auth API returned no token", http.StatusBadGateway, nil)
	}

	claims, decodeErr := auth.DecodeClaims(grant.Token)
	if decodeErr != nil {
		s.logger.Warn("token payload unreadable", zap.Error(decodeErr))
	}
	expiry := grant.ExpiresAt
	if expiry.IsZero() {
		expiry = claims.ExpiresAt
	}
	if expiry.IsZero() {
		expiry = s.clock.Now().Add(s.ttl)
	}

	s.mu.Lock()
	if err := s.store.Save(ctx, grant.Token, expiry); err != nil {
		s.mu.Unlock()
		return apperrors.NewInternalError(err)
	}
	s.claims, s.claimsToken = &claims, grant.Token
	s.state.Set(auth.Authenticated)
	s.startClockLocked()
	s.mu.Unlock()

	s.logger.Info("login succeeded", zap.String("subject", claims.Subject), zap.Time("expires_at", expiry))
	s.publish(ctx, events.EventSessionStarted, claims.Subject, events.SessionStartedPayload{ExpiresAt: expiry, Roles: claims.Roles})
	return nil
}

// Logout ends the session and returns the operator to the login entry point.
// Calling it while anonymous with nothing stored does nothing.
func (s *AuthService) Logout(ctx context.Context) {
	s.mu.Lock()
	wasAuthenticated := s.state.Current() == auth.Authenticated
	residual := s.store.Present(ctx)
	subject := s.claimsLocked(ctx).Subject
	s.clearLocked(ctx)
	s.state.Set(auth.Anonymous)
	s.mu.Unlock()

	if !wasAuthenticated && !residual {
		return
	}
	s.logger.Info("logout", zap.String("subject", subject))
	s.publish(ctx, events.EventSessionEnded, subject, events.SessionEndedPayload{Reason: "logout"})
	s.nav.Navigate(ctx, auth.LoginPath)
}

// HandleExpiry is the interactive expiry path used by the token clock. State
// is cleared immediately; navigation waits for the notification to be acked.
// Concurrent calls clear the session once.
func (s *AuthService) HandleExpiry(ctx context.Context) {
	s.mu.Lock()
	subject, cleared := s.expireLocked(ctx)
	s.mu.Unlock()
	if cleared {
		s.announceExpiry(ctx, subject)
	}
}

// expireLocked clears the session; cleared is false when there was nothing to clear.
func (s *AuthService) expireLocked(ctx context.Context) (subject string, cleared bool) {
	if s.state.Current() == auth.Anonymous && !s.store.Present(ctx) {
		return "", false
	}
	subject = s.claimsLocked(ctx).Subject
	s.clearLocked(ctx)
	s.state.Set(auth.Anonymous)
	return subject, true
}

func (s *AuthService) announceExpiry(ctx context.Context, subject string) {
	s.logger.Info("session expired", zap.String("subject", subject))
	s.publish(ctx, events.EventSessionExpired, subject, events.SessionEndedPayload{Reason: "expired"})

	acked := s.notifier.Notify(ctx, notify.Notification{
		Level:       notify.LevelWarning,
		Title:       SessionExpiredTitle,
		Text:        "Tu sesión ha caducado por seguridad. Por favor, inicia sesión nuevamente.",
		RequiresAck: s.interactive,
	})
	go func() {
		<-acked
		s.nav.Navigate(context.Background(), auth.LoginPath)
	}()
}

// IsAuthenticated reports whether a non-expired token is stored. A genuinely
// expired session is cleared silently; nothing is shown and nobody navigates.
// A valid token written by another process sharing the store is adopted.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Read(ctx) == "" {
		if s.state.Current() == auth.Authenticated {
			s.clearLocked(ctx)
			s.state.Set(auth.Anonymous)
		}
		return false
	}
	if s.validLocked(ctx) {
		if s.state.Current() == auth.Anonymous {
			s.adoptLocked(ctx)
		}
		return true
	}

	subject := s.claimsLocked(ctx).Subject
	s.clearLocked(ctx)
	s.state.Set(auth.Anonymous)
	s.logger.Debug("expired session cleared silently", zap.String("subject", subject))
	s.publish(ctx, events.EventSessionEnded, subject, events.SessionEndedPayload{Reason: "expired"})
	return false
}

// Claims returns the decoded token claims, cached until the session changes.
func (s *AuthService) Claims(ctx context.Context) auth.Claims {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimsLocked(ctx)
}

// HasRole reports whether the session claims role.
func (s *AuthService) HasRole(ctx context.Context, role string) bool {
	return s.Claims(ctx).HasRole(role)
}

// HasAnyRole reports whether the session claims at least one of roles.
func (s *AuthService) HasAnyRole(ctx context.Context, roles ...string) bool {
	return s.Claims(ctx).HasAnyRole(roles...)
}

// Username returns the token subject, "" when unknown.
func (s *AuthService) Username(ctx context.Context) string {
	return s.Claims(ctx).Subject
}

// Snapshot reports the session without changing it.
func (s *AuthService) Snapshot(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.store.Read(ctx)
	claims := s.claimsLocked(ctx)
	snap := Snapshot{
		Authenticated: s.state.Current() == auth.Authenticated,
		HasToken:      token != "",
		Subject:       claims.Subject,
		Roles:         claims.Roles,
		ClockRunning:  s.tokenClock.Running(),
	}
	if token != "" {
		preview := token
		if len(preview) > tokenPreviewLen {
			preview = preview[:tokenPreviewLen] + "..."
		}
		snap.TokenPreview = preview
		snap.Expired = !s.validLocked(ctx)
	}
	if expiry, ok := s.store.ReadExpiry(ctx); ok {
		snap.ExpiresAt = &expiry
	}
	return snap
}

// startClockLocked restarts expiry polling for the current session.
func (s *AuthService) startClockLocked() {
	s.epoch++
	epoch := s.epoch
	s.tokenClock.StartWatching(
		func() { s.clockExpired(epoch) },
		func() { s.clockTokenGone(epoch) },
	)
}

// adoptLocked takes over a valid token this process did not log in with.
func (s *AuthService) adoptLocked(ctx context.Context) {
	claims := s.claimsLocked(ctx)
	s.state.Set(auth.Authenticated)
	s.startClockLocked()

	expiry, _ := s.store.ReadExpiry(ctx)
	s.logger.Info("session adopted from store", zap.String("subject", claims.Subject), zap.Time("expires_at", expiry))
	s.publish(ctx, events.EventSessionStarted, claims.Subject, events.SessionStartedPayload{ExpiresAt: expiry, Roles: claims.Roles})
}

// clockExpired handles an expiry tick from the clock started under epoch.
// A tick that lost the race against a newer login or logout is dropped.
func (s *AuthService) clockExpired(epoch uint64) {
	ctx := context.Background()
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("stale expiry tick dropped")
		return
	}
	if s.validLocked(ctx) {
		// Replaced by a fresh token between the tick and here.
		s.startClockLocked()
		s.mu.Unlock()
		return
	}
	subject, cleared := s.expireLocked(ctx)
	s.mu.Unlock()
	if cleared {
		s.announceExpiry(ctx, subject)
	}
}

// clockTokenGone handles a token removed from the store by someone else. The
// session ends silently.
func (s *AuthService) clockTokenGone(epoch uint64) {
	ctx := context.Background()
	s.mu.Lock()
	if epoch != s.epoch || s.state.Current() == auth.Anonymous {
		s.mu.Unlock()
		return
	}
	if s.validLocked(ctx) {
		s.startClockLocked()
		s.mu.Unlock()
		return
	}
	var subject string
	if s.claims != nil {
		subject = s.claims.Subject
	}
	s.clearLocked(ctx)
	s.state.Set(auth.Anonymous)
	s.mu.Unlock()

	s.logger.Info("session removed from store", zap.String("subject", subject))
	s.publish(ctx, events.EventSessionEnded, subject, events.SessionEndedPayload{Reason: "removed"})
}

func (s *AuthService) validLocked(ctx context.Context) bool {
	if s.store.Read(ctx) == "" {
		return false
	}
	expiry, ok := s.store.ReadExpiry(ctx)
	return ok && !s.clock.Now().After(expiry)
}

// claimsLocked returns the claims of the stored token, decoding only when the
// token changed since the last call.
func (s *AuthService) claimsLocked(ctx context.Context) auth.Claims {
	token := s.store.Read(ctx)
	if s.claims != nil && s.claimsToken == token {
		return *s.claims
	}
	claims, err := auth.DecodeClaims(token)
	if err != nil && token != "" {
		s.logger.Debug("claims unavailable", zap.Error(err))
	}
	s.claims, s.claimsToken = &claims, token
	return claims
}

func (s *AuthService) clearLocked(ctx context.Context) {
	s.epoch++
	s.tokenClock.Stop()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("clear token store", zap.Error(err))
	}
	s.claims, s.claimsToken = nil, ""
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject string, payload interface{}) {
	if err := s.dispatcher.Publish(ctx, events.NewEvent(eventType, subject, s.clock.Now().UTC(), payload)); err != nil {
		s.logger.Warn("publish session event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
