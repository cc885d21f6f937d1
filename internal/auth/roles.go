package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/events"
	"github.com/spec-kit/pedidos-console/internal/notify"
)

// LoginPath is the public entry point unauthenticated navigation is sent to.
const LoginPath = "/login"

// Navigator moves the operator to another view.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Authorizer is the part of the session owner the guard consults.
// IsAuthenticated must not notify or navigate.
type Authorizer interface {
	IsAuthenticated(ctx context.Context) bool
	HasAnyRole(ctx context.Context, roles ...string) bool
	Claims(ctx context.Context) Claims
}

// Requirement describes what a protected route demands. No roles means any
// authenticated operator may enter.
type Requirement struct {
	Path  string
	Roles []string
}

// DenyReason says why a navigation was refused.
type DenyReason string

const (
	DenyUnauthenticated DenyReason = "unauthenticated"
	DenyForbidden       DenyReason = "forbidden"
)

// Decision is the guard's answer for one navigation.
type Decision struct {
	Allowed  bool
	Reason   DenyReason
	Redirect string
}

// RouteGuard admits or refuses navigation into protected routes. It never
// changes session state itself.
type RouteGuard struct {
	auth     Authorizer
	nav      Navigator
	notifier notify.Notifier
	events   events.Dispatcher
	logger   *zap.Logger
}

// NewRouteGuard builds a guard. dispatcher may be nil.
func NewRouteGuard(auth Authorizer, nav Navigator, notifier notify.Notifier, dispatcher events.Dispatcher, logger *zap.Logger) *RouteGuard {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	return &RouteGuard{auth: auth, nav: nav, notifier: notifier, events: dispatcher, logger: logger}
}

// CanEnter decides whether navigation satisfying req may proceed.
func (g *RouteGuard) CanEnter(ctx context.Context, req Requirement) Decision {
	if !g.auth.IsAuthenticated(ctx) {
		g.nav.Navigate(ctx, LoginPath)
		return Decision{Reason: DenyUnauthenticated, Redirect: LoginPath}
	}
	if len(req.Roles) == 0 || g.auth.HasAnyRole(ctx, req.Roles...) {
		return Decision{Allowed: true}
	}

	claims := g.auth.Claims(ctx)
	name := claims.Subject
	if name == "" {
		name = "operador"
	}
	g.notifier.Notify(ctx, notify.Notification{
		Level: notify.LevelWarning,
		Title: "Acceso denegado",
		Text:  fmt.Sprintf("Hola %s no tienes acceso a este recurso!", name),
	})
	if err := g.events.Publish(ctx, events.NewEvent(events.EventAccessDenied, claims.Subject, time.Now().UTC(),
		events.AccessDeniedPayload{Path: req.Path, Required: req.Roles})); err != nil {
		g.logger.Warn("publish access denied", zap.Error(err))
	}
	return Decision{Reason: DenyForbidden}
}
