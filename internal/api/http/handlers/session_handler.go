package handlers

import (
	"bufio"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/navigation"
	"github.com/spec-kit/pedidos-console/internal/service"
)

// DashboardPath is where a successful login lands.
const DashboardPath = "/dashboard"

const keepAliveInterval = 15 * time.Second

// SessionHandler exposes login, logout and session status.
type SessionHandler struct {
	auth   *service.AuthService
	nav    *navigation.Tracker
	logger *zap.Logger
}

// NewSessionHandler constructs handler.
func NewSessionHandler(authService *service.AuthService, nav *navigation.Tracker, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{auth: authService, nav: nav, logger: logger}
}

// LoginView handles GET /login.
func (h *SessionHandler) LoginView(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"view":          auth.LoginPath,
		"authenticated": h.auth.Status() == auth.Authenticated,
	}})
}

// Login handles POST /login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var creds auth.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	ctx := c.UserContext()
	if err := h.auth.Login(ctx, creds); err != nil {
		return err
	}
	h.nav.Navigate(ctx, DashboardPath)

	claims := h.auth.Claims(ctx)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"status":   auth.Authenticated.String(),
		"subject":  claims.Subject,
		"roles":    claims.Roles,
		"location": h.nav.Current(),
	}})
}

// Logout handles POST /logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.auth.Logout(c.UserContext())
	return c.JSON(fiber.Map{"data": fiber.Map{
		"status":   auth.Anonymous.String(),
		"location": h.nav.Current(),
	}})
}

// Status handles GET /session. It never alters the session.
func (h *SessionHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"session":  h.auth.Snapshot(c.UserContext()),
		"location": h.nav.Current(),
		"history":  h.nav.History(),
	}})
}

// Events handles GET /session/events as a server-sent event stream of the
// session status. The current status is sent first.
func (h *SessionHandler) Events(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	updates, cancel := h.auth.SessionState().Observe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case status, ok := <-updates:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: session\ndata: {\"authenticated\":%t}\n\n", bool(status))
			case <-keepAlive.C:
				fmt.Fprint(w, ": keepalive\n\n")
			}
			if err := w.Flush(); err != nil {
				h.logger.Debug("session stream closed", zap.Error(err))
				return
			}
		}
	})
	return nil
}
