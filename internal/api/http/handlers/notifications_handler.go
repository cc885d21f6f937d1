package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pedidos-console/internal/notify"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

// NotificationsHandler exposes the operator inbox.
type NotificationsHandler struct {
	inbox *notify.Inbox
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(inbox *notify.Inbox) *NotificationsHandler {
	return &NotificationsHandler{inbox: inbox}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.inbox.List()})
}

// Ack handles POST /notifications/:id/ack.
func (h *NotificationsHandler) Ack(c *fiber.Ctx) error {
	id := c.Params("id")
	if !h.inbox.Ack(id) {
		return apperrors.NewNotFound("notification", map[string]any{"id": id})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
