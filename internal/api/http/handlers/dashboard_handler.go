package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pedidos-console/internal/domain"
	"github.com/spec-kit/pedidos-console/internal/gateway"
)

// DashboardHandler proxies the protected resource views to the gateway.
type DashboardHandler struct {
	gateway *gateway.Client
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(client *gateway.Client) *DashboardHandler {
	return &DashboardHandler{gateway: client}
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// ClientOrders handles GET /dashboard and /dashboard/pedidosclientes:
// orders joined with their clients, optionally filtered by ?cliente=<id>.
func (h *DashboardHandler) ClientOrders(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var filter *int64
	if raw := c.Query("cliente"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid cliente")
		}
		filter = &id
	}

	orders, err := h.gateway.Orders().List(ctx)
	if err != nil {
		return err
	}
	clients, err := h.gateway.Clients().List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": domain.JoinOrdersWithClients(orders, clients, filter)})
}

// ListClients handles GET /dashboard/clientes.
func (h *DashboardHandler) ListClients(c *fiber.Ctx) error {
	list, err := h.gateway.Clients().List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

// GetClient handles GET /dashboard/clientes/:id.
func (h *DashboardHandler) GetClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	client, err := h.gateway.Clients().Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": client})
}

// CreateClient handles POST /dashboard/clientes.
func (h *DashboardHandler) CreateClient(c *fiber.Ctx) error {
	var req domain.ClientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	client, err := h.gateway.Clients().Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": client})
}

// UpdateClient handles PUT /dashboard/clientes/:id.
func (h *DashboardHandler) UpdateClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req domain.ClientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	client, err := h.gateway.Clients().Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": client})
}

// DeleteClient handles DELETE /dashboard/clientes/:id.
func (h *DashboardHandler) DeleteClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.gateway.Clients().Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListOrders handles GET /dashboard/pedidos.
func (h *DashboardHandler) ListOrders(c *fiber.Ctx) error {
	list, err := h.gateway.Orders().List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

// GetOrder handles GET /dashboard/pedidos/:id.
func (h *DashboardHandler) GetOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.gateway.Orders().Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": order})
}

// CreateOrder handles POST /dashboard/pedidos.
func (h *DashboardHandler) CreateOrder(c *fiber.Ctx) error {
	var req domain.OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	order, err := h.gateway.Orders().Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": order})
}

// ChangeOrderStatus handles PATCH /dashboard/pedidos/:id/estado/:estado.
func (h *DashboardHandler) ChangeOrderStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.gateway.Orders().ChangeStatus(c.UserContext(), id, domain.OrderStatus(c.Params("estado")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": order})
}

// DeleteOrder handles DELETE /dashboard/pedidos/:id.
func (h *DashboardHandler) DeleteOrder(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.gateway.Orders().Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListProducts handles GET /dashboard/productos. Gateway failures have
// already been reported and show as an empty catalog.
func (h *DashboardHandler) ListProducts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.gateway.Products().List(c.UserContext())})
}

// CreateProduct handles POST /dashboard/productos.
func (h *DashboardHandler) CreateProduct(c *fiber.Ctx) error {
	var req domain.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	product, err := h.gateway.Products().Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": product})
}

// UpdateProduct handles PUT /dashboard/productos/:id.
func (h *DashboardHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req domain.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	product, err := h.gateway.Products().Update(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": product})
}

// DeleteProduct handles DELETE /dashboard/productos/:id.
func (h *DashboardHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.gateway.Products().Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListUsers handles GET /dashboard/usuarios.
func (h *DashboardHandler) ListUsers(c *fiber.Ctx) error {
	list, err := h.gateway.Users().List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": list})
}

// CreateUser handles POST /dashboard/usuarios.
func (h *DashboardHandler) CreateUser(c *fiber.Ctx) error {
	var req domain.UserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	user, err := h.gateway.Users().Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": user})
}

// DeleteUser handles DELETE /dashboard/usuarios/:username.
func (h *DashboardHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.gateway.Users().Delete(c.UserContext(), c.Params("username")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
