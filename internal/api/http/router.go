package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/pedidos-console/internal/api/http/handlers"
	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/navigation"
)

// AdminRole gates operator account management.
const AdminRole = "ADMIN"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Session       *handlers.SessionHandler
	Notifications *handlers.NotificationsHandler
	Dashboard     *handlers.DashboardHandler
	Guard         *auth.RouteGuard
	Navigator     *navigation.Tracker
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Get(auth.LoginPath, cfg.Session.LoginView)
	app.Post(auth.LoginPath, cfg.Session.Login)
	app.Get("/session", cfg.Session.Status)
	app.Get("/session/events", cfg.Session.Events)
	app.Get("/notifications", cfg.Notifications.List)
	app.Post("/notifications/:id/ack", cfg.Notifications.Ack)

	app.Post("/logout", auth.RequireRoute(cfg.Guard), cfg.Session.Logout)

	// The admin group is registered ahead of the dashboard group so its
	// requests pass through a single guard check.
	users := app.Group(handlers.DashboardPath+"/usuarios", auth.RequireRoute(cfg.Guard, AdminRole), trackView(cfg.Navigator))
	users.Get("/", cfg.Dashboard.ListUsers)
	users.Post("/", cfg.Dashboard.CreateUser)
	users.Delete("/:username", cfg.Dashboard.DeleteUser)

	dashboard := app.Group(handlers.DashboardPath, auth.RequireRoute(cfg.Guard), trackView(cfg.Navigator))
	dashboard.Get("/", cfg.Dashboard.ClientOrders)
	dashboard.Get("/pedidosclientes", cfg.Dashboard.ClientOrders)

	clients := dashboard.Group("/clientes")
	clients.Get("/", cfg.Dashboard.ListClients)
	clients.Post("/", cfg.Dashboard.CreateClient)
	clients.Get("/:id", cfg.Dashboard.GetClient)
	clients.Put("/:id", cfg.Dashboard.UpdateClient)
	clients.Delete("/:id", cfg.Dashboard.DeleteClient)

	orders := dashboard.Group("/pedidos")
	orders.Get("/", cfg.Dashboard.ListOrders)
	orders.Post("/", cfg.Dashboard.CreateOrder)
	orders.Get("/:id", cfg.Dashboard.GetOrder)
	orders.Patch("/:id/estado/:estado", cfg.Dashboard.ChangeOrderStatus)
	orders.Delete("/:id", cfg.Dashboard.DeleteOrder)

	products := dashboard.Group("/productos")
	products.Get("/", cfg.Dashboard.ListProducts)
	products.Post("/", cfg.Dashboard.CreateProduct)
	products.Put("/:id", cfg.Dashboard.UpdateProduct)
	products.Delete("/:id", cfg.Dashboard.DeleteProduct)

	// Unknown console paths land on the dashboard.
	app.Use(func(c *fiber.Ctx) error {
		return c.Redirect(handlers.DashboardPath, fiber.StatusFound)
	})
}

// trackView records admitted GET requests as the operator's current view.
func trackView(nav *navigation.Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet && nav != nil {
			nav.Navigate(c.UserContext(), c.Path())
		}
		return c.Next()
	}
}
