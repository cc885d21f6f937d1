package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/pedidos-console/internal/api/http"
	"github.com/spec-kit/pedidos-console/internal/api/http/handlers"
	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/notify"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console over HTTP",
		Long: `Serve the console's JSON surface: login/logout, session status and
its event stream, the notification inbox and the guarded dashboard
resources.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to bind (default APP_HOST:APP_PORT)")
	return cmd
}

func runServe(addr string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbox := notify.NewInbox(100, logger)
	app, err := newApplication(ctx, cfg, logger, inbox, cfg.Session.Interactive)
	if err != nil {
		return err
	}
	defer app.release()

	status := app.auth.Init(ctx)
	logger.Info("session initialised", zap.String("status", status.String()))

	var metricsHandler http.Handler
	if app.registry != nil {
		metricsHandler = promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})
	}

	server := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(server, logger, app.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, app.kv),
		Session:       handlers.NewSessionHandler(app.auth, app.nav, logger),
		Notifications: handlers.NewNotificationsHandler(inbox),
		Dashboard:     handlers.NewDashboardHandler(app.gateway),
		Guard:         auth.NewRouteGuard(app.auth, app.nav, inbox, app.dispatcher, logger),
		Navigator:     app.nav,
		Metrics:       metricsHandler,
	})

	if addr == "" {
		addr = cfg.App.Addr()
	}
	go func() {
		logger.Info("console listening", zap.String("addr", addr))
		if err := server.Listen(addr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	return server.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
