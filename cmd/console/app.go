package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/config"
	"github.com/spec-kit/pedidos-console/internal/events"
	"github.com/spec-kit/pedidos-console/internal/gateway"
	"github.com/spec-kit/pedidos-console/internal/navigation"
	"github.com/spec-kit/pedidos-console/internal/notify"
	"github.com/spec-kit/pedidos-console/internal/observability"
	"github.com/spec-kit/pedidos-console/internal/persistence"
	"github.com/spec-kit/pedidos-console/internal/service"
	"github.com/spec-kit/pedidos-console/internal/worker"
)

// application is the wired session core shared by every subcommand.
type application struct {
	cfg        *config.Config
	logger     *zap.Logger
	kv         persistence.KeyValueStore
	store      *auth.TokenStore
	tokenClock *auth.TokenClock
	auth       *service.AuthService
	nav        *navigation.Tracker
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	gateway    *gateway.Client
	release    func()
}

// bootstrap loads config and the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}

// newApplication wires the session core. interactive selects whether the
// session-expired notification waits for an ack before navigating.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, notifier notify.Notifier, interactive bool) (*application, error) {
	kv, release, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:        cfg,
		logger:     logger,
		kv:         kv,
		notifier:   notifier,
		dispatcher: events.NewInMemoryDispatcher(),
		nav:        navigation.NewTracker(auth.LoginPath, 0, logger),
	}

	if cfg.Metrics.Enabled {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if app.metrics, err = observability.NewMetrics(app.registry); err != nil {
			release()
			return nil, err
		}
	}
	stopAudit := worker.StartAuditWorker(service.NewAuditService(app.dispatcher, logger, app.metrics))

	provider, err := newProvider(cfg, logger)
	if err != nil {
		stopAudit()
		release()
		return nil, err
	}

	app.store = auth.NewTokenStore(kv, logger)
	app.tokenClock = auth.NewTokenClock(app.store, auth.SystemClock{}, cfg.Session.PollInterval(), logger)
	app.auth = service.NewAuthService(service.AuthDependencies{
		Provider:     provider,
		Store:        app.store,
		TokenClock:   app.tokenClock,
		Notifier:     notifier,
		Navigator:    app.nav,
		Dispatcher:   app.dispatcher,
		SimulatedTTL: cfg.Session.SimulatedTTL(),
		Interactive:  interactive,
	}, logger)
	app.gateway = gateway.New(cfg.Gateway, app.store, notifier, app.metrics, logger)
	app.release = func() {
		app.tokenClock.Stop()
		stopAudit()
		release()
	}
	return app, nil
}

func newProvider(cfg *config.Config, logger *zap.Logger) (auth.Provider, error) {
	if cfg.Auth.Mode != "dev" {
		return gateway.NewAuthProvider(cfg.Gateway, nil, logger), nil
	}
	hash := cfg.Auth.DevPasswordHash
	if hash == "" {
		var err error
		if hash, err = auth.HashPassword(cfg.Auth.DevPassword, 0); err != nil {
			return nil, fmt.Errorf("hash dev password: %w", err)
		}
	}
	logger.Warn("using development auth provider", zap.String("user", cfg.Auth.DevUser))
	tokens := auth.NewTokenManager(cfg.Auth.DevSecret, cfg.Session.SimulatedTTL(), nil)
	return auth.NewDevProvider(cfg.Auth.DevUser, hash, cfg.Auth.DevRoles, tokens), nil
}
