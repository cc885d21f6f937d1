package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/events"
	"github.com/spec-kit/pedidos-console/internal/observability"
)

// AuditService records session lifecycle events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	unsubs     []func()
}

// NewAuditService creates the service. metrics may be nil.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events. Calling it again is a no-op until
// Unregister runs.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil || len(a.unsubs) > 0 {
		return
	}
	a.unsubs = []func(){
		a.dispatcher.Subscribe(events.EventSessionStarted, a.handleSessionStarted),
		a.dispatcher.Subscribe(events.EventSessionEnded, a.handleSessionEnded),
		a.dispatcher.Subscribe(events.EventSessionExpired, a.handleSessionEnded),
		a.dispatcher.Subscribe(events.EventAccessDenied, a.handleAccessDenied),
	}
}

// Unregister removes the handlers added by RegisterHandlers.
func (a *AuditService) Unregister() {
	for _, unsubscribe := range a.unsubs {
		unsubscribe()
	}
	a.unsubs = nil
}

func (a *AuditService) handleSessionStarted(_ context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("event_id", event.ID), zap.String("subject", event.Subject)}
	if p, ok := event.Payload.(events.SessionStartedPayload); ok {
		fields = append(fields, zap.Time("expires_at", p.ExpiresAt), zap.Strings("roles", p.Roles))
	}
	a.logger.Info("SessionStarted", fields...)
	a.metrics.RecordSessionEvent(string(event.Type))
	return nil
}

func (a *AuditService) handleSessionEnded(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("subject", event.Subject),
	}
	if p, ok := event.Payload.(events.SessionEndedPayload); ok {
		fields = append(fields, zap.String("reason", p.Reason))
	}
	a.logger.Info("SessionEnded", fields...)
	a.metrics.RecordSessionEvent(string(event.Type))
	return nil
}

func (a *AuditService) handleAccessDenied(_ context.Context, event events.Event) error {
	fields := []zap.Field{zap.String("event_id", event.ID), zap.String("subject", event.Subject)}
	if p, ok := event.Payload.(events.AccessDeniedPayload); ok {
		fields = append(fields, zap.String("path", p.Path), zap.Strings("required", p.Required))
	}
	a.logger.Warn("AccessDenied", fields...)
	a.metrics.RecordSessionEvent(string(event.Type))
	return nil
}
