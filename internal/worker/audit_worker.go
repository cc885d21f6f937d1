package worker

import (
	"github.com/spec-kit/pedidos-console/internal/service"
)

// StartAuditWorker registers audit handlers. The returned func detaches them.
func StartAuditWorker(auditService *service.AuditService) (stop func()) {
	if auditService == nil {
		return func() {}
	}
	auditService.RegisterHandlers()
	return auditService.Unregister
}
