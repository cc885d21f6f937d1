package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the console and the gateway pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatewayRequests    *prometheus.CounterVec
	gatewayLatency     *prometheus.HistogramVec
	outcomes           *prometheus.CounterVec
	sessionTransitions *prometheus.CounterVec
	consoleRequests    *prometheus.CounterVec
}

// NewMetrics registers collectors on reg, reusing any that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedidos_console_gateway_requests_total",
			Help: "Requests sent to the backend gateway by method and status.",
		}, []string{"method", "status"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pedidos_console_gateway_request_duration_seconds",
			Help:    "Gateway round trip duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedidos_console_gateway_failures_total",
			Help: "Classified gateway failures by outcome code.",
		}, []string{"code", "suppressed"}),
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedidos_console_session_transitions_total",
			Help: "Session lifecycle events by type.",
		}, []string{"event"}),
		consoleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pedidos_console_http_requests_total",
			Help: "Requests handled by the console surface.",
		}, []string{"route", "method", "status"}),
	}

	if err := register(reg, &m.gatewayRequests); err != nil {
		return nil, err
	}
	if err := register(reg, &m.gatewayLatency); err != nil {
		return nil, err
	}
	if err := register(reg, &m.outcomes); err != nil {
		return nil, err
	}
	if err := register(reg, &m.sessionTransitions); err != nil {
		return nil, err
	}
	if err := register(reg, &m.consoleRequests); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector *C) error {
	if err := reg.Register(*collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				*collector = existing
				return nil
			}
		}
		return err
	}
	return nil
}

// RecordRequest counts a completed gateway round trip. Status 0 means no response.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.gatewayLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordOutcome counts a classified gateway failure.
func (m *Metrics) RecordOutcome(code string, suppressed bool) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(code, strconv.FormatBool(suppressed)).Inc()
}

// RecordSessionEvent counts a session lifecycle event.
func (m *Metrics) RecordSessionEvent(event string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(event).Inc()
}

// RecordConsoleRequest counts a request served by the console.
func (m *Metrics) RecordConsoleRequest(route, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.consoleRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
