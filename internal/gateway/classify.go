package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/notify"
	"github.com/spec-kit/pedidos-console/internal/observability"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

// StatusUnreachable stands in for the status of a request that got no response.
const StatusUnreachable = 0

const (
	defaultMessage  = "Ocurrió un error inesperado."
	conflictMessage = "Ya existe un conflicto con los datos proporcionados. Por favor, verifica la información."
	serverMessage   = "Se produjo un error interno, por favor intenta más tarde."
	maxErrorBody    = 1 << 20
)

// conflictKeywords mark 409 messages the gateway wrote for the operator.
var conflictKeywords = []string{"pedido", "pendiente"}

// Outcome is the classification of a failed gateway call.
type Outcome struct {
	Code       string
	Status     int
	Title      string
	Message    string
	Level      notify.Level
	Suppressed bool
}

// Classify maps a failure status to its outcome. message is whatever the
// gateway put in the error body, possibly empty.
func Classify(status int, method, message string) Outcome {
	message = strings.TrimSpace(message)
	switch {
	case status == StatusUnreachable:
		return Outcome{
			Code:    apperrors.CodeUnreachable,
			Title:   "Sin conexión",
			Message: "No se pudo conectar al servidor. Por favor, verifica tu conexión a internet.",
			Level:   notify.LevelError,
		}
	case status == http.StatusBadRequest:
		return Outcome{
			Code:       apperrors.CodeValidationRejected,
			Title:      "Solicitud incorrecta",
			Message:    orDefault(message, defaultMessage),
			Level:      notify.LevelError,
			Suppressed: true,
		}
	case status == http.StatusUnauthorized:
		return Outcome{
			Code:    apperrors.CodeUnauthenticated,
			Title:   "No autorizado",
			Message: "Tu sesión ha expirado o no estas autenticado.",
			Level:   notify.LevelWarning,
		}
	case status == http.StatusForbidden:
		text := "No tienes acceso a este recurso"
		if isMutating(method) {
			text = "No tienes permisos para esta accion"
		}
		return Outcome{Code: apperrors.CodeForbidden, Title: "Acceso denegado", Message: text, Level: notify.LevelError}
	case status == http.StatusNotFound:
		return Outcome{
			Code:    apperrors.CodeNotFound,
			Title:   "No encontrado",
			Message: "El recurso solicitado no existe.",
			Level:   notify.LevelWarning,
		}
	case status == http.StatusConflict:
		text := conflictMessage
		if mentionsAny(message, conflictKeywords) {
			text = message
		}
		return Outcome{
			Code:       apperrors.CodeConflict,
			Title:      "Conflicto detectado",
			Message:    text,
			Level:      notify.LevelWarning,
			Suppressed: true,
		}
	case status >= 500:
		return Outcome{
			Code:    apperrors.CodeServerError,
			Title:   "Error interno del servidor",
			Message: orDefault(message, serverMessage),
			Level:   notify.LevelError,
		}
	default:
		return Outcome{
			Code:    apperrors.CodeRequestFailed,
			Title:   fmt.Sprintf("Error %d", status),
			Message: orDefault(message, defaultMessage),
			Level:   notify.LevelError,
		}
	}
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func mentionsAny(message string, keywords []string) bool {
	lower := strings.ToLower(message)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// errorBody is the gateway's error envelope; older services use "response".
type errorBody struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

func extractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Response
}

// ClassifyingTransport notifies the operator about failed gateway calls.
// Suppressed outcomes never reach the caller: the response is discarded and
// apperrors.ErrHandled returned instead. Propagated failures pass through
// with their body intact; transport errors become UNREACHABLE DomainErrors.
type ClassifyingTransport struct {
	Next     http.RoundTripper
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

func (t *ClassifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next().RoundTrip(req)
	if err != nil {
		t.Metrics.RecordRequest(req.Method, StatusUnreachable, time.Since(start))
		t.report(req, Classify(StatusUnreachable, req.Method, ""))
		return nil, apperrors.NewUnreachable(err)
	}
	t.Metrics.RecordRequest(req.Method, resp.StatusCode, time.Since(start))
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	if readErr != nil {
		t.logger().Debug("read error body", zap.Error(readErr))
	}

	outcome := Classify(resp.StatusCode, req.Method, extractMessage(body))
	outcome.Status = resp.StatusCode
	t.report(req, outcome)
	if outcome.Suppressed {
		return nil, fmt.Errorf("%s: %w", outcome.Code, apperrors.ErrHandled)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (t *ClassifyingTransport) report(req *http.Request, o Outcome) {
	t.Metrics.RecordOutcome(o.Code, o.Suppressed)
	t.logger().Info("gateway call failed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", o.Status),
		zap.String("code", o.Code),
		zap.Bool("suppressed", o.Suppressed))
	if t.Notifier != nil {
		t.Notifier.Notify(req.Context(), notify.Notification{Level: o.Level, Title: o.Title, Text: o.Message})
	}
}

func (t *ClassifyingTransport) next() http.RoundTripper {
	if t.Next == nil {
		return http.DefaultTransport
	}
	return t.Next
}

func (t *ClassifyingTransport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}
