// Package gateway talks to the backend REST gateway through the request
// pipeline: token attachment followed by failure classification.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/config"
	"github.com/spec-kit/pedidos-console/internal/notify"
	"github.com/spec-kit/pedidos-console/internal/observability"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

// Client issues JSON calls against the gateway.
type Client struct {
	http     *http.Client
	baseURL  string
	usersURL string
	logger   *zap.Logger
}

// New wires the full pipeline over http.DefaultTransport.
func New(cfg config.GatewayConfig, tokens TokenSource, notifier notify.Notifier, metrics *observability.Metrics, logger *zap.Logger) *Client {
	pipeline := &TokenTransport{
		Source: tokens,
		Next: &ClassifyingTransport{
			Next:     http.DefaultTransport,
			Notifier: notifier,
			Metrics:  metrics,
			Logger:   logger,
		},
	}
	return NewClient(cfg.BaseURL, cfg.UsersURL, &http.Client{Transport: pipeline, Timeout: cfg.Timeout()}, logger)
}

// NewClient builds a client over an existing http.Client.
func NewClient(baseURL, usersURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, baseURL: baseURL, usersURL: usersURL, logger: logger.Named("gateway")}
}

// Clients returns the clients resource.
func (c *Client) Clients() *Clients { return &Clients{c: c} }

// Orders returns the orders resource.
func (c *Client) Orders() *Orders { return &Orders{c: c} }

// Products returns the products resource.
func (c *Client) Products() *Products { return &Products{c: c} }

// Users returns the users resource.
func (c *Client) Users() *Users { return &Users{c: c} }

// do sends in as JSON and decodes the response into out. A failure status
// becomes a DomainError carrying the classified code.
func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		var domainErr *apperrors.DomainError
		if errors.Is(err, apperrors.ErrHandled) || errors.As(err, &domainErr) {
			return err
		}
		return apperrors.NewUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		outcome := Classify(resp.StatusCode, method, extractMessage(raw))
		return &apperrors.DomainError{
			Code:       outcome.Code,
			Message:    outcome.Message,
			HTTPStatus: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, req.URL.Redacted(), resp.Status),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &apperrors.DomainError{
			Code:       apperrors.CodeServerError,
			Message:    "unexpected gateway response",
			HTTPStatus: http.StatusBadGateway,
			Err:        err,
		}
	}
	return nil
}

func (c *Client) resource(path string) string {
	return c.baseURL + path
}
