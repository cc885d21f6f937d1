package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/config"
	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

// AuthProvider authenticates against the gateway's login endpoint. It does
// not go through the request pipeline: a failed login is reported to the
// caller, not to the operator inbox.
type AuthProvider struct {
	http     *http.Client
	loginURL string
	logger   *zap.Logger
}

// NewAuthProvider builds the provider. httpClient may be nil.
func NewAuthProvider(cfg config.GatewayConfig, httpClient *http.Client, logger *zap.Logger) *AuthProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthProvider{http: httpClient, loginURL: cfg.BaseURL + cfg.LoginPath, logger: logger.Named("gateway_auth")}
}

type loginResponse struct {
	Token       string     `json:"token"`
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ExpiresIn   int64      `json:"expires_in,omitempty"`
}

// Authenticate posts the credentials and returns the issued token.
func (p *AuthProvider) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Grant, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return auth.Grant{}, apperrors.NewInternalError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.loginURL, bytes.NewReader(payload))
	if err != nil {
		return auth.Grant{}, apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	sentAt := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Warn("auth API unreachable", zap.Error(err))
		return auth.Grant{}, apperrors.NewUnreachable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return auth.Grant{}, apperrors.NewAuthFailed("Usuario o contraseña incorrectos")
	case resp.StatusCode >= http.StatusMultipleChoices:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return auth.Grant{}, &apperrors.DomainError{
			Code:       apperrors.CodeServerError,
			Message:    orDefault(extractMessage(raw), serverMessage),
			HTTPStatus: http.StatusBadGateway,
			Err:        errors.New(resp.Status),
		}
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return auth.Grant{}, &apperrors.DomainError{
			Code:       apperrors.CodeServerError,
			Message:    "unexpected auth API response",
			HTTPStatus: http.StatusBadGateway,
			Err:        err,
		}
	}

	grant := auth.Grant{Token: body.Token}
	if grant.Token == "" {
		grant.Token = body.AccessToken
	}
	switch {
	case body.ExpiresAt != nil:
		grant.ExpiresAt = *body.ExpiresAt
	case body.ExpiresIn > 0:
		grant.ExpiresAt = sentAt.Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return grant, nil
}
