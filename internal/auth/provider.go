package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/pedidos-console/pkg/util"
)

var validate = validator.New()

// Credentials are submitted to the auth API on login.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		details := map[string]any{}
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return apperrors.NewValidationError("username and password are required", details)
	}
	return nil
}

// Grant is what a successful login returns. ExpiresAt is zero when the auth
// API did not state an expiry.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// Provider is the auth API collaborator. Bad credentials must be reported as
// an AUTH_FAILED DomainError; transport failures as UNREACHABLE.
type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (Grant, error)
}

// DevProvider checks credentials against a single configured operator and
// issues a locally signed token. It stands in for the gateway in development.
type DevProvider struct {
	username     string
	passwordHash string
	roles        []string
	tokens       *TokenManager
}

// NewDevProvider builds the provider. passwordHash is a bcrypt hash.
func NewDevProvider(username, passwordHash string, roles []string, tokens *TokenManager) *DevProvider {
	return &DevProvider{username: username, passwordHash: passwordHash, roles: roles, tokens: tokens}
}

// Authenticate verifies the operator and issues a token.
func (p *DevProvider) Authenticate(ctx context.Context, creds Credentials) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	if creds.Username != p.username {
		return Grant{}, apperrors.NewAuthFailed("invalid username or password")
	}
	if err := ComparePassword(p.passwordHash, creds.Password); err != nil {
		return Grant{}, apperrors.NewAuthFailed("invalid username or password")
	}
	token, exp, err := p.tokens.GenerateToken(p.username, p.roles)
	if err != nil {
		return Grant{}, apperrors.NewInternalError(err)
	}
	return Grant{Token: token, ExpiresAt: exp}, nil
}
