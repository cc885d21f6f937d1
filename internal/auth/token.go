package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims is the identity decoded from the session token.
// An empty Subject means the token carried no usable identity.
type Claims struct {
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HasRole reports whether role is among the claimed roles (case-insensitive).
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether at least one of roles is claimed.
func (c Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// tokenClaims is the wire form of the token payload. The gateway has emitted
// roles under several names over time; all are accepted.
type tokenClaims struct {
	Roles       []string `json:"roles,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	Role        string   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func emptyClaims() Claims {
	return Claims{Roles: []string{}}
}

// DecodeClaims reads the token payload without verifying the signature; the
// gateway verifies tokens, the console only needs to read them. A payload that
// cannot be decoded yields empty claims and an error.
func DecodeClaims(token string) (Claims, error) {
	if token == "" {
		return emptyClaims(), errors.New("empty token")
	}
	parsed := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, parsed); err != nil {
		return emptyClaims(), err
	}

	out := emptyClaims()
	out.Subject = parsed.Subject
	seen := map[string]struct{}{}
	add := func(role string) {
		role = strings.TrimSpace(role)
		if role == "" {
			return
		}
		if _, dup := seen[role]; dup {
			return
		}
		seen[role] = struct{}{}
		out.Roles = append(out.Roles, role)
	}
	for _, r := range parsed.Roles {
		add(r)
	}
	for _, r := range parsed.Authorities {
		add(r)
	}
	add(parsed.Role)

	if parsed.ExpiresAt != nil {
		out.ExpiresAt = parsed.ExpiresAt.Time
	}
	return out, nil
}

// TokenManager issues signed tokens for the development provider.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. now defaults to time.Now.
func NewTokenManager(secret string, ttl time.Duration, now func() time.Time) *TokenManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: now}
}

// GenerateToken builds and signs a JWT for the subject.
func (tm *TokenManager) GenerateToken(subject string, roles []string) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &tokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}
