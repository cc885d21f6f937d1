package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pedidos-console/internal/persistence"
)

// Keys the token and its expiry are persisted under.
const (
	TokenKey  = "access_token"
	ExpiryKey = "token_expiration"
)

// TokenStore persists the bearer token and its expiry as a pair. It performs
// no validation; read failures are logged and reported as absence.
type TokenStore struct {
	kv     persistence.KeyValueStore
	logger *zap.Logger
}

// NewTokenStore returns a store over kv.
func NewTokenStore(kv persistence.KeyValueStore, logger *zap.Logger) *TokenStore {
	return &TokenStore{kv: kv, logger: logger}
}

// Save writes the token and expiry together. Expiry is stored as epoch milliseconds.
func (s *TokenStore) Save(ctx context.Context, token string, expiry time.Time) error {
	if token == "" {
		return errors.New("refusing to save empty token")
	}
	return s.kv.Put(ctx, map[string]string{
		TokenKey:  token,
		ExpiryKey: strconv.FormatInt(expiry.UnixMilli(), 10),
	})
}

// Read returns the stored token or "" when there is none.
func (s *TokenStore) Read(ctx context.Context) string {
	val, ok, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		s.logger.Warn("token store read failed", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return val
}

// ReadExpiry returns the stored expiry; ok is false when it is missing or unparsable.
func (s *TokenStore) ReadExpiry(ctx context.Context) (time.Time, bool) {
	val, ok, err := s.kv.Get(ctx, ExpiryKey)
	if err != nil {
		s.logger.Warn("token expiry read failed", zap.Error(err))
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Clear removes the token and expiry together.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, TokenKey, ExpiryKey)
}

// Present reports whether any part of a session is stored. An entry that
// exists but cannot be opened, such as one sealed under a rotated key, counts
// as present so that it gets cleared.
func (s *TokenStore) Present(ctx context.Context) bool {
	for _, key := range []string{TokenKey, ExpiryKey} {
		_, ok, err := s.kv.Get(ctx, key)
		if ok || errors.Is(err, persistence.ErrSealBroken) {
			return true
		}
	}
	return false
}
