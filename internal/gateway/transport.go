package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID carries a per-request id to the gateway.
const HeaderRequestID = "X-Request-ID"

// TokenSource yields the current bearer token, "" when there is none.
type TokenSource interface {
	Read(ctx context.Context) string
}

// TokenTransport attaches the bearer token read at send time. Requests go out
// unmodified when no token is stored.
type TokenTransport struct {
	Next   http.RoundTripper
	Source TokenSource
}

func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if token := t.Source.Read(req.Context()); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(out)
}
