// Package navigation tracks which console view the operator is on.
package navigation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Visit is one entry in the navigation history.
type Visit struct {
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// Tracker records navigation requests. It satisfies auth.Navigator.
type Tracker struct {
	mu      sync.Mutex
	current string
	history []Visit
	limit   int
	logger  *zap.Logger
}

// NewTracker starts at initial and keeps the last limit visits.
func NewTracker(initial string, limit int, logger *zap.Logger) *Tracker {
	if limit <= 0 {
		limit = 32
	}
	return &Tracker{current: initial, limit: limit, logger: logger}
}

// Navigate moves to path. Repeating the current path is a no-op.
func (t *Tracker) Navigate(_ context.Context, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if path == t.current {
		return
	}
	t.current = path
	t.history = append(t.history, Visit{Path: path, At: time.Now().UTC()})
	if len(t.history) > t.limit {
		t.history = t.history[len(t.history)-t.limit:]
	}
	t.logger.Debug("navigate", zap.String("path", path))
}

// Current returns the active path.
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// History returns recorded visits, oldest first.
func (t *Tracker) History() []Visit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Visit(nil), t.history...)
}
