// Package notify delivers operator-facing notifications. A notification that
// requires acknowledgement stays pending until the operator acks it; callers
// that must wait for the ack block on the channel returned by Notify.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level is the notification severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a single operator-facing message.
type Notification struct {
	ID          string    `json:"id"`
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	RequiresAck bool      `json:"requires_ack"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier surfaces notifications. The returned channel is closed once the
// notification has been acknowledged (immediately when no ack is required).
type Notifier interface {
	Notify(ctx context.Context, n Notification) <-chan struct{}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func fill(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}
	return n
}

// LogNotifier writes notifications to the log and acknowledges them at once.
// It is the non-interactive variant used by the CLI.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) <-chan struct{} {
	n = fill(n)
	fields := []zap.Field{
		zap.String("id", n.ID),
		zap.String("title", n.Title),
		zap.String("text", n.Text),
	}
	switch n.Level {
	case LevelError:
		l.logger.Error("notification", fields...)
	case LevelWarning:
		l.logger.Warn("notification", fields...)
	default:
		l.logger.Info("notification", fields...)
	}
	return closedChan()
}

type pending struct {
	n   Notification
	ack chan struct{}
}

// Inbox keeps notifications until the operator acknowledges them. When full,
// the oldest entry is dropped and treated as acknowledged.
type Inbox struct {
	mu       sync.Mutex
	capacity int
	items    []*pending
	logger   *zap.Logger
}

// NewInbox returns an inbox holding at most capacity notifications.
func NewInbox(capacity int, logger *zap.Logger) *Inbox {
	if capacity <= 0 {
		capacity = 50
	}
	return &Inbox{capacity: capacity, logger: logger}
}

func (b *Inbox) Notify(_ context.Context, n Notification) <-chan struct{} {
	n = fill(n)
	p := &pending{n: n, ack: make(chan struct{})}
	if !n.RequiresAck {
		close(p.ack)
	}

	b.mu.Lock()
	b.items = append(b.items, p)
	for len(b.items) > b.capacity {
		dropped := b.items[0]
		b.items = b.items[1:]
		closeOnce(dropped)
	}
	b.mu.Unlock()

	b.logger.Debug("notification queued",
		zap.String("id", n.ID),
		zap.String("level", string(n.Level)),
		zap.String("title", n.Title))
	return p.ack
}

// List returns the queued notifications, oldest first.
func (b *Inbox) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, 0, len(b.items))
	for _, p := range b.items {
		out = append(out, p.n)
	}
	return out
}

// Ack removes the notification and releases anyone waiting on it.
func (b *Inbox) Ack(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.items {
		if p.n.ID != id {
			continue
		}
		b.items = append(b.items[:i], b.items[i+1:]...)
		closeOnce(p)
		return true
	}
	return false
}

func closeOnce(p *pending) {
	select {
	case <-p.ack:
	default:
		close(p.ack)
	}
}
