package auth

import "sync"

// Status is the projection of token validity broadcast to observers.
type Status bool

const (
	Anonymous     Status = false
	Authenticated Status = true
)

func (s Status) String() string {
	if s {
		return "authenticated"
	}
	return "anonymous"
}

// StatusObserver is the read-only view of SessionState handed to everyone
// except the session owner.
type StatusObserver interface {
	Observe() (<-chan Status, func())
	Current() Status
}

// SessionState broadcasts the latest Status. New observers immediately receive
// the current value; a slow observer only ever sees the most recent one.
type SessionState struct {
	mu      sync.Mutex
	current Status
	nextID  uint64
	subs    map[uint64]chan Status
}

// NewSessionState returns a state holding initial.
func NewSessionState(initial Status) *SessionState {
	return &SessionState{current: initial, subs: make(map[uint64]chan Status)}
}

// Observe registers an observer. Call the returned func to unsubscribe; the
// channel is closed afterwards.
func (s *SessionState) Observe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	s.mu.Lock()
	ch <- s.current
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Current returns the latest status.
func (s *SessionState) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set publishes value to every observer. Only the session owner calls Set.
func (s *SessionState) Set(value Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = value
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}

// Observers returns the number of registered observers.
func (s *SessionState) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
