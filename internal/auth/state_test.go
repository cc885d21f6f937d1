package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateReplaysLatest(t *testing.T) {
	state := NewSessionState(Anonymous)
	state.Set(Authenticated)

	ch, cancel := state.Observe()
	defer cancel()
	assert.Equal(t, Authenticated, <-ch)
	assert.Equal(t, Authenticated, state.Current())
}

func TestSessionStateCoalescesForSlowObservers(t *testing.T) {
	state := NewSessionState(Anonymous)
	ch, cancel := state.Observe()
	defer cancel()

	state.Set(Authenticated)
	state.Set(Anonymous)
	state.Set(Authenticated)

	assert.Equal(t, Authenticated, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %v", v)
	default:
	}
}

func TestSessionStateUnsubscribe(t *testing.T) {
	state := NewSessionState(Anonymous)
	ch, cancel := state.Observe()
	require.Equal(t, 1, state.Observers())

	cancel()
	cancel()
	assert.Equal(t, 0, state.Observers())

	<-ch // replayed value
	_, open := <-ch
	assert.False(t, open)

	state.Set(Authenticated) // must not panic on the closed channel
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "anonymous", Anonymous.String())
}
