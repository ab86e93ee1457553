package chatsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

func TestPoller_PicksUpNewMessages(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	r := &recorder{}
	p := NewPoller(NewEngine(log), r, WithInterval(5*time.Millisecond))
	t.Cleanup(p.Close)

	p.Open(context.Background(), keyAB)
	require.Eventually(t, func() bool { return r.renders() == 1 }, time.Second, time.Millisecond)

	log.add(keyAB, "22222", "still there?")
	require.Eventually(t, func() bool { return r.renders() == 2 }, time.Second, time.Millisecond)

	// Many more ticks, no new rows: render count holds.
	calls := log.callCount()
	require.Eventually(t, func() bool { return log.callCount() > calls+5 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, r.renders())
}

func TestPoller_ZeroIntervalIsValid(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	r := &recorder{}
	p := NewPoller(NewEngine(log), r, WithInterval(0))

	p.Open(context.Background(), keyAB)
	require.Eventually(t, func() bool { return log.callCount() > 10 }, time.Second, time.Millisecond)
	p.Close()
	assert.Equal(t, 1, r.renders())
}

func TestPoller_CloseIsSynchronous(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	log.gate = make(chan struct{})
	r := &recorder{}
	p := NewPoller(NewEngine(log), r, WithInterval(time.Millisecond))

	p.Open(context.Background(), keyAB)
	require.Eventually(t, func() bool { return log.callCount() == 1 }, time.Second, time.Millisecond)

	p.Close()
	close(log.gate)
	calls := log.callCount()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, r.renders())
	assert.Equal(t, calls, log.callCount())
	_, tracking := p.State().Current()
	assert.False(t, tracking)
}

func TestPoller_OpenSwitchesConversation(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	log.add(keyAC, "33333", "yo")
	r := &recorder{}
	p := NewPoller(NewEngine(log), r, WithInterval(time.Hour))
	t.Cleanup(p.Close)

	p.Open(context.Background(), keyAB)
	require.Eventually(t, func() bool { return r.renders() == 1 }, time.Second, time.Millisecond)

	p.Open(context.Background(), keyAC)
	require.Eventually(t, func() bool { return r.renders() == 2 }, time.Second, time.Millisecond)
	r.mu.Lock()
	assert.Equal(t, keyAC, r.lastK)
	r.mu.Unlock()
	key, _ := p.State().Current()
	assert.Equal(t, keyAC, key)
}

func TestPoller_NudgePollsAheadOfInterval(t *testing.T) {
	log := newFakeLog()
	r := &recorder{}
	p := NewPoller(NewEngine(log), r, WithInterval(time.Hour))
	t.Cleanup(p.Close)

	p.Nudge()
	p.Open(context.Background(), keyAB)
	require.Eventually(t, func() bool { return log.callCount() == 1 }, time.Second, time.Millisecond)

	log.add(keyAB, "22222", "hi")
	p.Nudge()
	require.Eventually(t, func() bool { return r.renders() == 1 }, time.Second, time.Millisecond)
}

func TestPoller_TransientErrorsKeepPolling(t *testing.T) {
	log := newFakeLog()
	log.setErr(models.ErrTransient)
	var failed atomic.Int32
	p := NewPoller(NewEngine(log), &recorder{},
		WithInterval(time.Millisecond),
		WithTickHook(func(o Outcome, err error) {
			if o == Failed {
				failed.Add(1)
			}
		}),
	)
	t.Cleanup(p.Close)

	p.Open(context.Background(), keyAB)
	require.Eventually(t, func() bool { return failed.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestPoller_UnauthenticatedForcesLogout(t *testing.T) {
	log := newFakeLog()
	log.setErr(models.ErrUnauthenticated)
	loggedOut := make(chan struct{})
	p := NewPoller(NewEngine(log), &recorder{},
		WithInterval(time.Millisecond),
		WithUnauthenticatedHook(func() { close(loggedOut) }),
	)

	p.Open(context.Background(), keyAB)
	select {
	case <-loggedOut:
	case <-time.After(time.Second):
		t.Fatal("unauthenticated hook not called")
	}

	calls := log.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, log.callCount(), "polling stops after the session dies")
	_, tracking := p.State().Current()
	assert.False(t, tracking)
}

func TestPoller_SendUnauthenticated(t *testing.T) {
	var hooked atomic.Bool
	p := NewPoller(NewEngine(newFakeLog()), &recorder{},
		WithInterval(time.Hour),
		WithUnauthenticatedHook(func() { hooked.Store(true) }),
	)
	p.Open(context.Background(), keyAB)

	_, err := p.Send(context.Background(), func(ctx context.Context) (*models.Message, error) {
		return nil, models.ErrUnauthenticated
	})
	require.ErrorIs(t, err, models.ErrUnauthenticated)
	assert.True(t, hooked.Load())
	_, tracking := p.State().Current()
	assert.False(t, tracking)
}

func TestPoller_CloseWithoutOpen(t *testing.T) {
	p := NewPoller(NewEngine(newFakeLog()), &recorder{})
	p.Close()
	p.Nudge()
}
