package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

var (
	keyAB = models.NewConversationKey("11111", "22222")
	keyAC = models.NewConversationKey("11111", "33333")
)

// fakeLog is a tiny message log keyed by conversation.
type fakeLog struct {
	mu     sync.Mutex
	msgs   map[models.ConversationKey][]models.Message
	nextID int64
	err    error
	calls  int
	// gate, when set, blocks FetchConversation until it is closed or ctx ends.
	gate chan struct{}
}

func newFakeLog() *fakeLog {
	return &fakeLog{msgs: map[models.ConversationKey][]models.Message{}}
}

func (l *fakeLog) add(key models.ConversationKey, from, text string) *models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	m := models.Message{ID: l.nextID, From: from, To: key.Other(from), Text: &text, Timestamp: time.Now()}
	l.msgs[key] = append(l.msgs[key], m)
	return &m
}

func (l *fakeLog) FetchConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	l.mu.Lock()
	l.calls++
	gate, err := l.gate, l.err
	out := append([]models.Message(nil), l.msgs[key]...)
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *fakeLog) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *fakeLog) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// recorder counts materializations and keeps the last one.
type recorder struct {
	mu     sync.Mutex
	count  int
	lastK  models.ConversationKey
	lastID []int64
}

func (r *recorder) Materialize(key models.ConversationKey, msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	r.lastK = key
	r.lastID = r.lastID[:0]
	for _, m := range msgs {
		r.lastID = append(r.lastID, m.ID)
	}
}

func (r *recorder) renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestPoll_IdleIsNoop(t *testing.T) {
	log := newFakeLog()
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}

	for i := 0; i < 5; i++ {
		out, err := e.Poll(context.Background(), st, r)
		require.NoError(t, err)
		assert.Equal(t, Idle, out)
	}
	assert.Equal(t, 0, log.callCount())
	assert.Equal(t, 0, r.renders())
}

func TestPoll_DedupIdempotence(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "hi")
	log.add(keyAB, "22222", "hey")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)

	out, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)
	assert.Equal(t, Materialized, out)
	assert.Equal(t, []int64{1, 2}, r.lastID)

	for i := 0; i < 10; i++ {
		out, err := e.Poll(context.Background(), st, r)
		require.NoError(t, err)
		assert.Equal(t, Unchanged, out)
	}
	assert.Equal(t, 1, r.renders())
	assert.Equal(t, []int64{1, 2}, st.KnownIDs())
}

func TestPoll_NewMessageTriggersFullMaterialization(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "hi")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)

	_, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)
	log.add(keyAB, "22222", "hey")

	out, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)
	assert.Equal(t, Materialized, out)
	assert.Equal(t, 2, r.renders())
	assert.Equal(t, []int64{1, 2}, r.lastID)
}

func TestPoll_EmptyConversationRendersNothing(t *testing.T) {
	e := NewEngine(newFakeLog())
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)

	out, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)
	assert.Equal(t, 0, r.renders())
}

func TestOpen_ResetsKnownIDsOnEverySwitch(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "x")
	log.add(keyAC, "33333", "y")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}

	for _, key := range []models.ConversationKey{keyAB, keyAC, keyAB} {
		st.Open(key)
		assert.Empty(t, st.KnownIDs())
		out, err := e.Poll(context.Background(), st, r)
		require.NoError(t, err)
		assert.Equal(t, Materialized, out)
		assert.Equal(t, key, r.lastK)
	}
	assert.Equal(t, 3, r.renders())
}

func TestPoll_FailureLeavesRenderedStateAlone(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "x")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)
	_, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)

	log.setErr(models.ErrTransient)
	out, err := e.Poll(context.Background(), st, r)
	assert.Equal(t, Failed, out)
	assert.ErrorIs(t, err, models.ErrTransient)
	assert.Equal(t, []int64{1}, st.KnownIDs())
	assert.Equal(t, 1, r.renders())
}

func TestSend_ResetsAndPollsImmediately(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)
	_, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)
	calls := log.callCount()

	msg, err := e.Send(context.Background(), st, r, func(ctx context.Context) (*models.Message, error) {
		return log.add(keyAB, "11111", "back at you"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), msg.ID)
	assert.Equal(t, calls+1, log.callCount())
	assert.Equal(t, 2, r.renders())
	assert.Equal(t, []int64{1, 2}, st.KnownIDs())
}

func TestSend_RerendersEvenWhenIDsLookUnchanged(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)
	_, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)

	// The append reports success but the read does not see a new row yet;
	// the reset still forces a fresh materialization.
	_, err = e.Send(context.Background(), st, r, func(ctx context.Context) (*models.Message, error) {
		return &models.Message{ID: 99}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.renders())
}

func TestSend_FailureLeavesStateUntouched(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "22222", "hi")
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)
	_, err := e.Poll(context.Background(), st, r)
	require.NoError(t, err)
	calls := log.callCount()

	_, err = e.Send(context.Background(), st, r, func(ctx context.Context) (*models.Message, error) {
		return nil, models.ErrEmptyMessage
	})
	require.ErrorIs(t, err, models.ErrEmptyMessage)
	assert.Equal(t, []int64{1}, st.KnownIDs())
	assert.Equal(t, calls, log.callCount())
	assert.Equal(t, 1, r.renders())
}

func TestSend_IdleState(t *testing.T) {
	e := NewEngine(newFakeLog())
	called := false
	_, err := e.Send(context.Background(), NewState(), &recorder{}, func(ctx context.Context) (*models.Message, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNoConversation)
	assert.False(t, called)
}

func TestSend_RefreshFailureStillReturnsMessage(t *testing.T) {
	log := newFakeLog()
	e := NewEngine(log)
	st := NewState()
	st.Open(keyAB)

	msg, err := e.Send(context.Background(), st, &recorder{}, func(ctx context.Context) (*models.Message, error) {
		m := log.add(keyAB, "11111", "hi")
		log.setErr(errors.New("read timeout"))
		return m, nil
	})
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.NotNil(t, msg)
	assert.Equal(t, int64(1), msg.ID)
}

func TestPoll_ResponseAfterCloseIsDiscarded(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "hi")
	log.gate = make(chan struct{})
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)

	result := make(chan Outcome, 1)
	go func() {
		out, _ := e.Poll(context.Background(), st, r)
		result <- out
	}()
	require.Eventually(t, func() bool { return log.callCount() == 1 }, time.Second, time.Millisecond)

	st.Close()
	close(log.gate)

	assert.Equal(t, Discarded, <-result)
	assert.Equal(t, 0, r.renders())
	_, tracking := st.Current()
	assert.False(t, tracking)
}

func TestPoll_ResponseAfterSwitchIsDiscarded(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "hi")
	log.gate = make(chan struct{})
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)

	result := make(chan Outcome, 1)
	go func() {
		out, _ := e.Poll(context.Background(), st, r)
		result <- out
	}()
	require.Eventually(t, func() bool { return log.callCount() == 1 }, time.Second, time.Millisecond)

	st.Open(keyAC)
	close(log.gate)

	assert.Equal(t, Discarded, <-result)
	assert.Equal(t, 0, r.renders())
	assert.Empty(t, st.KnownIDs())
}

func TestPoll_CancelledFetchIsDiscarded(t *testing.T) {
	log := newFakeLog()
	log.add(keyAB, "11111", "hi")
	log.gate = make(chan struct{})
	e := NewEngine(log)
	st := NewState()
	r := &recorder{}
	st.Open(keyAB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := e.Poll(ctx, st, r)
	assert.NoError(t, err)
	assert.Equal(t, Discarded, out)
	assert.Equal(t, 0, r.renders())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "materialized", Materialized.String())
	assert.Equal(t, "failed", Failed.String())
}
