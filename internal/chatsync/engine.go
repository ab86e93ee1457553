package chatsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

var (
	// ErrNoConversation is returned by Send when the state is idle.
	ErrNoConversation = errors.New("no conversation open")
	// ErrRefreshFailed wraps a failed follow-up poll after a successful send.
	// The message was stored; the next tick will show it.
	ErrRefreshFailed = errors.New("message sent but refresh failed")
)

// Fetcher reads a whole conversation, ascending by timestamp then id.
type Fetcher interface {
	FetchConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key models.ConversationKey) ([]models.Message, error)

func (f FetcherFunc) FetchConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	return f(ctx, key)
}

// Renderer shows a conversation. Materialize replaces everything previously
// shown for key with msgs. It is called with the State locked and must not
// call back into it.
type Renderer interface {
	Materialize(key models.ConversationKey, msgs []models.Message)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(key models.ConversationKey, msgs []models.Message)

func (f RendererFunc) Materialize(key models.ConversationKey, msgs []models.Message) {
	f(key, msgs)
}

// SendFunc appends one message to the tracked conversation.
type SendFunc func(ctx context.Context) (*models.Message, error)

// Outcome describes what a poll did.
type Outcome int

const (
	// Idle: nothing was open, nothing was fetched.
	Idle Outcome = iota
	// Unchanged: the fetched id set equals the rendered one.
	Unchanged
	// Materialized: the renderer received the full conversation.
	Materialized
	// Discarded: the conversation was closed, switched or cancelled mid-fetch.
	Discarded
	// Failed: the fetch returned an error; rendered state is untouched.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Idle:
		return "idle"
	case Unchanged:
		return "unchanged"
	case Materialized:
		return "materialized"
	case Discarded:
		return "discarded"
	default:
		return "failed"
	}
}

// Engine runs poll ticks and sends against caller-owned State.
type Engine struct {
	fetcher Fetcher
}

func NewEngine(fetcher Fetcher) *Engine {
	return &Engine{fetcher: fetcher}
}

// Poll fetches the tracked conversation and renders it in full unless its id
// set equals the one already rendered. Polling an idle state is a no-op.
func (e *Engine) Poll(ctx context.Context, st *State, r Renderer) (Outcome, error) {
	key, epoch, tracking := st.snapshot()
	if !tracking {
		return Idle, nil
	}

	msgs, err := e.fetcher.FetchConversation(ctx, key)

	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.tracking || st.epoch != epoch || ctx.Err() != nil {
		return Discarded, nil
	}
	if err != nil {
		return Failed, err
	}

	incoming := idSet(msgs)
	if sameIDs(incoming, st.known) {
		return Unchanged, nil
	}
	r.Materialize(key, msgs)
	st.known = incoming
	return Materialized, nil
}

// Send runs send for the tracked conversation. On success the rendered id set
// is reset and one extra poll runs at once, so the sender sees their own
// message. On failure the state is left untouched and nothing is rendered.
func (e *Engine) Send(ctx context.Context, st *State, r Renderer, send SendFunc) (*models.Message, error) {
	_, epoch, tracking := st.snapshot()
	if !tracking {
		return nil, ErrNoConversation
	}

	msg, err := send(ctx)
	if err != nil {
		return nil, err
	}

	st.resetKnown(epoch)
	if _, err := e.Poll(ctx, st, r); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return msg, nil
}
