package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 2 * time.Second

// Poller runs the engine on a fixed interval for one open conversation at a time.
type Poller struct {
	engine   *Engine
	state    *State
	renderer Renderer
	interval time.Duration

	onTick            func(Outcome, error)
	onUnauthenticated func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
}

type PollerOption func(*Poller)

// WithInterval sets the cadence. Zero polls back to back.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithTickHook is called after every poll tick with its outcome.
func WithTickHook(fn func(Outcome, error)) PollerOption {
	return func(p *Poller) { p.onTick = fn }
}

// WithUnauthenticatedHook is called when a poll or send fails because the
// session is no longer valid. The poller has already stopped and closed the
// state; the hook must drop the local session and force a new login.
func WithUnauthenticatedHook(fn func()) PollerOption {
	return func(p *Poller) { p.onUnauthenticated = fn }
}

func NewPoller(engine *Engine, renderer Renderer, opts ...PollerOption) *Poller {
	p := &Poller{
		engine:   engine,
		state:    NewState(),
		renderer: renderer,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State exposes the dedup state, mostly for inspection.
func (p *Poller) State() *State {
	return p.state
}

// Open starts polling key, stopping whatever was polled before. The first
// tick runs immediately.
func (p *Poller) Open(ctx context.Context, key models.ConversationKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Close()
	p.stopLocked()
	p.state.Open(key)

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.kick = make(chan struct{}, 1)
	go p.run(loopCtx, p.done, p.kick)
}

// Close stops polling. When it returns no further rendering happens.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Close()
	p.stopLocked()
}

// Nudge asks for a poll ahead of the next tick. It never blocks.
func (p *Poller) Nudge() {
	p.mu.Lock()
	kick := p.kick
	p.mu.Unlock()
	if kick == nil {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

// Send appends through the engine against this poller's state.
func (p *Poller) Send(ctx context.Context, send SendFunc) (*models.Message, error) {
	msg, err := p.engine.Send(ctx, p.state, p.renderer, send)
	if errors.Is(err, models.ErrUnauthenticated) {
		p.unauthenticated()
	}
	return msg, err
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done, p.kick = nil, nil, nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}, kick chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		outcome, err := p.engine.Poll(ctx, p.state, p.renderer)
		if p.onTick != nil {
			p.onTick(outcome, err)
		}
		if errors.Is(err, models.ErrUnauthenticated) {
			// Runs on its own goroutine so the hook may call Close.
			go p.unauthenticated()
			return
		}
		timer.Reset(p.interval)
	}
}

func (p *Poller) unauthenticated() {
	p.Close()
	if p.onUnauthenticated != nil {
		p.onUnauthenticated()
	}
}
