// Package events fans out "conversation changed" signals so live sync
// sessions can poll ahead of their next tick. Signals carry no message data;
// subscribers always re-read the log.
package events

import (
	"context"
	"sync"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// Feed publishes and subscribes to conversation change signals.
type Feed interface {
	ConversationChanged(ctx context.Context, key models.ConversationKey)
	Subscribe(key models.ConversationKey, fn func()) (unsubscribe func(), err error)
}

// LocalFeed delivers signals within one process.
type LocalFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[models.ConversationKey]map[int]func()
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: map[models.ConversationKey]map[int]func(){}}
}

func (f *LocalFeed) ConversationChanged(_ context.Context, key models.ConversationKey) {
	f.mu.RLock()
	fns := make([]func(), 0, len(f.subs[key]))
	for _, fn := range f.subs[key] {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (f *LocalFeed) Subscribe(key models.ConversationKey, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	if f.subs[key] == nil {
		f.subs[key] = map[int]func(){}
	}
	f.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[key], id)
			if len(f.subs[key]) == 0 {
				delete(f.subs, key)
			}
		})
	}, nil
}
