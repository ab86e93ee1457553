// Package chatsync keeps a rendered conversation consistent with the message
// log by polling. There is no push channel: each tick re-reads the whole
// conversation and compares message id sets with what is already rendered.
package chatsync

import (
	"sort"
	"sync"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// State is the per-conversation dedup state of one open chat view. It is
// either idle or tracking exactly one conversation. Each view owns its own
// State, so several can coexist in one process.
type State struct {
	mu       sync.Mutex
	tracking bool
	key      models.ConversationKey
	known    map[int64]struct{}
	// epoch changes on every open and close; a fetch started under an older
	// epoch is never applied.
	epoch uint64
}

func NewState() *State {
	return &State{}
}

// Open starts tracking key with an empty id set, whatever was tracked before.
func (s *State) Open(key models.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = true
	s.key = key
	s.known = map[int64]struct{}{}
	s.epoch++
}

// Close returns the state to idle. Once Close returns, no in-flight poll can
// apply its result.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = false
	s.key = models.ConversationKey{}
	s.known = nil
	s.epoch++
}

// Current returns the tracked conversation, if any.
func (s *State) Current() (models.ConversationKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.tracking
}

// KnownIDs returns the materialized message ids in ascending order.
func (s *State) KnownIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.known))
	for id := range s.known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *State) snapshot() (models.ConversationKey, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.epoch, s.tracking
}

// resetKnown empties the id set if the state is still on epoch.
func (s *State) resetKnown(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking && s.epoch == epoch {
		s.known = map[int64]struct{}{}
	}
}

func idSet(msgs []models.Message) map[int64]struct{} {
	set := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		set[m.ID] = struct{}{}
	}
	return set
}

func sameIDs(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
