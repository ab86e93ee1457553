// Package repotest provides in-memory repositories with the same observable
// behavior as the Postgres ones, for use in tests of higher layers.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
)

// Store holds users and messages. Users() and Messages() share it.
type Store struct {
	mu       sync.Mutex
	users    map[string]models.User
	messages []models.Message
	nextID   int64

	// Now supplies message timestamps; defaults to time.Now.
	Now func() time.Time
	// FailNext, when set, is returned (and cleared) by the next repository call.
	FailNext error
}

func NewStore() *Store {
	return &Store{users: map[string]models.User{}, Now: time.Now}
}

func (s *Store) Users() repository.UserRepository       { return (*users)(s) }
func (s *Store) Messages() repository.MessageRepository { return (*messages)(s) }

// MessageCount returns the number of stored messages.
func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

type users Store

func (u *users) Create(ctx context.Context, user *models.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.users[user.Code]; ok {
		return models.ErrCodeAlreadyRegistered
	}
	user.CreatedAt = s.Now().UTC()
	s.users[user.Code] = *user
	return nil
}

func (u *users) GetByCode(ctx context.Context, code string) (*models.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	user, ok := s.users[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &user, nil
}

func (u *users) Delete(ctx context.Context, code string) (int64, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	if _, ok := s.users[code]; !ok {
		return 0, nil
	}
	delete(s.users, code)
	return 1, nil
}

type messages Store

func (m *messages) Insert(ctx context.Context, msg *models.Message) error {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.users[msg.From]; !ok {
		return models.ErrUnknownRecipient
	}
	if _, ok := s.users[msg.To]; !ok {
		return models.ErrUnknownRecipient
	}
	s.nextID++
	msg.ID = s.nextID
	msg.Timestamp = s.Now().UTC()
	s.messages = append(s.messages, *msg)
	return nil
}

func (m *messages) ListConversation(ctx context.Context, userA, userB string, page repository.Page) ([]models.Message, error) {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	out := []models.Message{}
	for _, msg := range s.messages {
		if (msg.From == userA && msg.To == userB) || (msg.From == userB && msg.To == userA) {
			if page.BeforeID > 0 && msg.ID >= page.BeforeID {
				continue
			}
			out = append(out, msg)
		}
	}
	models.SortMessages(out)
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[len(out)-page.Limit:]
	}
	return out, nil
}

func (m *messages) Conversations(ctx context.Context, code string) ([]models.ConversationSummary, error) {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	latest := map[string]time.Time{}
	for _, msg := range s.messages {
		var other string
		switch code {
		case msg.From:
			other = msg.To
		case msg.To:
			other = msg.From
		default:
			continue
		}
		if ts, ok := latest[other]; !ok || msg.Timestamp.After(ts) {
			latest[other] = msg.Timestamp
		}
	}
	out := make([]models.ConversationSummary, 0, len(latest))
	for other, ts := range latest {
		out = append(out, models.ConversationSummary{CounterpartyCode: other, LastActivityAt: ts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].CounterpartyCode < out[j].CounterpartyCode
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (m *messages) DeleteByUser(ctx context.Context, code string) (int64, error) {
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	kept := s.messages[:0]
	var n int64
	for _, msg := range s.messages {
		if msg.From == code || msg.To == code {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	s.messages = kept
	return n, nil
}
