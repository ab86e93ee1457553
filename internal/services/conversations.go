package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
	"github.com/AnshRaj112/soconnect-backend/pkg/utils"
)

// ConversationIndex derives a user's counterparties and last activity from the message log.
type ConversationIndex struct {
	repo    repository.MessageRepository
	cache   ConversationCache
	timeout time.Duration
	retry   ReadRetry
}

func NewConversationIndex(repo repository.MessageRepository, cache ConversationCache, timeout time.Duration) *ConversationIndex {
	if cache == nil {
		cache = noopCache{}
	}
	return &ConversationIndex{repo: repo, cache: cache, timeout: timeout, retry: DefaultReadRetry}
}

// ListConversations returns one entry per counterparty, most recently active first.
// A user with no messages gets an empty, non-nil slice.
func (c *ConversationIndex) ListConversations(ctx context.Context, code string) ([]models.ConversationSummary, error) {
	code = utils.NormalizeCode(code)
	if err := utils.ValidateCode(code); err != nil {
		return nil, models.ErrInvalidCode
	}
	if list, ok := c.cache.Get(ctx, code); ok {
		return list, nil
	}
	version, cacheable := c.cache.Version(ctx, code)

	var list []models.ConversationSummary
	err := readWithRetry(ctx, c.retry, c.timeout, func(ctx context.Context) error {
		var err error
		list, err = c.repo.Conversations(ctx, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	if cacheable {
		c.cache.Set(ctx, code, version, list)
	}
	return list, nil
}
