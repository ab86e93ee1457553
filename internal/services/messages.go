package services

import (
	"context"
	"strings"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/metrics"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
	"github.com/AnshRaj112/soconnect-backend/pkg/utils"
)

// ChangeNotifier is told about every successful append, so live sync sessions
// can poll ahead of their next tick. Delivery is best effort.
type ChangeNotifier interface {
	ConversationChanged(ctx context.Context, key models.ConversationKey)
}

// MessageLog is the append-only store of messages between two user codes.
type MessageLog struct {
	repo     repository.MessageRepository
	cache    ConversationCache
	notifier ChangeNotifier
	timeout  time.Duration
	retry    ReadRetry
	logger   logging.Logger
}

type MessageLogOption func(*MessageLog)

// WithConversationCache invalidates cache for both participants on every append.
func WithConversationCache(cache ConversationCache) MessageLogOption {
	return func(l *MessageLog) { l.cache = cache }
}

func WithChangeNotifier(n ChangeNotifier) MessageLogOption {
	return func(l *MessageLog) { l.notifier = n }
}

func WithReadRetry(r ReadRetry) MessageLogOption {
	return func(l *MessageLog) { l.retry = r }
}

func NewMessageLog(repo repository.MessageRepository, timeout time.Duration, logger logging.Logger, opts ...MessageLogOption) *MessageLog {
	l := &MessageLog{
		repo:    repo,
		cache:   noopCache{},
		timeout: timeout,
		retry:   DefaultReadRetry,
		logger:  logger.With("component", "message_log"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidateParticipants checks both codes and that they differ.
func ValidateParticipants(from, to string) error {
	if utils.ValidateCode(from) != nil || utils.ValidateCode(to) != nil {
		return models.ErrInvalidCode
	}
	if from == to {
		return models.ErrSameParticipant
	}
	return nil
}

// Append stores a message and returns it with its id and timestamp assigned.
// It is never retried: a blind retry could store the message twice.
func (l *MessageLog) Append(ctx context.Context, from, to string, text *string, att *models.Attachment) (*models.Message, error) {
	from, to = utils.NormalizeCode(from), utils.NormalizeCode(to)
	if err := ValidateParticipants(from, to); err != nil {
		return nil, err
	}
	if text != nil && strings.TrimSpace(*text) == "" {
		text = nil
	}
	msg := &models.Message{From: from, To: to, Text: text, Attachment: att}
	if !msg.HasContent() {
		return nil, models.ErrEmptyMessage
	}

	callCtx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.repo.Insert(callCtx, msg); err != nil {
		if models.KindOf(err) == models.KindTransient {
			l.logger.Warn(ctx, "append failed", "from", from, "to", to, "error", err)
		}
		return nil, err
	}

	kind := "text"
	if att != nil {
		kind = "attachment"
	}
	metrics.MessagesAppended.WithLabelValues(kind).Inc()

	l.cache.Invalidate(ctx, from, to)
	if l.notifier != nil {
		l.notifier.ConversationChanged(ctx, models.NewConversationKey(from, to))
	}
	return msg, nil
}

// FetchConversation returns every message between a and b, in either direction,
// ascending by timestamp then id. A non-zero page narrows it to the newest
// page.Limit messages older than page.BeforeID, still ascending.
func (l *MessageLog) FetchConversation(ctx context.Context, a, b string, page repository.Page) ([]models.Message, error) {
	a, b = utils.NormalizeCode(a), utils.NormalizeCode(b)
	if err := ValidateParticipants(a, b); err != nil {
		return nil, err
	}
	key := models.NewConversationKey(a, b)

	var msgs []models.Message
	err := readWithRetry(ctx, l.retry, l.timeout, func(ctx context.Context) error {
		var err error
		msgs, err = l.repo.ListConversation(ctx, key.A, key.B, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	models.SortMessages(msgs)
	return msgs, nil
}
