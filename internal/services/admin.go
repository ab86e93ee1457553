package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/dbx"
	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
	"github.com/AnshRaj112/soconnect-backend/pkg/utils"
)

// DeletionResult reports what an administrative deletion removed.
type DeletionResult struct {
	Code            string `json:"code"`
	MessagesDeleted int64  `json:"messages_deleted"`
}

// AdminService performs administrative hard deletes.
type AdminService struct {
	db          *sql.DB
	newUsers    func(dbx.DBTX) repository.UserRepository
	newMessages func(dbx.DBTX) repository.MessageRepository
	sessions    SessionStore
	cache       ConversationCache
	timeout     time.Duration
	logger      logging.Logger
}

func NewAdminService(db *sql.DB, sessions SessionStore, cache ConversationCache, timeout time.Duration, logger logging.Logger) *AdminService {
	if cache == nil {
		cache = noopCache{}
	}
	return &AdminService{
		db: db,
		newUsers: func(q dbx.DBTX) repository.UserRepository {
			return repository.NewPostgresUserRepository(q)
		},
		newMessages: func(q dbx.DBTX) repository.MessageRepository {
			return repository.NewPostgresMessageRepository(q)
		},
		sessions: sessions,
		cache:    cache,
		timeout:  timeout,
		logger:   logger.With("component", "admin"),
	}
}

// DeleteUser removes a user and every message they sent or received as one
// unit: both deletes commit together or neither does.
func (s *AdminService) DeleteUser(ctx context.Context, code string) (*DeletionResult, error) {
	code = utils.NormalizeCode(code)
	if err := utils.ValidateCode(code); err != nil {
		return nil, models.ErrInvalidCode
	}

	var counterparties []string
	res := &DeletionResult{Code: code}

	txCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	err := dbx.WithTx(txCtx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		messages := s.newMessages(tx)
		users := s.newUsers(tx)

		convs, err := messages.Conversations(ctx, code)
		if err != nil {
			return err
		}
		for _, c := range convs {
			counterparties = append(counterparties, c.CounterpartyCode)
		}

		if res.MessagesDeleted, err = messages.DeleteByUser(ctx, code); err != nil {
			return err
		}
		n, err := users.Delete(ctx, code)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.RevokeUser(ctx, code); err != nil {
		s.logger.Warn(ctx, "session revoke after deletion failed", "code", code, "error", err)
	}
	s.cache.Invalidate(ctx, append(counterparties, code)...)

	s.logger.Info(ctx, "✅ user deleted", "code", code, "messages", res.MessagesDeleted)
	return res, nil
}
