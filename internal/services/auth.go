package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
	"github.com/AnshRaj112/soconnect-backend/pkg/utils"
)

const maxPasscodeLength = 128

// Authority registers users, issues session tokens and resolves them back to user codes.
type Authority struct {
	users    repository.UserRepository
	sessions SessionStore
	ttl      time.Duration
	timeout  time.Duration
	logger   logging.Logger

	// dummyHash is verified against when the code is unknown so both
	// failure paths cost the same.
	dummyHash string
}

func NewAuthority(users repository.UserRepository, sessions SessionStore, ttl, timeout time.Duration, logger logging.Logger) (*Authority, error) {
	dummy, err := utils.HashPasscode("soconnect-dummy-passcode")
	if err != nil {
		return nil, err
	}
	return &Authority{
		users:     users,
		sessions:  sessions,
		ttl:       ttl,
		timeout:   timeout,
		logger:    logger.With("component", "auth"),
		dummyHash: dummy,
	}, nil
}

// Register creates a user with a caller-chosen five-digit code.
func (a *Authority) Register(ctx context.Context, name, code, passcode string) (*models.User, error) {
	code = utils.NormalizeCode(code)
	name = strings.TrimSpace(name)
	if err := utils.ValidateCode(code); err != nil {
		return nil, models.ErrInvalidCode
	}
	if err := utils.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, err)
	}
	if passcode == "" || len(passcode) > maxPasscodeLength {
		return nil, fmt.Errorf("%w: passcode is required", models.ErrInvalidInput)
	}

	hash, err := utils.HashPasscode(passcode)
	if err != nil {
		return nil, fmt.Errorf("hash passcode: %w", err)
	}

	user := &models.User{Code: code, Name: name, PasscodeHash: hash}
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "✅ user registered", "code", code)
	return user, nil
}

// Login checks the passcode and issues a fresh token, replacing any earlier one.
func (a *Authority) Login(ctx context.Context, code, passcode string) (string, *models.User, error) {
	code = utils.NormalizeCode(code)
	if utils.ValidateCode(code) != nil || passcode == "" {
		return "", nil, models.ErrInvalidCredentials
	}

	lookupCtx, cancel := withTimeout(ctx, a.timeout)
	user, err := a.users.GetByCode(lookupCtx, code)
	cancel()
	if errors.Is(err, models.ErrNotFound) {
		_, _ = utils.VerifyPasscode(passcode, a.dummyHash)
		return "", nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	ok, err := utils.VerifyPasscode(passcode, user.PasscodeHash)
	if err != nil {
		a.logger.Error(ctx, "stored passcode hash unreadable", "code", code, "error", err)
		return "", nil, models.ErrInvalidCredentials
	}
	if !ok {
		return "", nil, models.ErrInvalidCredentials
	}

	token, err := a.sessions.Create(ctx, code, a.ttl)
	if err != nil {
		return "", nil, err
	}
	a.logger.Info(ctx, "✅ session issued", "code", code)
	return token, user, nil
}

// Authorize resolves a token to the user code it was issued for.
func (a *Authority) Authorize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", models.ErrUnauthenticated
	}
	return a.sessions.Lookup(ctx, token)
}

// Logout revokes the token. It is best effort: a store failure is logged, never returned.
func (a *Authority) Logout(ctx context.Context, token string) {
	if err := a.sessions.Revoke(ctx, token); err != nil {
		a.logger.Warn(ctx, "session revoke failed", "error", err)
	}
}

// Profile returns the registered user behind code.
func (a *Authority) Profile(ctx context.Context, code string) (*models.User, error) {
	var user *models.User
	err := readWithRetry(ctx, DefaultReadRetry, a.timeout, func(ctx context.Context) error {
		var err error
		user, err = a.users.GetByCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
