package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// Verified against on unknown emails so both failure paths pay for one derivation.
const (
	dummyHash = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	dummySalt = "AAAAAAAAAAAAAAAAAAAAAA=="
)

type Auth struct {
	userStore    model.UserStore
	hasher       model.PasswordHasher
	limiter      model.RateLimiter
	auditor      *Auditor
	tokenService *TokenService
	logger       *logger.Logger
	now          func() time.Time
}

func NewAuth(
	userStore model.UserStore,
	auditStore model.AuditStore,
	hasher model.PasswordHasher,
	limiter model.RateLimiter,
	tokenManager model.TokenManager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		hasher:       hasher,
		limiter:      limiter,
		auditor:      NewAuditor(auditStore, logger),
		tokenService: NewTokenService(tokenManager, userStore, logger),
		logger:       logger,
		now:          time.Now,
	}
}

// Tokens returns the token service used for bearer authentication.
func (a *Auth) Tokens() *TokenService {
	return a.tokenService
}

func (a *Auth) Register(ctx context.Context, creds model.Credentials, ip string) (model.User, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return model.User{}, model.ErrMissingCredentials
	}

	a.logger.Debug("Auth service: starting user registration",
		"email", email,
		"ip", ip)

	hash, salt, err := a.hasher.Hash(ctx, creds.Password)
	if err != nil {
		a.logger.Error("Auth service: failed to hash password",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    a.now().UTC(),
	}

	err = a.userStore.Create(ctx, user)
	if errors.Is(err, model.ErrAlreadyExists) {
		a.logger.Info("Auth service: user already exists",
			"email", email)
		return model.User{}, model.ErrEmailTaken
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.auditor.Record(ctx, model.AuditRegistration, user.ID, ip)

	a.logger.Info("Auth service: user registered",
		"email", email,
		"user_id", user.ID.String())

	return user, nil
}

func (a *Auth) Login(ctx context.Context, creds model.Credentials, ip string) (model.TokenPair, error) {
	allowed, err := a.limiter.Allow(ctx, ip)
	if err != nil {
		a.logger.Error("Auth service: rate limiter failed",
			"ip", ip,
			"error", err.Error())
		return model.TokenPair{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		a.logger.Warn("Auth service: login rate limited",
			"ip", ip)
		return model.TokenPair{}, model.ErrRateLimited
	}

	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return model.TokenPair{}, model.ErrMissingCredentials
	}

	a.logger.Debug("Auth service: starting user login",
		"email", email,
		"ip", ip)

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.hasher.Verify(ctx, creds.Password, dummyHash, dummySalt)
		if err := ctx.Err(); err != nil {
			return model.TokenPair{}, fmt.Errorf("failed to verify password: %w", err)
		}
		a.auditor.Record(ctx, model.AuditLoginFailed, uuid.Nil, ip)
		a.logger.Info("Auth service: login failed",
			"email", email,
			"ip", ip,
			"reason", "unknown email")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.TokenPair{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if !a.hasher.Verify(ctx, creds.Password, user.PasswordHash, user.Salt) {
		if err := ctx.Err(); err != nil {
			return model.TokenPair{}, fmt.Errorf("failed to verify password: %w", err)
		}
		a.auditor.Record(ctx, model.AuditLoginFailed, user.ID, ip)
		a.logger.Info("Auth service: login failed",
			"email", email,
			"ip", ip,
			"reason", "password mismatch")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	pair, err := a.tokenService.Issue(user)
	if err != nil {
		a.logger.Error("Auth service: failed to issue tokens",
			"user_id", user.ID.String(),
			"error", err.Error())
		return model.TokenPair{}, err
	}

	a.auditor.Record(ctx, model.AuditLoginSuccess, user.ID, ip)

	a.logger.Info("Auth service: login succeeded",
		"user_id", user.ID.String(),
		"ip", ip)

	return pair, nil
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string, ip string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, model.ErrMissingToken
	}

	user, pair, err := a.tokenService.Refresh(ctx, refreshToken)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidToken) {
			a.logger.Error("Auth service: token refresh failed",
				"ip", ip,
				"error", err.Error())
		}
		return model.TokenPair{}, err
	}

	a.auditor.Record(ctx, model.AuditTokenRefresh, user.ID, ip)

	a.logger.Info("Auth service: token refreshed",
		"user_id", user.ID.String(),
		"ip", ip)

	return pair, nil
}

func (a *Auth) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := a.userStore.GetByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}
