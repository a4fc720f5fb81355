package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// TokenService issues token pairs and validates presented tokens.
// Tokens are stateless: there is no server-side revocation list.
type TokenService struct {
	manager   model.TokenManager
	userStore model.UserStore
	logger    *logger.Logger
}

func NewTokenService(manager model.TokenManager, userStore model.UserStore, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, userStore: userStore, logger: logger}
}

// Issue signs a fresh access and refresh token for the user.
func (s *TokenService) Issue(user model.User) (model.TokenPair, error) {
	access, err := s.manager.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := s.manager.IssueRefreshToken(user.ID)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The user is
// re-read so deleted accounts cannot keep refreshing.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (model.User, model.TokenPair, error) {
	payload, ok := s.manager.Verify(refreshToken)
	if !ok || !payload.IsRefresh() {
		return model.User{}, model.TokenPair{}, model.ErrInvalidToken
	}

	user, err := s.userStore.GetByID(ctx, payload.Subject)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("Token service: refresh for unknown user",
			"user_id", payload.Subject.String())
		return model.User{}, model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.User{}, model.TokenPair{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	pair, err := s.Issue(user)
	if err != nil {
		return model.User{}, model.TokenPair{}, err
	}

	return user, pair, nil
}

// Authenticate validates an access token presented as a bearer credential.
func (s *TokenService) Authenticate(_ context.Context, accessToken string) (model.TokenPayload, error) {
	payload, ok := s.manager.Verify(accessToken)
	if !ok || payload.IsRefresh() || payload.Subject == uuid.Nil {
		return model.TokenPayload{}, model.ErrInvalidToken
	}
	return payload, nil
}
