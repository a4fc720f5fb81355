package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenTypeRefresh marks refresh tokens. Access tokens carry no type.
const TokenTypeRefresh = "refresh"

// TokenManager issues and verifies signed bearer tokens.
type TokenManager interface {
	IssueAccessToken(userID uuid.UUID, email string) (string, error)
	IssueRefreshToken(userID uuid.UUID) (string, error)
	Verify(token string) (TokenPayload, bool)
}

// TokenPayload is the decoded content of a verified token.
type TokenPayload struct {
	Subject   uuid.UUID
	Email     string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsRefresh reports whether the payload belongs to a refresh token.
func (p TokenPayload) IsRefresh() bool {
	return p.Type == TokenTypeRefresh
}

// TokenPair is returned on successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
