package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/model"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var _ model.TokenManager = (*JWT)(nil)

// Claims represents JWT claims. Email is set on access tokens only,
// Type is set to "refresh" on refresh tokens only.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
}

// JWT implements TokenManager backed by symmetric HMAC-SHA256.
type JWT struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWT creates a new JWT token manager with the provided secret key and lifetimes.
// Non-positive lifetimes fall back to the defaults.
func NewJWT(secretKey string, accessTTL, refreshTTL time.Duration) *JWT {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}

	return &JWT{
		secretKey:  []byte(secretKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccessToken creates a short-lived access token carrying subject and email.
func (j *JWT) IssueAccessToken(userID uuid.UUID, email string) (string, error) {
	tokenString, err := j.sign(Claims{
		RegisteredClaims: j.registered(userID, j.accessTTL),
		Email:            email,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// IssueRefreshToken creates a long-lived refresh token carrying subject and the refresh marker.
func (j *JWT) IssueRefreshToken(userID uuid.UUID) (string, error) {
	tokenString, err := j.sign(Claims{
		RegisteredClaims: j.registered(userID, j.refreshTTL),
		Type:             model.TokenTypeRefresh,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, nil
}

// Verify validates signature and expiry and returns the decoded payload.
// Any failure is reported as false.
func (j *JWT) Verify(tokenString string) (model.TokenPayload, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !token.Valid {
		return model.TokenPayload{}, false
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil || subject == uuid.Nil {
		return model.TokenPayload{}, false
	}

	payload := model.TokenPayload{
		Subject:   subject,
		Email:     claims.Email,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}

	return payload, true
}

func (j *JWT) registered(userID uuid.UUID, ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (j *JWT) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
}
