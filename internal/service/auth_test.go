package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authgate/internal/mocks"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/testutil"
)

type authDeps struct {
	users   *mocks.UserStore
	audits  *mocks.AuditStore
	hasher  *mocks.PasswordHasher
	limiter *mocks.RateLimiter
	tokens  *mocks.TokenManager
}

func newAuth(t *testing.T) (*Auth, authDeps) {
	t.Helper()

	d := authDeps{
		users:   mocks.NewUserStore(t),
		audits:  mocks.NewAuditStore(t),
		hasher:  mocks.NewPasswordHasher(t),
		limiter: mocks.NewRateLimiter(t),
		tokens:  mocks.NewTokenManager(t),
	}
	a := NewAuth(d.users, d.audits, d.hasher, d.limiter, d.tokens, testutil.MakeNoopLogger())
	return a, d
}

func auditOf(eventType model.AuditEventType, userID uuid.UUID, ip string) any {
	return mock.MatchedBy(func(e model.AuditEvent) bool {
		return e.EventType == eventType &&
			e.IPAddress == ip &&
			e.UserID.Valid == (userID != uuid.Nil) &&
			e.UserID.UUID == userID &&
			!e.Timestamp.IsZero()
	})
}

func TestAuth_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		a, d := newAuth(t)
		fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		a.now = func() time.Time { return fixed }

		d.hasher.On("Hash", ctx, "secret123").Return("hash", "salt", nil).Once()
		d.users.On("Create", ctx, mock.MatchedBy(func(u model.User) bool {
			return u.ID != uuid.Nil &&
				u.Email == "a@x.io" &&
				u.PasswordHash == "hash" &&
				u.Salt == "salt" &&
				u.CreatedAt.Equal(fixed)
		})).Return(nil).Once()
		d.audits.On("Insert", mock.Anything, mock.MatchedBy(func(e model.AuditEvent) bool {
			return e.EventType == model.AuditRegistration && e.UserID.Valid && e.IPAddress == "1.2.3.4"
		})).Return(nil).Once()

		user, err := a.Register(ctx, model.Credentials{Email: "  a@x.io ", Password: "secret123"}, "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, "a@x.io", user.Email)
		assert.NotEqual(t, uuid.Nil, user.ID)
	})

	t.Run("missing credentials", func(t *testing.T) {
		tests := []model.Credentials{
			{Email: "", Password: "pw"},
			{Email: "   ", Password: "pw"},
			{Email: "a@x.io", Password: ""},
			{},
		}
		for _, creds := range tests {
			a, _ := newAuth(t)
			_, err := a.Register(ctx, creds, "1.2.3.4")
			assert.ErrorIs(t, err, model.ErrMissingCredentials)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		a, d := newAuth(t)
		d.hasher.On("Hash", ctx, "pw").Return("hash", "salt", nil).Once()
		d.users.On("Create", ctx, mock.Anything).Return(model.ErrAlreadyExists).Once()

		_, err := a.Register(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, "1.2.3.4")
		assert.ErrorIs(t, err, model.ErrEmailTaken)
		d.audits.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		a, d := newAuth(t)
		d.hasher.On("Hash", ctx, "pw").Return("hash", "salt", nil).Once()
		d.users.On("Create", ctx, mock.Anything).Return(errors.New("db down")).Once()

		_, err := a.Register(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, "1.2.3.4")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrEmailTaken)
	})

	t.Run("hash failure", func(t *testing.T) {
		a, d := newAuth(t)
		d.hasher.On("Hash", ctx, "pw").Return("", "", context.Canceled).Once()

		_, err := a.Register(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, "1.2.3.4")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("audit failure does not fail registration", func(t *testing.T) {
		a, d := newAuth(t)
		d.hasher.On("Hash", ctx, "pw").Return("hash", "salt", nil).Once()
		d.users.On("Create", ctx, mock.Anything).Return(nil).Once()
		d.audits.On("Insert", mock.Anything, mock.Anything).Return(errors.New("audit down")).Once()

		_, err := a.Register(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, "1.2.3.4")
		assert.NoError(t, err)
	})
}

func TestAuth_Login(t *testing.T) {
	ctx := context.Background()
	const ip = "203.0.113.9"
	user := model.User{
		ID:           uuid.New(),
		Email:        "a@x.io",
		PasswordHash: "hash",
		Salt:         "salt",
	}

	t.Run("success", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", ctx, "a@x.io").Return(user, nil).Once()
		d.hasher.On("Verify", ctx, "pw", "hash", "salt").Return(true).Once()
		d.tokens.On("IssueAccessToken", user.ID, user.Email).Return("access", nil).Once()
		d.tokens.On("IssueRefreshToken", user.ID).Return("refresh", nil).Once()
		d.audits.On("Insert", mock.Anything, auditOf(model.AuditLoginSuccess, user.ID, ip)).Return(nil).Once()

		pair, err := a.Login(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, ip)
		require.NoError(t, err)
		assert.Equal(t, model.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, pair)
	})

	t.Run("rate limited", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(false, nil).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, ip)
		assert.ErrorIs(t, err, model.ErrRateLimited)
		d.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("limiter failure", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(false, errors.New("redis down")).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, ip)
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrRateLimited)
	})

	t.Run("missing credentials consume an attempt", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(true, nil).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "a@x.io"}, ip)
		assert.ErrorIs(t, err, model.ErrMissingCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", ctx, "ghost@x.io").Return(model.User{}, model.ErrNotFound).Once()
		d.hasher.On("Verify", ctx, "pw", dummyHash, dummySalt).Return(false).Once()
		d.audits.On("Insert", mock.Anything, auditOf(model.AuditLoginFailed, uuid.Nil, ip)).Return(nil).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "ghost@x.io", Password: "pw"}, ip)
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", ctx, "a@x.io").Return(user, nil).Once()
		d.hasher.On("Verify", ctx, "bad", "hash", "salt").Return(false).Once()
		d.audits.On("Insert", mock.Anything, auditOf(model.AuditLoginFailed, user.ID, ip)).Return(nil).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "a@x.io", Password: "bad"}, ip)
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
		d.tokens.AssertNotCalled(t, "IssueAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("cancelled during verify", func(t *testing.T) {
		a, d := newAuth(t)
		cctx, cancel := context.WithCancel(ctx)
		d.limiter.On("Allow", cctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", cctx, "a@x.io").Return(user, nil).Once()
		d.hasher.On("Verify", cctx, "pw", "hash", "salt").
			Run(func(mock.Arguments) { cancel() }).
			Return(false).Once()

		_, err := a.Login(cctx, model.Credentials{Email: "a@x.io", Password: "pw"}, ip)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("cancelled during dummy verify", func(t *testing.T) {
		a, d := newAuth(t)
		cctx, cancel := context.WithCancel(ctx)
		d.limiter.On("Allow", cctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", cctx, "ghost@x.io").Return(model.User{}, model.ErrNotFound).Once()
		d.hasher.On("Verify", cctx, "pw", dummyHash, dummySalt).
			Run(func(mock.Arguments) { cancel() }).
			Return(false).Once()

		_, err := a.Login(cctx, model.Credentials{Email: "ghost@x.io", Password: "pw"}, ip)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, model.ErrInvalidCredentials)
		d.audits.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", ctx, "a@x.io").Return(model.User{}, errors.New("db down")).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, ip)
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("token failure", func(t *testing.T) {
		a, d := newAuth(t)
		d.limiter.On("Allow", ctx, ip).Return(true, nil).Once()
		d.users.On("GetByEmail", ctx, "a@x.io").Return(user, nil).Once()
		d.hasher.On("Verify", ctx, "pw", "hash", "salt").Return(true).Once()
		d.tokens.On("IssueAccessToken", user.ID, user.Email).Return("", errors.New("sign failed")).Once()

		_, err := a.Login(ctx, model.Credentials{Email: "a@x.io", Password: "pw"}, ip)
		require.Error(t, err)
		d.audits.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})
}

func TestAuth_Refresh(t *testing.T) {
	ctx := context.Background()
	const ip = "10.0.0.1"
	user := model.User{ID: uuid.New(), Email: "a@x.io"}

	t.Run("success", func(t *testing.T) {
		a, d := newAuth(t)
		d.tokens.On("Verify", "old-refresh").
			Return(model.TokenPayload{Subject: user.ID, Type: model.TokenTypeRefresh}, true).Once()
		d.users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
		d.tokens.On("IssueAccessToken", user.ID, user.Email).Return("access", nil).Once()
		d.tokens.On("IssueRefreshToken", user.ID).Return("refresh", nil).Once()
		d.audits.On("Insert", mock.Anything, auditOf(model.AuditTokenRefresh, user.ID, ip)).Return(nil).Once()

		pair, err := a.Refresh(ctx, "old-refresh", ip)
		require.NoError(t, err)
		assert.Equal(t, "access", pair.AccessToken)
		assert.Equal(t, "refresh", pair.RefreshToken)
	})

	t.Run("missing token", func(t *testing.T) {
		a, _ := newAuth(t)
		_, err := a.Refresh(ctx, "", ip)
		assert.ErrorIs(t, err, model.ErrMissingToken)
	})

	t.Run("access token rejected", func(t *testing.T) {
		a, d := newAuth(t)
		d.tokens.On("Verify", "access").
			Return(model.TokenPayload{Subject: user.ID, Email: user.Email}, true).Once()

		_, err := a.Refresh(ctx, "access", ip)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("invalid token", func(t *testing.T) {
		a, d := newAuth(t)
		d.tokens.On("Verify", "garbage").Return(model.TokenPayload{}, false).Once()

		_, err := a.Refresh(ctx, "garbage", ip)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("user gone", func(t *testing.T) {
		a, d := newAuth(t)
		d.tokens.On("Verify", "old-refresh").
			Return(model.TokenPayload{Subject: user.ID, Type: model.TokenTypeRefresh}, true).Once()
		d.users.On("GetByID", ctx, user.ID).Return(model.User{}, model.ErrNotFound).Once()

		_, err := a.Refresh(ctx, "old-refresh", ip)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})
}

func TestAuth_GetUser(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	a, d := newAuth(t)
	d.users.On("GetByID", ctx, id).Return(model.User{ID: id, Email: "a@x.io"}, nil).Once()
	user, err := a.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", user.Email)

	a, d = newAuth(t)
	d.users.On("GetByID", ctx, id).Return(model.User{}, model.ErrNotFound).Once()
	_, err = a.GetUser(ctx, id)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	a, d = newAuth(t)
	d.users.On("GetByID", ctx, id).Return(model.User{}, errors.New("db down")).Once()
	_, err = a.GetUser(ctx, id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrInvalidToken)
}
