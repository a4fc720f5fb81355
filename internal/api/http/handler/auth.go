package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// AuthService defines registration, login and token operations.
type AuthService interface {
	Register(ctx context.Context, creds model.Credentials, ip string) (model.User, error)
	Login(ctx context.Context, creds model.Credentials, ip string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, ip string) (model.TokenPair, error)
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
}

// AttemptRecorder counts authentication outcomes.
type AttemptRecorder interface {
	AuthAttempt(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(string, string) {}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type registerResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type tokenResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

// Auth handles the /api/auth endpoints.
type Auth struct {
	authService    AuthService
	contextManager model.ContextManager
	recorder       AttemptRecorder
	logger         *logger.Logger
}

// NewAuth creates a new Auth handler. recorder may be nil.
func NewAuth(authService AuthService, contextManager model.ContextManager, recorder AttemptRecorder, logger *logger.Logger) *Auth {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Auth{
		authService:    authService,
		contextManager: contextManager,
		recorder:       recorder,
		logger:         logger,
	}
}

// Register creates an account from an email and password.
func (h *Auth) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBody(c, "register", err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), model.Credentials{
		Email:    req.Email,
		Password: req.Password,
	}, c.ClientIP())
	if err != nil {
		h.fail(c, "register", err)
		return
	}

	h.recorder.AuthAttempt("register", "success")

	c.JSON(http.StatusCreated, registerResponse{
		Success: true,
		Message: "User registered successfully",
		User:    userResponse{ID: user.ID.String(), Email: user.Email},
	})
}

// Login exchanges valid credentials for an access and refresh token.
func (h *Auth) Login(c *gin.Context) {
	var req credentialsRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		// A malformed body still counts against the rate limit.
		_, err := h.authService.Login(c.Request.Context(), model.Credentials{}, c.ClientIP())
		if err == nil || errors.Is(err, model.ErrMissingCredentials) {
			h.rejectBody(c, "login", bindErr)
			return
		}
		h.fail(c, "login", err)
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), model.Credentials{
		Email:    req.Email,
		Password: req.Password,
	}, c.ClientIP())
	if err != nil {
		h.fail(c, "login", err)
		return
	}

	h.recorder.AuthAttempt("login", "success")

	c.JSON(http.StatusOK, tokenResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Refresh exchanges a refresh token for a new pair.
func (h *Auth) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rejectBody(c, "refresh", err)
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), strings.TrimSpace(req.RefreshToken), c.ClientIP())
	if err != nil {
		h.fail(c, "refresh", err)
		return
	}

	h.recorder.AuthAttempt("refresh", "success")

	c.JSON(http.StatusOK, tokenResponse{
		Success:      true,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Me returns the account behind the bearer token. Must run after the Authenticate middleware.
func (h *Auth) Me(c *gin.Context) {
	payload, ok := h.contextManager.GetPayloadFromContext(c.Request.Context())
	if !ok {
		abortWithError(c, http.StatusUnauthorized, msgInvalidToken)
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), payload.Subject)
	if err != nil {
		status, message, _ := h.handleError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Auth handler: failed to load current user",
				"user_id", payload.Subject.String(),
				"error", err.Error())
		}
		abortWithError(c, status, message)
		return
	}

	c.JSON(http.StatusOK, meResponse{
		Success: true,
		User:    userResponse{ID: user.ID.String(), Email: user.Email},
	})
}

// Preflight answers OPTIONS requests without an Origin header. Headers are
// set by the CORS middleware.
func (h *Auth) Preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *Auth) rejectBody(c *gin.Context, operation string, err error) {
	h.logger.Debug("Auth handler: invalid request body",
		"operation", operation,
		"ip", c.ClientIP(),
		"error", err.Error())
	h.recorder.AuthAttempt(operation, "invalid_request")
	abortWithError(c, http.StatusBadRequest, msgInvalidBody)
}

func (h *Auth) fail(c *gin.Context, operation string, err error) {
	status, message, outcome := h.handleError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Auth handler: request failed",
			"operation", operation,
			"ip", c.ClientIP(),
			"error", err.Error())
	}
	h.recorder.AuthAttempt(operation, outcome)
	abortWithError(c, status, message)
}
