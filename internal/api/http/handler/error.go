package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/authgate/internal/model"
)

const (
	msgMissingCredentials = "Email and password required"
	msgEmailTaken         = "User with this email already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgRateLimited        = "Too many login attempts, please try again later"
	msgInvalidToken       = "Invalid or expired token"
	msgMissingToken       = "Token required"
	msgInvalidBody        = "Invalid request body"
	msgInternal           = "Internal server error"
	msgNotFound           = "Not found"
	msgMethodNotAllowed   = "Method not allowed"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

// handleError maps an error to its HTTP status, client message and metrics outcome.
// Anything unrecognised is reported as an internal error without details.
func (h *Auth) handleError(err error) (int, string, string) {
	switch {
	case errors.Is(err, model.ErrMissingCredentials):
		return http.StatusBadRequest, msgMissingCredentials, "invalid_request"
	case errors.Is(err, model.ErrMissingToken):
		return http.StatusBadRequest, msgMissingToken, "invalid_request"
	case errors.Is(err, model.ErrEmailTaken):
		return http.StatusConflict, msgEmailTaken, "conflict"
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials, "invalid_credentials"
	case errors.Is(err, model.ErrInvalidToken):
		return http.StatusUnauthorized, msgInvalidToken, "invalid_token"
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited, "rate_limited"
	default:
		return http.StatusInternalServerError, msgInternal, "error"
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Success: false})
}

// NotFound answers requests for unknown routes.
func NotFound(c *gin.Context) {
	abortWithError(c, http.StatusNotFound, msgNotFound)
}

// MethodNotAllowed answers requests for a known route with the wrong method.
func MethodNotAllowed(c *gin.Context) {
	abortWithError(c, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}
