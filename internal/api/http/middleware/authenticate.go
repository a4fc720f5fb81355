package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// TokenService validates bearer access tokens.
type TokenService interface {
	Authenticate(ctx context.Context, accessToken string) (model.TokenPayload, error)
}

// Authenticate validates bearer tokens and injects the payload into the request context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, contextManager: contextManager, logger: logger}
}

// Handle rejects the request with 401 unless it carries a valid access token.
func (m *Authenticate) Handle(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Authorization token required",
			"success": false,
		})
		return
	}

	payload, err := m.tokenService.Authenticate(c.Request.Context(), token)
	if err != nil {
		m.logger.Debug("Authenticate middleware: token rejected",
			"ip", c.ClientIP(),
			"error", err.Error())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid or expired token",
			"success": false,
		})
		return
	}

	c.Request = c.Request.WithContext(m.contextManager.SetPayloadToContext(c.Request.Context(), payload))
	c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
