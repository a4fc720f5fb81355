package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/authgate/internal/logger"
)

// Logging logs every HTTP request with its status and duration.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// Handle logs method, path, client IP, status and duration.
func (l *Logging) Handle(c *gin.Context) {
	start := time.Now()

	c.Next()

	status := c.Writer.Status()
	args := []any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"ip", c.ClientIP(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	}

	switch {
	case status >= 500:
		l.logger.Error("HTTP request failed", args...)
	case status >= 400:
		l.logger.Warn("HTTP request rejected", args...)
	default:
		l.logger.Info("HTTP request completed", args...)
	}
}
