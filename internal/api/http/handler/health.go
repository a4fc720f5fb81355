package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/authgate/internal/logger"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves the liveness endpoint.
type Health struct {
	service string
	deps    map[string]Pinger
	logger  *logger.Logger
}

// NewHealth creates a Health handler that pings deps on every request.
func NewHealth(service string, deps map[string]Pinger, logger *logger.Logger) *Health {
	return &Health{service: service, deps: deps, logger: logger}
}

// Check reports the names of unreachable dependencies. Ping errors are only logged.
func (h *Health) Check(c *gin.Context) {
	var failed []string
	for name, dep := range h.deps {
		if err := dep.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("Health handler: dependency unreachable",
				"dependency", name,
				"error", err.Error())
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"status":  "degraded",
			"service": h.service,
			"failed":  failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  "ok",
		"service": h.service,
	})
}
