package context

import (
	"context"

	"github.com/dtroode/authgate/internal/model"
)

type payloadKey struct{}

// Manager keeps the verified token payload on a request context.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetPayloadToContext returns a copy of ctx carrying payload.
func (m *Manager) SetPayloadToContext(ctx context.Context, payload model.TokenPayload) context.Context {
	return context.WithValue(ctx, payloadKey{}, payload)
}

// GetPayloadFromContext returns the payload set by SetPayloadToContext.
func (m *Manager) GetPayloadFromContext(ctx context.Context) (model.TokenPayload, bool) {
	payload, ok := ctx.Value(payloadKey{}).(model.TokenPayload)
	return payload, ok
}
