package model

import (
	"context"
)

// ContextManager stores the authenticated token payload on a request context.
type ContextManager interface {
	SetPayloadToContext(ctx context.Context, payload TokenPayload) context.Context
	GetPayloadFromContext(ctx context.Context) (TokenPayload, bool)
}
