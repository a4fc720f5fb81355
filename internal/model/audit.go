package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEventType enumerates audited actions.
type AuditEventType string

const (
	AuditRegistration AuditEventType = "registration"
	AuditLoginSuccess AuditEventType = "login_success"
	AuditLoginFailed  AuditEventType = "login_failed"
	AuditTokenRefresh AuditEventType = "token_refresh"
)

// AuditStore appends audit events. Events are never read back by the service.
type AuditStore interface {
	Insert(ctx context.Context, event AuditEvent) error
}

// AuditEvent is a single append-only audit entry.
type AuditEvent struct {
	UserID    uuid.NullUUID
	EventType AuditEventType
	IPAddress string
	Timestamp time.Time
}
