package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// Auditor writes audit events on a best-effort basis. A failed write never
// fails the request that caused it.
type Auditor struct {
	store  model.AuditStore
	logger *logger.Logger
	now    func() time.Time
}

func NewAuditor(store model.AuditStore, logger *logger.Logger) *Auditor {
	return &Auditor{
		store:  store,
		logger: logger.With("component", "auditor"),
		now:    time.Now,
	}
}

// Record appends one event. userID is uuid.Nil when the user is unknown.
func (a *Auditor) Record(ctx context.Context, eventType model.AuditEventType, userID uuid.UUID, ip string) {
	event := model.AuditEvent{
		UserID:    uuid.NullUUID{UUID: userID, Valid: userID != uuid.Nil},
		EventType: eventType,
		IPAddress: ip,
		Timestamp: a.now().UTC(),
	}

	// Audit writes are not bound to the request deadline.
	if err := a.store.Insert(context.WithoutCancel(ctx), event); err != nil {
		a.logger.Warn("Auditor: failed to write audit event",
			"event_type", string(eventType),
			"ip", ip,
			"error", err.Error())
	}
}
