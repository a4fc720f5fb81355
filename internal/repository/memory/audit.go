package memory

import (
	"context"
	"sync"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.AuditStore = (*AuditRepository)(nil)

// AuditRepository appends audit events to a slice.
type AuditRepository struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Insert(_ context.Context, event model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far, oldest first.
func (r *AuditRepository) Events() []model.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}
