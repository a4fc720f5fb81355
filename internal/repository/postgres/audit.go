package postgres

import (
	"context"
	"fmt"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.AuditStore = (*AuditRepository)(nil)

type AuditRepository struct {
	db Querier
}

func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, event model.AuditEvent) error {
	const query = `
        INSERT INTO audit_logs (user_id, event_type, ip_address, timestamp)
        VALUES ($1, $2, $3, $4)
    `

	if _, err := r.db.ExecContext(ctx, query,
		event.UserID,
		string(event.EventType),
		event.IPAddress,
		event.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
