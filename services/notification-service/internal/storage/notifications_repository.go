package storage

import (
	"context"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/notify"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n notify.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, appointment_id, business_id, kind, recipient, subject, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.EventID, n.AppointmentID, n.BusinessID, n.Kind, n.Recipient, n.Subject, n.Status, n.ErrorReason)
	return err
}
