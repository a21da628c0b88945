package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Tx is the set of writes that must commit together with a booking or status change.
type Tx interface {
	AppointmentsOn(ctx context.Context, businessID string, date availability.Date) ([]availability.Appointment, error)
	UpsertClient(ctx context.Context, c model.Client) (string, error)
	InsertAppointment(ctx context.Context, appt model.Appointment) (string, error)
	AppointmentForUpdate(ctx context.Context, businessID, appointmentID string) (model.Appointment, error)
	UpdateAppointmentState(ctx context.Context, businessID, appointmentID string, status availability.Status, isRead bool) error
	AdjustUnread(ctx context.Context, businessID string, delta int) error
	LockIdempotencyKey(ctx context.Context, businessID, key string) (IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, businessID, key, appointmentID string, statusCode int, response []byte) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

type IdempotencyRecord struct {
	BusinessID      string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// Completed reports whether an earlier request with the same key already produced a response.
func (r IdempotencyRecord) Completed() bool { return r.StatusCode > 0 }

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *pgTx) lockDay(ctx context.Context, businessID string, date availability.Date) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, businessID+"|"+date.String())
	return err
}

func (t *pgTx) AppointmentsOn(ctx context.Context, businessID string, date availability.Date) ([]availability.Appointment, error) {
	return appointmentsOn(ctx, t.tx, businessID, date)
}

// UpsertClient finds the client by (business, email) or creates it, refreshing name and phone.
func (t *pgTx) UpsertClient(ctx context.Context, c model.Client) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		INSERT INTO clients (business_id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_id, email) DO UPDATE
		SET name = EXCLUDED.name,
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE clients.phone END
		RETURNING id::text
	`, c.BusinessID, c.Name, c.Email, c.Phone).Scan(&id)
	return id, err
}

func (t *pgTx) InsertAppointment(ctx context.Context, appt model.Appointment) (string, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, business_id, service_id, client_id, appointment_date, start_minute, duration_minutes, status, notes, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, appt.ID, appt.BusinessID, appt.ServiceID, appt.ClientID, appt.Date.Time(), int16(appt.Start),
		appt.DurationMinutes, string(appt.Status), appt.Notes, appt.IsRead)
	if err != nil {
		return "", err
	}
	return appt.ID, nil
}

func (t *pgTx) AppointmentForUpdate(ctx context.Context, businessID, appointmentID string) (model.Appointment, error) {
	appt, err := scanAppointment(t.tx.QueryRow(ctx, appointmentSelect+`
		WHERE a.id = $1 AND a.business_id = $2
		FOR UPDATE OF a
	`, appointmentID, businessID))
	if err != nil {
		return model.Appointment{}, notFound(err, "appointment")
	}
	return appt, nil
}

func (t *pgTx) UpdateAppointmentState(ctx context.Context, businessID, appointmentID string, status availability.Status, isRead bool) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, is_read = $4, updated_at = now()
		WHERE id = $1 AND business_id = $2
	`, appointmentID, businessID, string(status), isRead)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustUnread moves the business's unread counter by delta without letting it go negative.
func (t *pgTx) AdjustUnread(ctx context.Context, businessID string, delta int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE businesses
		SET unread_appointments = GREATEST(unread_appointments + $2, 0)
		WHERE id = $1
	`, businessID, delta)
	return err
}

func (t *pgTx) LockIdempotencyKey(ctx context.Context, businessID, key string) (IdempotencyRecord, bool, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, businessID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = t.selectIdempotencyForUpdate(ctx, businessID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, businessID, key, appointmentID string, statusCode int, response []byte) error {
	var apptID *string
	if appointmentID != "" {
		apptID = &appointmentID
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, apptID, statusCode, response)
	return err
}

func (t *pgTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (t *pgTx) selectIdempotencyForUpdate(ctx context.Context, businessID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := t.tx.QueryRow(ctx, `
		SELECT business_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&rec.BusinessID, &rec.IdempotencyKey, &rec.AppointmentID, &rec.StatusCode, &responseText)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
