package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

const businessColumns = `id::text, name, slug, email, phone, address, unread_appointments`

func (r *Repository) BusinessBySlug(ctx context.Context, slug string) (model.Business, error) {
	return scanBusiness(r.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE slug = $1`, slug))
}

func (r *Repository) BusinessByID(ctx context.Context, id string) (model.Business, error) {
	return scanBusiness(r.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
}

func scanBusiness(row pgx.Row) (model.Business, error) {
	var b model.Business
	err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Email, &b.Phone, &b.Address, &b.UnreadAppointments)
	if err != nil {
		return model.Business{}, notFound(err, "business")
	}
	return b, nil
}

const serviceColumns = `id::text, business_id::text, name, description, duration_minutes, price_cents, is_active`

func (r *Repository) GetService(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE business_id = $1 AND id = $2`,
		businessID, serviceID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.Description, &s.DurationMinutes, &s.PriceCents, &s.IsActive)
	if err != nil {
		return model.Service{}, notFound(err, "service")
	}
	return s, nil
}

func (r *Repository) ListActiveServices(ctx context.Context, businessID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE business_id = $1 AND is_active
		ORDER BY name ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Service, error) {
		var s model.Service
		err := row.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Description, &s.DurationMinutes, &s.PriceCents, &s.IsActive)
		return s, err
	})
}

func (r *Repository) ListBusinessHours(ctx context.Context, businessID string) ([]availability.DayHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_open, open_minute, close_minute
		FROM business_hours
		WHERE business_id = $1
		ORDER BY weekday ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (availability.DayHours, error) {
		var (
			h                        availability.DayHours
			weekday, open, closeMins int16
		)
		if err := row.Scan(&weekday, &h.IsOpen, &open, &closeMins); err != nil {
			return h, err
		}
		h.Weekday = availability.Weekday(weekday)
		h.Open = availability.Clock(open)
		h.Close = availability.Clock(closeMins)
		return h, nil
	})
}

// UpsertBusinessHours replaces the given weekdays in one transaction; other weekdays are left alone.
func (r *Repository) UpsertBusinessHours(ctx context.Context, businessID string, hours []availability.DayHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, h := range hours {
		batch.Queue(`
			INSERT INTO business_hours (business_id, weekday, is_open, open_minute, close_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (business_id, weekday) DO UPDATE
			SET is_open = EXCLUDED.is_open,
				open_minute = EXCLUDED.open_minute,
				close_minute = EXCLUDED.close_minute,
				updated_at = now()
		`, businessID, int16(h.Weekday), h.IsOpen, int16(h.Open), int16(h.Close))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert business hours: %w", err)
	}
	return tx.Commit(ctx)
}

// ListAppointmentsOn is the snapshot read used to render slots. Cancelled rows are included;
// the engine decides whether they block.
func (r *Repository) ListAppointmentsOn(ctx context.Context, businessID string, date availability.Date) ([]availability.Appointment, error) {
	return appointmentsOn(ctx, r.pool, businessID, date)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func appointmentsOn(ctx context.Context, q querier, businessID string, date availability.Date) ([]availability.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT start_minute, duration_minutes, status
		FROM appointments
		WHERE business_id = $1 AND appointment_date = $2
		ORDER BY start_minute ASC
	`, businessID, date.Time())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (availability.Appointment, error) {
		var (
			a      availability.Appointment
			start  int16
			status string
		)
		err := row.Scan(&start, &a.DurationMinutes, &status)
		if err != nil {
			return a, err
		}
		a.Date = date
		a.Start = availability.Clock(start)
		a.Status, err = availability.ParseStatus(status)
		return a, err
	})
}

const appointmentSelect = `
	SELECT a.id::text, a.business_id::text, a.service_id::text, s.name, a.client_id::text, c.name, c.email,
		a.appointment_date, a.start_minute, a.duration_minutes, a.status, a.notes, a.is_read, a.created_at
	FROM appointments a
	JOIN services s ON s.id = a.service_id
	JOIN clients c ON c.id = a.client_id
`

// ListAppointments returns the business's appointments, optionally limited to one date.
func (r *Repository) ListAppointments(ctx context.Context, businessID string, date *availability.Date) ([]model.Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if date != nil {
		rows, err = r.pool.Query(ctx, appointmentSelect+`
			WHERE a.business_id = $1 AND a.appointment_date = $2
			ORDER BY a.start_minute ASC
		`, businessID, date.Time())
	} else {
		rows, err = r.pool.Query(ctx, appointmentSelect+`
			WHERE a.business_id = $1
			ORDER BY a.appointment_date DESC, a.start_minute DESC
			LIMIT 200
		`, businessID)
	}
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
}

// ListUnreadAppointments feeds the owner's notification list, newest first.
func (r *Repository) ListUnreadAppointments(ctx context.Context, businessID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE a.business_id = $1 AND NOT a.is_read
		ORDER BY a.created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		date   time.Time
		start  int16
		status string
	)
	err := row.Scan(&a.ID, &a.BusinessID, &a.ServiceID, &a.ServiceName, &a.ClientID, &a.ClientName, &a.ClientEmail,
		&date, &start, &a.DurationMinutes, &status, &a.Notes, &a.IsRead, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = availability.DateOf(date)
	a.Start = availability.Clock(start)
	if a.Status, err = availability.ParseStatus(status); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// InTx runs fn in a transaction, committing when it returns nil.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	return r.inTx(ctx, func(tx *pgTx) error { return fn(tx) })
}

// InBookingLock serialises writers for one business and date with a transaction-scoped
// advisory lock, so the re-read inside fn sees every committed booking for that day.
func (r *Repository) InBookingLock(ctx context.Context, businessID string, date availability.Date, fn func(Tx) error) error {
	return r.inTx(ctx, func(tx *pgTx) error {
		if err := tx.lockDay(ctx, businessID, date); err != nil {
			return fmt.Errorf("acquire booking lock: %w", err)
		}
		return fn(tx)
	})
}

func (r *Repository) inTx(ctx context.Context, fn func(*pgTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, outbox: r.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
