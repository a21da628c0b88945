package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type BookRequest struct {
	Slug           string
	ServiceID      string
	Date           availability.Date
	Start          availability.Clock
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Notes          string
	IdempotencyKey string
}

// Confirmation is returned to the customer and replayed for repeated idempotency keys.
type Confirmation struct {
	AppointmentID   string              `json:"appointment_id"`
	BusinessID      string              `json:"business_id"`
	ServiceID       string              `json:"service_id"`
	ServiceName     string              `json:"service_name"`
	ClientName      string              `json:"client_name"`
	ClientEmail     string              `json:"client_email"`
	Date            availability.Date   `json:"date"`
	Start           availability.Clock  `json:"start"`
	End             availability.Clock  `json:"end"`
	DurationMinutes int                 `json:"duration_minutes"`
	Status          availability.Status `json:"status"`
}

type bookedEvent struct {
	Confirmation
	ClientID    string `json:"client_id"`
	ClientPhone string `json:"client_phone,omitempty"`
}

func (r *BookRequest) normalize() error {
	r.Slug = strings.TrimSpace(r.Slug)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ClientPhone = strings.TrimSpace(r.ClientPhone)
	r.Notes = strings.TrimSpace(r.Notes)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)

	switch {
	case r.Slug == "" || r.ServiceID == "":
		return fmt.Errorf("%w: slug and service_id are required", ErrInvalidInput)
	case r.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	case r.ClientName == "":
		return fmt.Errorf("%w: client name is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(r.ClientEmail))
	if err != nil {
		return fmt.Errorf("%w: invalid client email", ErrInvalidInput)
	}
	r.ClientEmail = strings.ToLower(addr.Address)
	return nil
}

// Book validates the request against fresh state and creates a pending appointment.
// The second return value is true when the response was replayed from an earlier
// request with the same idempotency key. A completed key replays even after the
// date has left the booking window.
func (s *Service) Book(ctx context.Context, req BookRequest) (Confirmation, bool, error) {
	if err := req.normalize(); err != nil {
		return Confirmation{}, false, err
	}
	b, svc, err := s.bookable(ctx, req.Slug, req.ServiceID)
	if err != nil {
		return Confirmation{}, false, err
	}
	week, err := s.weekHours(ctx, b.ID)
	if err != nil {
		return Confirmation{}, false, err
	}
	var (
		conf     Confirmation
		replayed bool
		outcome  error
	)
	err = s.store.InBookingLock(ctx, b.ID, req.Date, func(tx storage.Tx) error {
		if req.IdempotencyKey != "" {
			rec, exists, err := tx.LockIdempotencyKey(ctx, b.ID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if exists && rec.Completed() {
				replayed = true
				conf, outcome = replay(rec)
				return nil
			}
		}
		// Returning the error rolls back a freshly locked key.
		if e := s.policy.Check(s.today(), req.Date, week); !e.Eligible {
			return fmt.Errorf("%w: %s", ErrDateUnavailable, e.Reason)
		}

		existing, err := tx.AppointmentsOn(ctx, b.ID, req.Date)
		if err != nil {
			return fmt.Errorf("reload appointments: %w", err)
		}
		ok, err := availability.IsAvailable(s.request(req.Date, week, svc, existing), req.Start)
		if err != nil {
			return err
		}
		if !ok {
			outcome = ErrSlotTaken
			return s.finalizeFailure(ctx, tx, b.ID, req.IdempotencyKey, http.StatusConflict, ErrSlotTaken)
		}

		clientID, err := tx.UpsertClient(ctx, model.Client{
			BusinessID: b.ID,
			Name:       req.ClientName,
			Email:      req.ClientEmail,
			Phone:      req.ClientPhone,
		})
		if err != nil {
			return fmt.Errorf("upsert client: %w", err)
		}

		appt := model.Appointment{
			ID:              uuid.NewString(),
			BusinessID:      b.ID,
			ServiceID:       svc.ID,
			ClientID:        clientID,
			Date:            req.Date,
			Start:           req.Start,
			DurationMinutes: svc.DurationMinutes,
			Status:          availability.StatusPending,
			Notes:           req.Notes,
		}
		if _, err := tx.InsertAppointment(ctx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		if err := tx.AdjustUnread(ctx, b.ID, 1); err != nil {
			return fmt.Errorf("bump unread counter: %w", err)
		}

		conf = Confirmation{
			AppointmentID:   appt.ID,
			BusinessID:      b.ID,
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			ClientName:      req.ClientName,
			ClientEmail:     req.ClientEmail,
			Date:            appt.Date,
			Start:           appt.Start,
			End:             appt.Start.Add(appt.DurationMinutes),
			DurationMinutes: appt.DurationMinutes,
			Status:          appt.Status,
		}
		evt, err := outbox.NewEvent("appointment", appt.ID, EventAppointmentBooked, bookedEvent{
			Confirmation: conf,
			ClientID:     clientID,
			ClientPhone:  req.ClientPhone,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}

		if req.IdempotencyKey != "" {
			body, err := json.Marshal(conf)
			if err != nil {
				return err
			}
			if err := tx.FinalizeIdempotency(ctx, b.ID, req.IdempotencyKey, appt.ID, http.StatusCreated, body); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if storage.IsConflict(err) {
			return Confirmation{}, false, ErrSlotTaken
		}
		return Confirmation{}, false, err
	}
	if outcome != nil {
		return Confirmation{}, replayed, outcome
	}
	if !replayed {
		s.logger.Info("appointment booked",
			"appointment_id", conf.AppointmentID,
			"business_id", conf.BusinessID,
			"date", conf.Date.String(),
			"start", conf.Start.String(),
		)
	}
	return conf, replayed, nil
}

type failureBody struct {
	Error string `json:"error"`
}

func (s *Service) finalizeFailure(ctx context.Context, tx storage.Tx, businessID, key string, status int, cause error) error {
	if key == "" {
		return nil
	}
	body, err := json.Marshal(failureBody{Error: cause.Error()})
	if err != nil {
		return err
	}
	return tx.FinalizeIdempotency(ctx, businessID, key, "", status, body)
}

func replay(rec storage.IdempotencyRecord) (Confirmation, error) {
	if rec.StatusCode == http.StatusConflict {
		return Confirmation{}, ErrSlotTaken
	}
	var conf Confirmation
	if err := json.Unmarshal(rec.ResponsePayload, &conf); err != nil {
		return Confirmation{}, fmt.Errorf("decode stored response: %w", err)
	}
	return conf, nil
}
