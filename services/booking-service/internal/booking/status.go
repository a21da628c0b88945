package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

var transitions = map[availability.Status][]availability.Status{
	availability.StatusPending:   {availability.StatusConfirmed, availability.StatusCancelled},
	availability.StatusConfirmed: {availability.StatusCompleted, availability.StatusCancelled},
}

// CanTransition reports whether an appointment may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to availability.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type statusChangedEvent struct {
	AppointmentID string              `json:"appointment_id"`
	BusinessID    string              `json:"business_id"`
	From          availability.Status `json:"from"`
	To            availability.Status `json:"to"`
	Date          availability.Date   `json:"date"`
	Start         availability.Clock  `json:"start"`
	ClientEmail   string              `json:"client_email"`
	ChangedAt     string              `json:"changed_at"`
}

// SetStatus moves an appointment through the owner workflow. An empty status leaves it
// unchanged; markRead clears the unread flag and the business's unread counter with it.
func (s *Service) SetStatus(ctx context.Context, businessID, appointmentID string, status availability.Status, markRead bool) (model.Appointment, error) {
	businessID = strings.TrimSpace(businessID)
	appointmentID = strings.TrimSpace(appointmentID)
	if businessID == "" || appointmentID == "" {
		return model.Appointment{}, fmt.Errorf("%w: business and appointment ids are required", ErrInvalidInput)
	}
	if status != "" && !status.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	var updated model.Appointment
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		appt, err := tx.AppointmentForUpdate(ctx, businessID, appointmentID)
		if err != nil {
			return err
		}

		next := appt.Status
		if status != "" {
			next = status
		}
		if !CanTransition(appt.Status, next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, next)
		}
		isRead := appt.IsRead || markRead

		if next == appt.Status && isRead == appt.IsRead {
			updated = appt
			return nil
		}
		if err := tx.UpdateAppointmentState(ctx, businessID, appointmentID, next, isRead); err != nil {
			return err
		}
		if isRead && !appt.IsRead {
			if err := tx.AdjustUnread(ctx, businessID, -1); err != nil {
				return fmt.Errorf("adjust unread counter: %w", err)
			}
		}
		if next != appt.Status {
			evt, err := outbox.NewEvent("appointment", appt.ID, EventAppointmentStatusChanged, statusChangedEvent{
				AppointmentID: appt.ID,
				BusinessID:    businessID,
				From:          appt.Status,
				To:            next,
				Date:          appt.Date,
				Start:         appt.Start,
				ClientEmail:   appt.ClientEmail,
				ChangedAt:     s.now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			if err := tx.InsertEvent(ctx, evt); err != nil {
				return fmt.Errorf("write outbox event: %w", err)
			}
		}

		appt.Status = next
		appt.IsRead = isRead
		updated = appt
		return nil
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, fmt.Errorf("appointment: %w", ErrNotFound)
		}
		return model.Appointment{}, err
	}
	if status != "" {
		s.logger.Info("appointment status updated", "appointment_id", appointmentID, "business_id", businessID, "status", string(updated.Status))
	}
	return updated, nil
}
