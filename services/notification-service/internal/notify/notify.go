package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/email"
	"github.com/segmentio/kafka-go"
)

// Event types published by booking-service.
const (
	EventAppointmentBooked        = "booking.appointment.booked.v1"
	EventAppointmentStatusChanged = "booking.appointment.status_changed.v1"
)

// Topics lists what the notifier consumes.
var Topics = []string{EventAppointmentBooked, EventAppointmentStatusChanged}

const (
	KindBookingReceived      = "booking_received"
	KindAppointmentConfirmed = "appointment_confirmed"
	KindAppointmentCancelled = "appointment_cancelled"

	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Record is one delivery attempt.
type Record struct {
	EventID       string
	AppointmentID string
	BusinessID    string
	Kind          string
	Recipient     string
	Subject       string
	Status        string
	ErrorReason   string
}

type Recorder interface {
	Insert(ctx context.Context, r Record) error
}

type bookedPayload struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	ServiceName   string `json:"service_name"`
	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

type statusChangedPayload struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	ClientEmail   string `json:"client_email"`
}

type message struct {
	kind          string
	appointmentID string
	businessID    string
	to            string
	subject       string
	body          string
}

// Notifier turns booking events into client emails and records every attempt.
type Notifier struct {
	sender   email.Sender
	recorder Recorder
	logger   *slog.Logger
}

func New(sender email.Sender, recorder Recorder, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, recorder: recorder, logger: logger}
}

// Handle never fails on a malformed or irrelevant event; only persistence errors surface.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType)
	if eventType == "" {
		eventType = msg.Topic
	}

	out, ok, err := compose(eventType, msg.Value)
	if err != nil {
		n.logger.Error("invalid booking event", "err", err, "event_type", eventType)
		return nil
	}
	if !ok {
		n.logger.Debug("event needs no notification", "event_type", eventType)
		return nil
	}

	rec := Record{
		EventID:       kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID),
		AppointmentID: out.appointmentID,
		BusinessID:    out.businessID,
		Kind:          out.kind,
		Recipient:     out.to,
		Subject:       out.subject,
		Status:        StatusSent,
	}
	if err := n.sender.Send(out.to, out.subject, out.body); err != nil {
		rec.Status = StatusFailed
		rec.ErrorReason = err.Error()
		n.logger.Error("email send failed", "err", err, "appointment_id", out.appointmentID)
	}

	if err := n.recorder.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	n.logger.Info("notification processed",
		"appointment_id", rec.AppointmentID,
		"kind", rec.Kind,
		"status", rec.Status,
	)
	return nil
}

func compose(eventType string, payload []byte) (message, bool, error) {
	switch eventType {
	case EventAppointmentBooked:
		var p bookedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return message{}, false, err
		}
		if p.AppointmentID == "" || p.BusinessID == "" || p.ClientEmail == "" {
			return message{}, false, fmt.Errorf("booked event missing fields")
		}
		name := p.ClientName
		if name == "" {
			name = "there"
		}
		return message{
			kind:          KindBookingReceived,
			appointmentID: p.AppointmentID,
			businessID:    p.BusinessID,
			to:            p.ClientEmail,
			subject:       "We received your booking request",
			body: fmt.Sprintf("Hi %s,\n\nYour request for %s on %s from %s to %s is waiting for confirmation.\nReference: %s\n",
				name, serviceLabel(p.ServiceName), p.Date, p.Start, p.End, p.AppointmentID),
		}, true, nil

	case EventAppointmentStatusChanged:
		var p statusChangedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return message{}, false, err
		}
		if p.AppointmentID == "" || p.BusinessID == "" || p.ClientEmail == "" {
			return message{}, false, fmt.Errorf("status event missing fields")
		}
		m := message{appointmentID: p.AppointmentID, businessID: p.BusinessID, to: p.ClientEmail}
		switch strings.ToLower(p.To) {
		case "confirmed":
			m.kind = KindAppointmentConfirmed
			m.subject = "Your appointment is confirmed"
			m.body = fmt.Sprintf("Your appointment on %s at %s is confirmed.\nReference: %s\n", p.Date, p.Start, p.AppointmentID)
		case "cancelled":
			m.kind = KindAppointmentCancelled
			m.subject = "Your appointment was cancelled"
			m.body = fmt.Sprintf("Your appointment on %s at %s was cancelled.\nReference: %s\n", p.Date, p.Start, p.AppointmentID)
		default:
			return message{}, false, nil
		}
		return m, true, nil
	}
	return message{}, false, nil
}

func serviceLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "your appointment"
	}
	return name
}
