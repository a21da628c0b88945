package handlers

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type BookingService interface {
	Business(ctx context.Context, slug string) (model.Business, error)
	Services(ctx context.Context, slug string) (model.Business, []model.Service, error)
	Calendar(ctx context.Context, slug string, month availability.Date) (booking.CalendarResult, error)
	Slots(ctx context.Context, slug, serviceID string, date availability.Date) (booking.SlotsResult, error)
	Book(ctx context.Context, req booking.BookRequest) (booking.Confirmation, bool, error)
	Hours(ctx context.Context, businessID string) ([]availability.DayHours, error)
	SetHours(ctx context.Context, businessID string, hours []availability.DayHours) ([]availability.DayHours, error)
	Appointments(ctx context.Context, businessID string, date *availability.Date) ([]model.Appointment, error)
	SetStatus(ctx context.Context, businessID, appointmentID string, status availability.Status, markRead bool) (model.Appointment, error)
	Notifications(ctx context.Context, businessID string, limit int) (booking.Notifications, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}
