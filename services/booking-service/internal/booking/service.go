package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrDateUnavailable   = errors.New("date not available for booking")
	ErrSlotTaken         = errors.New("time slot already booked")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const (
	EventAppointmentBooked        = "booking.appointment.booked.v1"
	EventAppointmentStatusChanged = "booking.appointment.status_changed.v1"
)

type Store interface {
	BusinessBySlug(ctx context.Context, slug string) (model.Business, error)
	BusinessByID(ctx context.Context, id string) (model.Business, error)
	GetService(ctx context.Context, businessID, serviceID string) (model.Service, error)
	ListActiveServices(ctx context.Context, businessID string) ([]model.Service, error)
	ListBusinessHours(ctx context.Context, businessID string) ([]availability.DayHours, error)
	UpsertBusinessHours(ctx context.Context, businessID string, hours []availability.DayHours) error
	ListAppointmentsOn(ctx context.Context, businessID string, date availability.Date) ([]availability.Appointment, error)
	ListAppointments(ctx context.Context, businessID string, date *availability.Date) ([]model.Appointment, error)
	ListUnreadAppointments(ctx context.Context, businessID string, limit int) ([]model.Appointment, error)
	InTx(ctx context.Context, fn func(storage.Tx) error) error
	InBookingLock(ctx context.Context, businessID string, date availability.Date, fn func(storage.Tx) error) error
}

type Config struct {
	SlotInterval    int
	HorizonMonths   int
	CancelledBlocks bool
	// Now defaults to time.Now. Its wall clock is read as the businesses' local time.
	Now func() time.Time
}

type Service struct {
	store  Store
	logger *slog.Logger
	policy availability.Policy
	opts   availability.Options
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger, cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		logger: logger,
		policy: availability.Policy{HorizonMonths: cfg.HorizonMonths},
		opts: availability.Options{
			SlotInterval:    cfg.SlotInterval,
			CancelledBlocks: cfg.CancelledBlocks,
		},
		now: now,
	}
}

// Business resolves a public booking page slug.
func (s *Service) Business(ctx context.Context, slug string) (model.Business, error) {
	if slug == "" {
		return model.Business{}, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}
	b, err := s.store.BusinessBySlug(ctx, slug)
	if err != nil {
		return model.Business{}, lookupErr(err, "business")
	}
	return b, nil
}

func (s *Service) Services(ctx context.Context, slug string) (model.Business, []model.Service, error) {
	b, err := s.Business(ctx, slug)
	if err != nil {
		return model.Business{}, nil, err
	}
	services, err := s.store.ListActiveServices(ctx, b.ID)
	if err != nil {
		return model.Business{}, nil, fmt.Errorf("list services: %w", err)
	}
	return b, services, nil
}

type CalendarResult struct {
	Business model.Business
	From     availability.Date
	To       availability.Date
	Days     []availability.Eligibility
}

// Calendar reports which days of the month containing month can be picked.
func (s *Service) Calendar(ctx context.Context, slug string, month availability.Date) (CalendarResult, error) {
	b, err := s.Business(ctx, slug)
	if err != nil {
		return CalendarResult{}, err
	}
	week, err := s.weekHours(ctx, b.ID)
	if err != nil {
		return CalendarResult{}, err
	}
	from, to := month.FirstOfMonth(), month.LastOfMonth()
	return CalendarResult{
		Business: b,
		From:     from,
		To:       to,
		Days:     s.policy.Calendar(s.today(), from, to, week),
	}, nil
}

type SlotsResult struct {
	Business    model.Business
	Service     model.Service
	Eligibility availability.Eligibility
	Slots       []availability.Slot
}

// Slots computes bookable start times from a snapshot of the day's appointments.
// The result is advisory; Book re-checks under a lock.
func (s *Service) Slots(ctx context.Context, slug, serviceID string, date availability.Date) (SlotsResult, error) {
	b, svc, err := s.bookable(ctx, slug, serviceID)
	if err != nil {
		return SlotsResult{}, err
	}
	week, err := s.weekHours(ctx, b.ID)
	if err != nil {
		return SlotsResult{}, err
	}

	res := SlotsResult{
		Business:    b,
		Service:     svc,
		Eligibility: s.policy.Check(s.today(), date, week),
		Slots:       []availability.Slot{},
	}
	if !res.Eligibility.Eligible {
		return res, nil
	}

	existing, err := s.store.ListAppointmentsOn(ctx, b.ID, date)
	if err != nil {
		return SlotsResult{}, fmt.Errorf("load appointments: %w", err)
	}
	slots, err := availability.AvailableSlots(s.request(date, week, svc, existing))
	if err != nil {
		return SlotsResult{}, err
	}
	res.Slots = slots
	return res, nil
}

// Hours returns the configured opening hours, Sunday first.
func (s *Service) Hours(ctx context.Context, businessID string) ([]availability.DayHours, error) {
	week, err := s.weekHours(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return week.Days(), nil
}

// SetHours validates and stores hours for the given weekdays.
func (s *Service) SetHours(ctx context.Context, businessID string, hours []availability.DayHours) ([]availability.DayHours, error) {
	if len(hours) == 0 {
		return nil, fmt.Errorf("%w: no hours given", ErrInvalidInput)
	}
	if _, err := availability.NewWeekHours(hours...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.store.BusinessByID(ctx, businessID); err != nil {
		return nil, lookupErr(err, "business")
	}
	if err := s.store.UpsertBusinessHours(ctx, businessID, hours); err != nil {
		return nil, fmt.Errorf("save hours: %w", err)
	}
	s.logger.Info("business hours updated", "business_id", businessID, "days", len(hours))
	return s.Hours(ctx, businessID)
}

// Appointments lists a business's appointments, for one date when date is non-nil.
func (s *Service) Appointments(ctx context.Context, businessID string, date *availability.Date) ([]model.Appointment, error) {
	appts, err := s.store.ListAppointments(ctx, businessID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

type Notifications struct {
	UnreadCount int
	Recent      []model.Appointment
}

// Notifications returns the unread counter with the most recent unread appointments.
func (s *Service) Notifications(ctx context.Context, businessID string, limit int) (Notifications, error) {
	b, err := s.store.BusinessByID(ctx, businessID)
	if err != nil {
		return Notifications{}, lookupErr(err, "business")
	}
	recent, err := s.store.ListUnreadAppointments(ctx, businessID, limit)
	if err != nil {
		return Notifications{}, fmt.Errorf("list unread appointments: %w", err)
	}
	return Notifications{UnreadCount: b.UnreadAppointments, Recent: recent}, nil
}

func (s *Service) bookable(ctx context.Context, slug, serviceID string) (model.Business, model.Service, error) {
	if serviceID == "" {
		return model.Business{}, model.Service{}, fmt.Errorf("%w: service_id is required", ErrInvalidInput)
	}
	b, err := s.Business(ctx, slug)
	if err != nil {
		return model.Business{}, model.Service{}, err
	}
	svc, err := s.store.GetService(ctx, b.ID, serviceID)
	if err != nil {
		return model.Business{}, model.Service{}, lookupErr(err, "service")
	}
	if !svc.IsActive {
		return model.Business{}, model.Service{}, fmt.Errorf("service: %w", ErrNotFound)
	}
	return b, svc, nil
}

func (s *Service) weekHours(ctx context.Context, businessID string) (availability.WeekHours, error) {
	hours, err := s.store.ListBusinessHours(ctx, businessID)
	if err != nil {
		return availability.WeekHours{}, fmt.Errorf("load business hours: %w", err)
	}
	week, err := availability.NewWeekHours(hours...)
	if err != nil {
		s.logger.Warn("stored business hours are invalid", "business_id", businessID, "err", err)
		return availability.WeekHours{}, err
	}
	return week, nil
}

func (s *Service) request(date availability.Date, week availability.WeekHours, svc model.Service, existing []availability.Appointment) availability.Request {
	opts := s.opts
	now := s.now()
	if availability.DateOf(now) == date {
		c := availability.Clock(now.Hour()*60 + now.Minute())
		opts.NotBefore = &c
	}
	return availability.Request{
		Date:           date,
		Hours:          week.For(date.Weekday()),
		ServiceMinutes: svc.DurationMinutes,
		Existing:       existing,
		Options:        opts,
	}
}

func (s *Service) today() availability.Date {
	return availability.DateOf(s.now())
}

func lookupErr(err error, what string) error {
	if storage.IsNotFound(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
