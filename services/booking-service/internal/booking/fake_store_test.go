package booking

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type memState struct {
	appointments []model.Appointment
	clients      map[string]model.Client
	unread       map[string]int
	idempotency  map[string]storage.IdempotencyRecord
	events       []outbox.Event
}

func (s memState) clone() memState {
	return memState{
		appointments: slices.Clone(s.appointments),
		clients:      maps.Clone(s.clients),
		unread:       maps.Clone(s.unread),
		idempotency:  maps.Clone(s.idempotency),
		events:       slices.Clone(s.events),
	}
}

// memStore is an in-memory Store. Transactions are serialised by one mutex and
// rolled back by restoring a snapshot.
type memStore struct {
	mu         sync.Mutex
	businesses map[string]model.Business
	services   map[string]model.Service
	hours      map[string][]availability.DayHours
	state      memState

	// exclusionViolation makes the next insert fail like the database constraint would.
	exclusionViolation bool
}

func newMemStore() *memStore {
	return &memStore{
		businesses: map[string]model.Business{},
		services:   map[string]model.Service{},
		hours:      map[string][]availability.DayHours{},
		state: memState{
			clients:     map[string]model.Client{},
			unread:      map[string]int{},
			idempotency: map[string]storage.IdempotencyRecord{},
		},
	}
}

func (m *memStore) BusinessBySlug(_ context.Context, slug string) (model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.businesses {
		if b.Slug == slug {
			b.UnreadAppointments = m.state.unread[b.ID]
			return b, nil
		}
	}
	return model.Business{}, storage.ErrNotFound
}

func (m *memStore) BusinessByID(_ context.Context, id string) (model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return model.Business{}, storage.ErrNotFound
	}
	b.UnreadAppointments = m.state.unread[b.ID]
	return b, nil
}

func (m *memStore) GetService(_ context.Context, businessID, serviceID string) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[serviceID]
	if !ok || s.BusinessID != businessID {
		return model.Service{}, storage.ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListActiveServices(_ context.Context, businessID string) ([]model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Service
	for _, s := range m.services {
		if s.BusinessID == businessID && s.IsActive {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.Service) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *memStore) ListBusinessHours(_ context.Context, businessID string) ([]availability.DayHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.hours[businessID]), nil
}

func (m *memStore) UpsertBusinessHours(_ context.Context, businessID string, hours []availability.DayHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.hours[businessID]
	for _, h := range hours {
		i := slices.IndexFunc(current, func(c availability.DayHours) bool { return c.Weekday == h.Weekday })
		if i >= 0 {
			current[i] = h
		} else {
			current = append(current, h)
		}
	}
	m.hours[businessID] = current
	return nil
}

func (m *memStore) ListAppointmentsOn(_ context.Context, businessID string, date availability.Date) ([]availability.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointmentsOn(businessID, date), nil
}

func (m *memStore) appointmentsOn(businessID string, date availability.Date) []availability.Appointment {
	var out []availability.Appointment
	for _, a := range m.state.appointments {
		if a.BusinessID == businessID && a.Date == date {
			out = append(out, a.Occupancy())
		}
	}
	return out
}

func (m *memStore) ListAppointments(_ context.Context, businessID string, date *availability.Date) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.state.appointments {
		if a.BusinessID == businessID && (date == nil || a.Date == *date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListUnreadAppointments(_ context.Context, businessID string, limit int) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for i := len(m.state.appointments) - 1; i >= 0 && len(out) < limit; i-- {
		if a := m.state.appointments[i]; a.BusinessID == businessID && !a.IsRead {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) InTx(_ context.Context, fn func(storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	backup := m.state.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.state = backup
		return err
	}
	return nil
}

func (m *memStore) InBookingLock(ctx context.Context, _ string, _ availability.Date, fn func(storage.Tx) error) error {
	return m.InTx(ctx, fn)
}

func (m *memStore) eventsOfType(eventType string) []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Event
	for _, e := range m.state.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type memTx struct {
	m *memStore
}

func (t *memTx) AppointmentsOn(_ context.Context, businessID string, date availability.Date) ([]availability.Appointment, error) {
	return t.m.appointmentsOn(businessID, date), nil
}

func (t *memTx) UpsertClient(_ context.Context, c model.Client) (string, error) {
	key := c.BusinessID + "|" + c.Email
	if existing, ok := t.m.state.clients[key]; ok {
		existing.Name = c.Name
		t.m.state.clients[key] = existing
		return existing.ID, nil
	}
	c.ID = uuid.NewString()
	t.m.state.clients[key] = c
	return c.ID, nil
}

func (t *memTx) InsertAppointment(_ context.Context, appt model.Appointment) (string, error) {
	if t.m.exclusionViolation {
		t.m.exclusionViolation = false
		return "", &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}
	}
	for _, c := range t.m.state.clients {
		if c.ID == appt.ClientID {
			appt.ClientName = c.Name
			appt.ClientEmail = c.Email
		}
	}
	t.m.state.appointments = append(t.m.state.appointments, appt)
	return appt.ID, nil
}

func (t *memTx) AppointmentForUpdate(_ context.Context, businessID, appointmentID string) (model.Appointment, error) {
	for _, a := range t.m.state.appointments {
		if a.ID == appointmentID && a.BusinessID == businessID {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (t *memTx) UpdateAppointmentState(_ context.Context, businessID, appointmentID string, status availability.Status, isRead bool) error {
	for i, a := range t.m.state.appointments {
		if a.ID == appointmentID && a.BusinessID == businessID {
			t.m.state.appointments[i].Status = status
			t.m.state.appointments[i].IsRead = isRead
			return nil
		}
	}
	return storage.ErrNotFound
}

func (t *memTx) AdjustUnread(_ context.Context, businessID string, delta int) error {
	t.m.state.unread[businessID] = max(t.m.state.unread[businessID]+delta, 0)
	return nil
}

func (t *memTx) LockIdempotencyKey(_ context.Context, businessID, key string) (storage.IdempotencyRecord, bool, error) {
	k := businessID + "|" + key
	if rec, ok := t.m.state.idempotency[k]; ok {
		return rec, true, nil
	}
	rec := storage.IdempotencyRecord{BusinessID: businessID, IdempotencyKey: key}
	t.m.state.idempotency[k] = rec
	return rec, false, nil
}

func (t *memTx) FinalizeIdempotency(_ context.Context, businessID, key, appointmentID string, statusCode int, response []byte) error {
	k := businessID + "|" + key
	rec := t.m.state.idempotency[k]
	rec.AppointmentID = appointmentID
	rec.StatusCode = statusCode
	rec.ResponsePayload = response
	t.m.state.idempotency[k] = rec
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.m.state.events = append(t.m.state.events, evt)
	return nil
}
