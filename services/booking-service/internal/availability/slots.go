package availability

import (
	"fmt"
	"iter"
	"slices"
)

const DefaultSlotInterval = 30

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Appointment is an existing booking as far as slot computation cares.
type Appointment struct {
	Date            Date
	Start           Clock
	DurationMinutes int
	Status          Status
}

func (a Appointment) End() Clock { return a.Start.Add(a.DurationMinutes) }

// Slot is a bookable start time for a service of DurationMinutes.
type Slot struct {
	Date            Date  `json:"date"`
	Start           Clock `json:"start"`
	DurationMinutes int   `json:"duration_minutes"`
}

func (s Slot) End() Clock { return s.Start.Add(s.DurationMinutes) }

// Overlaps uses half-open intervals, so a slot ending exactly when the appointment starts is free.
func (s Slot) Overlaps(a Appointment) bool {
	return overlaps(s.Start, s.End(), a.Start, a.End())
}

func overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && aEnd > bStart
}

type Options struct {
	// SlotInterval is the step between candidate starts in minutes. Zero means DefaultSlotInterval.
	SlotInterval int
	// CancelledBlocks makes cancelled appointments occupy the calendar too.
	CancelledBlocks bool
	// NotBefore hides candidates starting earlier. Used for today's date.
	NotBefore *Clock
}

type Request struct {
	Date           Date
	Hours          *DayHours
	ServiceMinutes int
	Existing       []Appointment
	Options        Options
}

// AvailableSlots returns the bookable slots for the request in ascending order.
// A closed or unconfigured day yields an empty result, not an error.
func AvailableSlots(req Request) ([]Slot, error) {
	seq, err := Seq(req)
	if err != nil {
		return nil, err
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// Seq validates the request up front and then yields slots lazily.
func Seq(req Request) (iter.Seq[Slot], error) {
	step, blocking, err := prepare(req)
	if err != nil {
		return nil, err
	}
	if req.Hours == nil || !req.Hours.IsOpen {
		return func(func(Slot) bool) {}, nil
	}

	open, closeAt := req.Hours.Open, req.Hours.Close
	return func(yield func(Slot) bool) {
		for t := open; t.Add(req.ServiceMinutes) <= closeAt; t = t.Add(step) {
			if req.Options.NotBefore != nil && t < *req.Options.NotBefore {
				continue
			}
			s := Slot{Date: req.Date, Start: t, DurationMinutes: req.ServiceMinutes}
			if conflicts(s, blocking) {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}, nil
}

// IsAvailable reports whether start is one of the slots the request would offer.
func IsAvailable(req Request, start Clock) (bool, error) {
	seq, err := Seq(req)
	if err != nil {
		return false, err
	}
	for s := range seq {
		if s.Start == start {
			return true, nil
		}
		if s.Start > start {
			break
		}
	}
	return false, nil
}

func prepare(req Request) (int, []Appointment, error) {
	if req.ServiceMinutes <= 0 || req.ServiceMinutes > minutesPerDay {
		return 0, nil, fmt.Errorf("%w: service duration %d minutes", ErrInvalidConfiguration, req.ServiceMinutes)
	}
	step := req.Options.SlotInterval
	if step == 0 {
		step = DefaultSlotInterval
	}
	if step < 0 || step > minutesPerDay {
		return 0, nil, fmt.Errorf("%w: slot interval %d minutes", ErrInvalidConfiguration, step)
	}
	if req.Hours == nil || !req.Hours.IsOpen {
		return step, nil, nil
	}
	if err := req.Hours.Validate(); err != nil {
		return 0, nil, err
	}
	if req.Hours.Weekday != req.Date.Weekday() {
		return 0, nil, fmt.Errorf("%w: %s hours used for %s (%s)", ErrInvalidConfiguration, req.Hours.Weekday, req.Date, req.Date.Weekday())
	}

	blocking := make([]Appointment, 0, len(req.Existing))
	for _, a := range req.Existing {
		if a.DurationMinutes <= 0 || a.DurationMinutes > minutesPerDay {
			return 0, nil, fmt.Errorf("%w: appointment at %s has duration %d", ErrInvalidConfiguration, a.Start, a.DurationMinutes)
		}
		if !a.Status.Valid() {
			return 0, nil, fmt.Errorf("%w: appointment at %s has status %q", ErrInvalidConfiguration, a.Start, a.Status)
		}
		if a.Date != req.Date {
			continue
		}
		if a.Status == StatusCancelled && !req.Options.CancelledBlocks {
			continue
		}
		blocking = append(blocking, a)
	}
	return step, blocking, nil
}

func conflicts(s Slot, blocking []Appointment) bool {
	for _, a := range blocking {
		if s.Overlaps(a) {
			return true
		}
	}
	return false
}
