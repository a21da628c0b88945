package model

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
)

type Appointment struct {
	ID              string
	BusinessID      string
	ServiceID       string
	ServiceName     string
	ClientID        string
	ClientName      string
	ClientEmail     string
	Date            availability.Date
	Start           availability.Clock
	DurationMinutes int
	Status          availability.Status
	Notes           string
	IsRead          bool
	CreatedAt       time.Time
}

// Occupancy is the view of the appointment used for slot computation.
func (a Appointment) Occupancy() availability.Appointment {
	return availability.Appointment{
		Date:            a.Date,
		Start:           a.Start,
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
	}
}
