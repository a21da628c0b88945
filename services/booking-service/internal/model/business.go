package model

type Business struct {
	ID                 string
	Name               string
	Slug               string
	Email              string
	Phone              string
	Address            string
	UnreadAppointments int
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	Description     string
	DurationMinutes int
	PriceCents      int64
	IsActive        bool
}

type Client struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
	Phone      string
}
