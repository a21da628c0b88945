package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const idempotencyKeyHeader = "Idempotency-Key"

type businessResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type serviceItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

type calendarResponse struct {
	BusinessID string                     `json:"business_id"`
	From       availability.Date          `json:"from"`
	To         availability.Date          `json:"to"`
	Days       []availability.Eligibility `json:"days"`
}

type slotItem struct {
	Start availability.Clock `json:"start"`
	End   availability.Clock `json:"end"`
}

type slotsResponse struct {
	Date            availability.Date   `json:"date"`
	ServiceID       string              `json:"service_id"`
	DurationMinutes int                 `json:"duration_minutes"`
	Eligible        bool                `json:"eligible"`
	Reason          availability.Reason `json:"reason,omitempty"`
	Slots           []slotItem          `json:"slots"`
}

type bookRequest struct {
	Slug        string `json:"slug"`
	ServiceID   string `json:"service_id"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Notes       string `json:"notes"`
}

func toBusinessResponse(b model.Business) businessResponse {
	return businessResponse{ID: b.ID, Name: b.Name, Slug: b.Slug, Email: b.Email, Phone: b.Phone, Address: b.Address}
}

func (h *BookingHandler) Business(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	b, err := h.svc.Business(r.Context(), strings.TrimSpace(r.URL.Query().Get("slug")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessResponse(b))
}

func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	_, services, err := h.svc.Services(r.Context(), strings.TrimSpace(r.URL.Query().Get("slug")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceItem{
			ID:              s.ID,
			Name:            s.Name,
			Description:     s.Description,
			DurationMinutes: s.DurationMinutes,
			PriceCents:      s.PriceCents,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	month, err := time.Parse("2006-01", strings.TrimSpace(q.Get("month")))
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Calendar(r.Context(), strings.TrimSpace(q.Get("slug")), availability.DateOf(month))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		BusinessID: res.Business.ID,
		From:       res.From,
		To:         res.To,
		Days:       res.Days,
	})
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	date, err := availability.ParseDate(q.Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.svc.Slots(r.Context(), strings.TrimSpace(q.Get("slug")), strings.TrimSpace(q.Get("service_id")), date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items := make([]slotItem, 0, len(res.Slots))
	for _, s := range res.Slots {
		items = append(items, slotItem{Start: s.Start, End: s.End()})
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		Date:            date,
		ServiceID:       res.Service.ID,
		DurationMinutes: res.Service.DurationMinutes,
		Eligible:        res.Eligibility.Eligible,
		Reason:          res.Eligibility.Reason,
		Slots:           items,
	})
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var body bookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req, err := body.toService()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.IdempotencyKey = r.Header.Get(idempotencyKeyHeader)

	conf, replayed, err := h.svc.Book(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, conf)
}

func (b bookRequest) toService() (booking.BookRequest, error) {
	date, err := availability.ParseDate(b.Date)
	if err != nil {
		return booking.BookRequest{}, err
	}
	start, err := availability.ParseClock(strings.TrimSpace(b.Start))
	if err != nil {
		return booking.BookRequest{}, fmt.Errorf("start: %w", err)
	}
	return booking.BookRequest{
		Slug:        b.Slug,
		ServiceID:   b.ServiceID,
		Date:        date,
		Start:       start,
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		ClientPhone: b.ClientPhone,
		Notes:       b.Notes,
	}, nil
}
