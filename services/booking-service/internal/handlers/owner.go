package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type hoursPayload struct {
	Hours []availability.DayHours `json:"hours"`
}

type appointmentItem struct {
	AppointmentID   string              `json:"appointment_id"`
	ServiceID       string              `json:"service_id"`
	ServiceName     string              `json:"service_name"`
	ClientID        string              `json:"client_id"`
	ClientName      string              `json:"client_name"`
	ClientEmail     string              `json:"client_email"`
	Date            availability.Date   `json:"date"`
	Start           availability.Clock  `json:"start"`
	End             availability.Clock  `json:"end"`
	DurationMinutes int                 `json:"duration_minutes"`
	Status          availability.Status `json:"status"`
	Notes           string              `json:"notes,omitempty"`
	IsRead          bool                `json:"is_read"`
	CreatedAt       string              `json:"created_at"`
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	MarkRead      bool   `json:"mark_read"`
}

func businessID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(auth.HeaderBusinessID))
	if id == "" {
		http.Error(w, "business context required", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

// Hours serves GET (read) and PUT (replace the given weekdays).
func (h *BookingHandler) Hours(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	bizID, ok := businessID(w, r)
	if !ok {
		return
	}

	var (
		hours []availability.DayHours
		err   error
	)
	if r.Method == http.MethodPut {
		var body hoursPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid hours body: "+err.Error(), http.StatusBadRequest)
			return
		}
		hours, err = h.svc.SetHours(r.Context(), bizID, body.Hours)
	} else {
		hours, err = h.svc.Hours(r.Context(), bizID)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hoursPayload{Hours: hours})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	bizID, ok := businessID(w, r)
	if !ok {
		return
	}

	var date *availability.Date
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := availability.ParseDate(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		date = &d
	}

	appts, err := h.svc.Appointments(r.Context(), bizID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	bizID, ok := businessID(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if body.Status == "" && !body.MarkRead {
		http.Error(w, "status or mark_read required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.SetStatus(r.Context(), bizID, body.AppointmentID, availability.Status(strings.ToLower(strings.TrimSpace(body.Status))), body.MarkRead)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

type notificationsResponse struct {
	UnreadCount  int               `json:"unread_count"`
	Appointments []appointmentItem `json:"appointments"`
}

func (h *BookingHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	bizID, ok := businessID(w, r)
	if !ok {
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	n, err := h.svc.Notifications(r.Context(), bizID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := notificationsResponse{UnreadCount: n.UnreadCount, Appointments: make([]appointmentItem, 0, len(n.Recent))}
	for _, a := range n.Recent {
		resp.Appointments = append(resp.Appointments, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID:   a.ID,
		ServiceID:       a.ServiceID,
		ServiceName:     a.ServiceName,
		ClientID:        a.ClientID,
		ClientName:      a.ClientName,
		ClientEmail:     a.ClientEmail,
		Date:            a.Date,
		Start:           a.Start,
		End:             a.Start.Add(a.DurationMinutes),
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
		Notes:           a.Notes,
		IsRead:          a.IsRead,
	}
	if !a.CreatedAt.IsZero() {
		item.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}
