package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
)

// Register mounts the public booking API behind publicLimit (may be nil) and the owner
// API behind JWT verification.
func (h *BookingHandler) Register(mux *http.ServeMux, jwtSecret string, publicLimit httpx.Middleware) {
	public := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, publicLimit)
	}
	owner := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireAuth(auth.RequireRole(fn, "owner", "staff", "admin"), jwtSecret)
	}

	mux.Handle("/api/v1/public/business", public(h.Business))
	mux.Handle("/api/v1/public/services", public(h.Services))
	mux.Handle("/api/v1/public/calendar", public(h.Calendar))
	mux.Handle("/api/v1/public/slots", public(h.Slots))
	mux.Handle("/api/v1/public/book", public(h.Book))

	mux.Handle("/api/v1/business/hours", owner(h.Hours))
	mux.Handle("/api/v1/appointments", owner(h.List))
	mux.Handle("/api/v1/appointments/status", owner(h.SetStatus))
	mux.Handle("/api/v1/notifications", owner(h.Notifications))
}
