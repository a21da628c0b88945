package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	bizID     = "biz-1"
	bizSlug   = "studio-ana"
	haircutID = "svc-haircut"
)

// 2024-06-01 is a Saturday; 2024-06-10 a Monday.
var (
	today  = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	monday = availability.NewDate(2024, 6, 10)
)

func fixture(t *testing.T, now time.Time) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	store.businesses[bizID] = model.Business{ID: bizID, Name: "Studio Ana", Slug: bizSlug}
	store.services[haircutID] = model.Service{ID: haircutID, BusinessID: bizID, Name: "Haircut", DurationMinutes: 30, IsActive: true}
	store.services["svc-retired"] = model.Service{ID: "svc-retired", BusinessID: bizID, Name: "Perm", DurationMinutes: 90}

	var hours []availability.DayHours
	for d := availability.Monday; d <= availability.Friday; d++ {
		hours = append(hours, availability.DayHours{Weekday: d, IsOpen: true, Open: availability.MustClock(9, 0), Close: availability.MustClock(18, 0)})
	}
	hours = append(hours, availability.DayHours{Weekday: availability.Saturday})
	store.hours[bizID] = hours

	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Now: func() time.Time { return now },
	})
	return svc, store
}

func seedAppointment(store *memStore, date availability.Date, start availability.Clock, minutes int, status availability.Status) {
	store.state.appointments = append(store.state.appointments, model.Appointment{
		ID:              "seed-" + start.String(),
		BusinessID:      bizID,
		ServiceID:       haircutID,
		Date:            date,
		Start:           start,
		DurationMinutes: minutes,
		Status:          status,
	})
}

func bookReq(start availability.Clock) BookRequest {
	return BookRequest{
		Slug:        bizSlug,
		ServiceID:   haircutID,
		Date:        monday,
		Start:       start,
		ClientName:  "Maria Silva",
		ClientEmail: "Maria@Example.com",
	}
}

func TestSlots_ExcludesBookedTimes(t *testing.T) {
	svc, store := fixture(t, today)
	seedAppointment(store, monday, availability.MustClock(10, 0), 45, availability.StatusConfirmed)

	res, err := svc.Slots(context.Background(), bizSlug, haircutID, monday)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if !res.Eligibility.Eligible {
		t.Fatalf("expected eligible date, got %+v", res.Eligibility)
	}
	if len(res.Slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(res.Slots))
	}
	for _, s := range res.Slots {
		if s.Start == availability.MustClock(10, 0) || s.Start == availability.MustClock(10, 30) {
			t.Fatalf("slot %s should be blocked", s.Start)
		}
	}
}

func TestSlots_IneligibleDates(t *testing.T) {
	svc, _ := fixture(t, today)
	cases := map[availability.Date]availability.Reason{
		availability.NewDate(2024, 5, 31): availability.ReasonPast,
		availability.NewDate(2024, 8, 5):  availability.ReasonBeyondHorizon,
		availability.NewDate(2024, 6, 15): availability.ReasonClosed,
		availability.NewDate(2024, 6, 16): availability.ReasonClosed,
	}
	for date, reason := range cases {
		res, err := svc.Slots(context.Background(), bizSlug, haircutID, date)
		if err != nil {
			t.Fatalf("Slots(%s): %v", date, err)
		}
		if res.Eligibility.Reason != reason || len(res.Slots) != 0 {
			t.Fatalf("Slots(%s): got reason %q with %d slots, want %q and none", date, res.Eligibility.Reason, len(res.Slots), reason)
		}
	}
}

func TestSlots_TodayHidesPastStarts(t *testing.T) {
	svc, _ := fixture(t, time.Date(2024, 6, 10, 16, 40, 0, 0, time.UTC))
	res, err := svc.Slots(context.Background(), bizSlug, haircutID, monday)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(res.Slots) != 2 || res.Slots[0].Start != availability.MustClock(17, 0) {
		t.Fatalf("expected 17:00 and 17:30, got %+v", res.Slots)
	}
}

func TestSlots_LookupErrors(t *testing.T) {
	svc, _ := fixture(t, today)
	if _, err := svc.Slots(context.Background(), "nope", haircutID, monday); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown slug, got %v", err)
	}
	if _, err := svc.Slots(context.Background(), bizSlug, "svc-retired", monday); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for inactive service, got %v", err)
	}
	if _, err := svc.Slots(context.Background(), bizSlug, "", monday); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without service, got %v", err)
	}
}

func TestSlots_InvalidStoredHours(t *testing.T) {
	svc, store := fixture(t, today)
	store.hours[bizID] = []availability.DayHours{
		{Weekday: availability.Monday, IsOpen: true, Open: availability.MustClock(18, 0), Close: availability.MustClock(9, 0)},
	}
	if _, err := svc.Slots(context.Background(), bizSlug, haircutID, monday); !errors.Is(err, availability.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestBook_CreatesPendingAppointment(t *testing.T) {
	svc, store := fixture(t, today)

	conf, replayed, err := svc.Book(context.Background(), bookReq(availability.MustClock(11, 0)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if replayed {
		t.Fatal("first booking must not be a replay")
	}
	if conf.Status != availability.StatusPending || conf.End != availability.MustClock(11, 30) {
		t.Fatalf("unexpected confirmation %+v", conf)
	}
	if conf.ClientEmail != "maria@example.com" {
		t.Fatalf("expected normalized email, got %q", conf.ClientEmail)
	}
	if got := store.state.unread[bizID]; got != 1 {
		t.Fatalf("expected unread counter 1, got %d", got)
	}
	events := store.eventsOfType(EventAppointmentBooked)
	if len(events) != 1 || events[0].AggregateID != conf.AppointmentID {
		t.Fatalf("expected one booked event for %s, got %+v", conf.AppointmentID, events)
	}
	var payload map[string]any
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if payload["start"] != "11:00" || payload["date"] != "2024-06-10" {
		t.Fatalf("unexpected event payload %v", payload)
	}

	// Same email books again: client is reused.
	if _, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(12, 0))); err != nil {
		t.Fatalf("second Book: %v", err)
	}
	if len(store.state.clients) != 1 {
		t.Fatalf("expected one client, got %d", len(store.state.clients))
	}
}

func TestBook_RejectsTakenSlot(t *testing.T) {
	svc, store := fixture(t, today)
	seedAppointment(store, monday, availability.MustClock(10, 0), 45, availability.StatusPending)

	for _, start := range []availability.Clock{availability.MustClock(10, 0), availability.MustClock(10, 30)} {
		if _, _, err := svc.Book(context.Background(), bookReq(start)); !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("Book(%s): expected ErrSlotTaken, got %v", start, err)
		}
	}
	// Off-grid start and after-close start are not offered either.
	for _, start := range []availability.Clock{availability.MustClock(11, 10), availability.MustClock(17, 45)} {
		if _, _, err := svc.Book(context.Background(), bookReq(start)); !errors.Is(err, ErrSlotTaken) {
			t.Fatalf("Book(%s): expected ErrSlotTaken, got %v", start, err)
		}
	}
	if _, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(9, 30))); err != nil {
		t.Fatalf("adjacent slot should be bookable: %v", err)
	}
	if got := len(store.state.events); got != 1 {
		t.Fatalf("expected a single event, got %d", got)
	}
}

func TestBook_CancelledAppointmentFreesSlot(t *testing.T) {
	svc, store := fixture(t, today)
	seedAppointment(store, monday, availability.MustClock(10, 0), 30, availability.StatusCancelled)
	if _, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(10, 0))); err != nil {
		t.Fatalf("Book over cancelled appointment: %v", err)
	}
}

func TestBook_DatabaseConflictMapsToSlotTaken(t *testing.T) {
	svc, store := fixture(t, today)
	store.exclusionViolation = true
	if _, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(9, 0))); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if len(store.state.appointments) != 0 || store.state.unread[bizID] != 0 {
		t.Fatal("failed booking must roll back")
	}
}

func TestBook_IdempotencyKey(t *testing.T) {
	svc, store := fixture(t, today)
	req := bookReq(availability.MustClock(14, 0))
	req.IdempotencyKey = "key-1"

	first, replayed, err := svc.Book(context.Background(), req)
	if err != nil || replayed {
		t.Fatalf("first Book: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("second Book: %v", err)
	}
	if !replayed || second.AppointmentID != first.AppointmentID {
		t.Fatalf("expected replay of %s, got %s (replayed=%v)", first.AppointmentID, second.AppointmentID, replayed)
	}
	if len(store.state.appointments) != 1 {
		t.Fatalf("expected one appointment, got %d", len(store.state.appointments))
	}

	other := bookReq(availability.MustClock(14, 0))
	other.IdempotencyKey = "key-2"
	if _, _, err := svc.Book(context.Background(), other); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if _, replayed, err := svc.Book(context.Background(), other); !errors.Is(err, ErrSlotTaken) || !replayed {
		t.Fatalf("expected replayed ErrSlotTaken, got replayed=%v err=%v", replayed, err)
	}
}

func TestBook_IdempotentReplayAfterDatePassed(t *testing.T) {
	svc, store := fixture(t, today)
	req := bookReq(availability.MustClock(11, 0))
	req.IdempotencyKey = "retry-1"

	first, _, err := svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("first Book: %v", err)
	}

	tuesday := time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC)
	later := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Now: func() time.Time { return tuesday },
	})
	second, replayed, err := later.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("retry after the date passed: %v", err)
	}
	if !replayed || second.AppointmentID != first.AppointmentID {
		t.Fatalf("expected replay of %s, got %s (replayed=%v)", first.AppointmentID, second.AppointmentID, replayed)
	}

	fresh := bookReq(availability.MustClock(12, 0))
	fresh.IdempotencyKey = "retry-2"
	if _, _, err := later.Book(context.Background(), fresh); !errors.Is(err, ErrDateUnavailable) {
		t.Fatalf("expected ErrDateUnavailable for a new key, got %v", err)
	}
	if _, ok := store.state.idempotency[bizID+"|retry-2"]; ok {
		t.Fatal("rejected request left an idempotency key behind")
	}
	if len(store.state.idempotency) != 1 {
		t.Fatalf("expected only the completed key, got %d", len(store.state.idempotency))
	}
}

func TestBook_Validation(t *testing.T) {
	svc, _ := fixture(t, today)
	cases := []struct {
		name   string
		mutate func(*BookRequest)
		want   error
	}{
		{name: "missing name", mutate: func(r *BookRequest) { r.ClientName = "  " }, want: ErrInvalidInput},
		{name: "bad email", mutate: func(r *BookRequest) { r.ClientEmail = "not-an-email" }, want: ErrInvalidInput},
		{name: "missing date", mutate: func(r *BookRequest) { r.Date = availability.Date{} }, want: ErrInvalidInput},
		{name: "inactive service", mutate: func(r *BookRequest) { r.ServiceID = "svc-retired" }, want: ErrNotFound},
		{name: "closed day", mutate: func(r *BookRequest) { r.Date = availability.NewDate(2024, 6, 15) }, want: ErrDateUnavailable},
		{name: "past day", mutate: func(r *BookRequest) { r.Date = availability.NewDate(2024, 5, 31) }, want: ErrDateUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := bookReq(availability.MustClock(9, 0))
			tc.mutate(&req)
			if _, _, err := svc.Book(context.Background(), req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBook_ConcurrentRequestsForSameSlot(t *testing.T) {
	svc, store := fixture(t, today)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		taken     int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(15, 0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || taken != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", successes, taken)
	}
	if len(store.state.appointments) != 1 {
		t.Fatalf("expected one stored appointment, got %d", len(store.state.appointments))
	}
}

func TestSetStatus(t *testing.T) {
	svc, store := fixture(t, today)
	conf, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(9, 0)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	appt, err := svc.SetStatus(context.Background(), bizID, conf.AppointmentID, "", true)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !appt.IsRead || store.state.unread[bizID] != 0 {
		t.Fatalf("expected read appointment and zero unread, got read=%v unread=%d", appt.IsRead, store.state.unread[bizID])
	}
	if n := len(store.eventsOfType(EventAppointmentStatusChanged)); n != 0 {
		t.Fatalf("marking read must not emit status events, got %d", n)
	}

	if _, err := svc.SetStatus(context.Background(), bizID, conf.AppointmentID, availability.StatusConfirmed, false); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), bizID, conf.AppointmentID, availability.StatusCompleted, false); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), bizID, conf.AppointmentID, availability.StatusPending, false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if n := len(store.eventsOfType(EventAppointmentStatusChanged)); n != 2 {
		t.Fatalf("expected 2 status events, got %d", n)
	}
	if store.state.unread[bizID] != 0 {
		t.Fatalf("unread counter must not go negative, got %d", store.state.unread[bizID])
	}

	if _, err := svc.SetStatus(context.Background(), bizID, "missing", availability.StatusConfirmed, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), "other-biz", conf.AppointmentID, availability.StatusCancelled, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), bizID, conf.AppointmentID, "no-show", false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to availability.Status
		want     bool
	}{
		{availability.StatusPending, availability.StatusConfirmed, true},
		{availability.StatusPending, availability.StatusCancelled, true},
		{availability.StatusConfirmed, availability.StatusCompleted, true},
		{availability.StatusPending, availability.StatusCompleted, false},
		{availability.StatusCancelled, availability.StatusPending, false},
		{availability.StatusCompleted, availability.StatusCancelled, false},
		{availability.StatusCancelled, availability.StatusCancelled, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCalendar(t *testing.T) {
	svc, _ := fixture(t, today)
	res, err := svc.Calendar(context.Background(), bizSlug, availability.NewDate(2024, 6, 20))
	if err != nil {
		t.Fatalf("Calendar: %v", err)
	}
	if len(res.Days) != 30 || res.From != availability.NewDate(2024, 6, 1) || res.To != availability.NewDate(2024, 6, 30) {
		t.Fatalf("unexpected range %s..%s with %d days", res.From, res.To, len(res.Days))
	}
	if res.Days[0].Reason != availability.ReasonClosed {
		t.Fatalf("2024-06-01 is a closed Saturday, got %+v", res.Days[0])
	}
	if !res.Days[9].Eligible {
		t.Fatalf("2024-06-10 should be eligible, got %+v", res.Days[9])
	}
}

func TestSetHours(t *testing.T) {
	svc, _ := fixture(t, today)
	_, err := svc.SetHours(context.Background(), bizID, []availability.DayHours{
		{Weekday: availability.Sunday, IsOpen: true, Open: availability.MustClock(12, 0), Close: availability.MustClock(12, 0)},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	hours, err := svc.SetHours(context.Background(), bizID, []availability.DayHours{
		{Weekday: availability.Sunday, IsOpen: true, Open: availability.MustClock(10, 0), Close: availability.MustClock(14, 0)},
	})
	if err != nil {
		t.Fatalf("SetHours: %v", err)
	}
	if len(hours) != 7 || hours[0].Weekday != availability.Sunday || !hours[0].IsOpen {
		t.Fatalf("expected Sunday first and open, got %+v", hours)
	}

	if _, err := svc.SetHours(context.Background(), "missing", hours); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	svc, _ := fixture(t, today)
	first, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(9, 0)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	second, _, err := svc.Book(context.Background(), bookReq(availability.MustClock(9, 30)))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	n, err := svc.Notifications(context.Background(), bizID, 10)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if n.UnreadCount != 2 || len(n.Recent) != 2 || n.Recent[0].ID != second.AppointmentID {
		t.Fatalf("unexpected notifications %+v", n)
	}

	if _, err := svc.SetStatus(context.Background(), bizID, first.AppointmentID, "", true); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, err = svc.Notifications(context.Background(), bizID, 10)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if n.UnreadCount != 1 || len(n.Recent) != 1 {
		t.Fatalf("expected one unread left, got %+v", n)
	}
}
