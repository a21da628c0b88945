package availability

import (
	"errors"
	"testing"
)

func weekdaysOpen(t *testing.T, closed ...Weekday) WeekHours {
	t.Helper()
	var hours []DayHours
	for d := Sunday; d <= Saturday; d++ {
		h := DayHours{Weekday: d, IsOpen: true, Open: MustClock(9, 0), Close: MustClock(18, 0)}
		for _, c := range closed {
			if c == d {
				h = DayHours{Weekday: d}
			}
		}
		hours = append(hours, h)
	}
	w, err := NewWeekHours(hours...)
	if err != nil {
		t.Fatalf("NewWeekHours: %v", err)
	}
	return w
}

func TestPolicyCheck(t *testing.T) {
	today := NewDate(2024, 6, 1)
	week := weekdaysOpen(t, Saturday)
	p := Policy{}

	cases := []struct {
		date   Date
		reason Reason
	}{
		{date: NewDate(2024, 5, 31), reason: ReasonPast},
		{date: NewDate(2024, 8, 5), reason: ReasonBeyondHorizon},
		{date: NewDate(2024, 8, 2), reason: ReasonBeyondHorizon},
		{date: NewDate(2024, 6, 15), reason: ReasonClosed},
		{date: NewDate(2024, 6, 10), reason: ReasonNone},
		{date: NewDate(2024, 8, 1), reason: ReasonNone},
	}
	for _, tc := range cases {
		got := p.Check(today, tc.date, week)
		if got.Reason != tc.reason || got.Eligible != (tc.reason == ReasonNone) {
			t.Fatalf("%s: got %+v, want reason %q", tc.date, got, tc.reason)
		}
	}
}

func TestPolicyCheck_RuleOrder(t *testing.T) {
	today := NewDate(2024, 6, 1)
	week := weekdaysOpen(t, Friday)
	// 2024-05-31 is a Friday: past wins over closed.
	if got := (Policy{}).Check(today, NewDate(2024, 5, 31), week); got.Reason != ReasonPast {
		t.Fatalf("expected past, got %q", got.Reason)
	}
	// 2024-08-09 is a Friday: horizon wins over closed.
	if got := (Policy{}).Check(today, NewDate(2024, 8, 9), week); got.Reason != ReasonBeyondHorizon {
		t.Fatalf("expected beyond horizon, got %q", got.Reason)
	}
}

func TestPolicyCheck_MissingWeekdayIsClosed(t *testing.T) {
	week, err := NewWeekHours(DayHours{Weekday: Tuesday, IsOpen: true, Open: MustClock(9, 0), Close: MustClock(12, 0)})
	if err != nil {
		t.Fatalf("NewWeekHours: %v", err)
	}
	if got := (Policy{}).Check(NewDate(2024, 6, 1), NewDate(2024, 6, 10), week); got.Reason != ReasonClosed {
		t.Fatalf("expected closed for unconfigured Monday, got %+v", got)
	}
}

func TestPolicyHorizon_ClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		today, want Date
		months      int
	}{
		{today: NewDate(2024, 6, 1), want: NewDate(2024, 8, 1), months: 2},
		{today: NewDate(2024, 12, 31), want: NewDate(2025, 2, 28), months: 2},
		{today: NewDate(2023, 12, 31), want: NewDate(2024, 2, 29), months: 2},
		{today: NewDate(2024, 1, 31), want: NewDate(2024, 4, 30), months: 3},
	}
	for _, tc := range cases {
		if got := (Policy{HorizonMonths: tc.months}).Horizon(tc.today); got != tc.want {
			t.Fatalf("Horizon(%s, %d) = %s, want %s", tc.today, tc.months, got, tc.want)
		}
	}
}

func TestPolicyCalendar(t *testing.T) {
	today := NewDate(2024, 6, 1)
	week := weekdaysOpen(t, Sunday)
	days := (Policy{}).Calendar(today, NewDate(2024, 5, 30), NewDate(2024, 6, 3), week)
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	want := []Reason{ReasonPast, ReasonPast, ReasonNone, ReasonClosed, ReasonNone}
	for i, d := range days {
		if d.Reason != want[i] {
			t.Fatalf("%s: got %q, want %q", d.Date, d.Reason, want[i])
		}
	}
	if got := (Policy{}).Calendar(today, NewDate(2024, 6, 3), NewDate(2024, 6, 1), week); len(got) != 0 {
		t.Fatalf("expected empty calendar for inverted range, got %d", len(got))
	}
}

func TestNewWeekHours_Rejects(t *testing.T) {
	if _, err := NewWeekHours(
		DayHours{Weekday: Monday},
		DayHours{Weekday: Monday, IsOpen: true, Open: MustClock(9, 0), Close: MustClock(10, 0)},
	); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected duplicate weekday error, got %v", err)
	}
	if _, err := NewWeekHours(DayHours{Weekday: Monday, IsOpen: true, Open: MustClock(10, 0), Close: MustClock(9, 0)}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected close-before-open error, got %v", err)
	}
	if _, err := NewWeekHours(DayHours{Weekday: 9}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid weekday error, got %v", err)
	}
}
