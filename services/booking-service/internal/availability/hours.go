package availability

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration marks input the engine refuses to compute with
// (for example an open day whose close is not after its open).
var ErrInvalidConfiguration = errors.New("invalid availability configuration")

// DayHours is the opening window of a business on one weekday.
// When IsOpen is false, Open and Close are ignored.
type DayHours struct {
	Weekday Weekday `json:"weekday"`
	IsOpen  bool    `json:"is_open"`
	Open    Clock   `json:"open"`
	Close   Clock   `json:"close"`
}

func (h DayHours) Validate() error {
	if !h.Weekday.Valid() {
		return fmt.Errorf("%w: weekday %d", ErrInvalidConfiguration, int(h.Weekday))
	}
	if !h.IsOpen {
		return nil
	}
	if h.Open < 0 || h.Close >= minutesPerDay {
		return fmt.Errorf("%w: %s hours outside the day", ErrInvalidConfiguration, h.Weekday)
	}
	if h.Close <= h.Open {
		return fmt.Errorf("%w: %s closes at %s, not after opening at %s", ErrInvalidConfiguration, h.Weekday, h.Close, h.Open)
	}
	return nil
}

// WeekHours holds at most one DayHours per weekday.
type WeekHours struct {
	days [7]DayHours
	set  [7]bool
}

func NewWeekHours(hours ...DayHours) (WeekHours, error) {
	var w WeekHours
	for _, h := range hours {
		if err := h.Validate(); err != nil {
			return WeekHours{}, err
		}
		if w.set[h.Weekday] {
			return WeekHours{}, fmt.Errorf("%w: duplicate hours for %s", ErrInvalidConfiguration, h.Weekday)
		}
		w.days[h.Weekday] = h
		w.set[h.Weekday] = true
	}
	return w, nil
}

// For returns the hours configured for a weekday, or nil when none are.
func (w WeekHours) For(day Weekday) *DayHours {
	if !day.Valid() || !w.set[day] {
		return nil
	}
	h := w.days[day]
	return &h
}

// OpenOn reports whether date falls on a configured, open weekday.
func (w WeekHours) OpenOn(date Date) bool {
	h := w.For(date.Weekday())
	return h != nil && h.IsOpen
}

// Days lists configured hours Sunday first.
func (w WeekHours) Days() []DayHours {
	out := make([]DayHours, 0, 7)
	for i, ok := range w.set {
		if ok {
			out = append(out, w.days[i])
		}
	}
	return out
}
