package availability

const DefaultHorizonMonths = 2

// Reason explains why a date cannot be booked. Empty means bookable.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonPast          Reason = "past"
	ReasonBeyondHorizon Reason = "beyond_horizon"
	ReasonClosed        Reason = "closed"
)

type Eligibility struct {
	Date     Date   `json:"date"`
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason,omitempty"`
}

// Policy decides which calendar dates a customer may pick.
type Policy struct {
	HorizonMonths int
}

func (p Policy) horizonMonths() int {
	if p.HorizonMonths <= 0 {
		return DefaultHorizonMonths
	}
	return p.HorizonMonths
}

// Horizon is the last bookable date. It is itself bookable.
func (p Policy) Horizon(today Date) Date {
	return today.AddMonths(p.horizonMonths())
}

// Check applies the rules in order: past, beyond horizon, closed weekday.
func (p Policy) Check(today, date Date, week WeekHours) Eligibility {
	e := Eligibility{Date: date}
	switch {
	case date.Before(today):
		e.Reason = ReasonPast
	case date.After(p.Horizon(today)):
		e.Reason = ReasonBeyondHorizon
	case !week.OpenOn(date):
		e.Reason = ReasonClosed
	default:
		e.Eligible = true
	}
	return e
}

// Calendar checks every date in [from, to]. An inverted range yields nothing.
func (p Policy) Calendar(today, from, to Date, week WeekHours) []Eligibility {
	if to.Before(from) {
		return []Eligibility{}
	}
	out := make([]Eligibility, 0, int(to.Time().Sub(from.Time()).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, p.Check(today, d, week))
	}
	return out
}
