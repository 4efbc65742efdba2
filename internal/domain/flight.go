package domain

import "time"

type Flight struct {
	FlightID         string
	Departure        string
	Destination      string
	DepartureAirport string
	ArrivalAirport   string
	DepartTime       time.Time
	ArriveTime       time.Time
	Price            float64
	RestSeats        int
}

// SameRoute reports whether both flights connect the same pair of cities.
func (f Flight) SameRoute(other Flight) bool {
	return f.Departure == other.Departure && f.Destination == other.Destination
}

// FlightQuery filters flights by partial city match and departure day.
// Empty fields and a zero Date match everything.
type FlightQuery struct {
	Departure   string
	Destination string
	Date        time.Time
}

// DayRange returns the [from, to) bounds of the queried departure day.
func (q FlightQuery) DayRange() (time.Time, time.Time) {
	y, m, d := q.Date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, q.Date.Location())
	return from, from.AddDate(0, 0, 1)
}
