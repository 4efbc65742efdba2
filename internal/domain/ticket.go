package domain

import "time"

type TicketStatus int

const (
	TicketStatusActive TicketStatus = 1
)

type Ticket struct {
	OrderID    string
	Username   string
	FlightID   string
	BookTime   time.Time
	Status     TicketStatus
	SeatNumber string
}

// Order is a ticket together with the itinerary of its flight.
type Order struct {
	OrderID          string
	Username         string
	FlightID         string
	BookTime         time.Time
	SeatNumber       string
	Departure        string
	Destination      string
	DepartureAirport string
	ArrivalAirport   string
	DepartTime       time.Time
	ArriveTime       time.Time
}
