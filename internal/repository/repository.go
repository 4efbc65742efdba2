package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/ftms/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrSeatTaken     = errors.New("seat already taken")
	ErrNoSeats       = errors.New("no seats left")
)

// Opener hands out store handles. Every backend provides one.
type Opener interface {
	Open(ctx context.Context) (Handle, error)
}

// Handle is one store session owned by a single connection worker.
// It must not be used from more than one goroutine at a time.
type Handle interface {
	GetUser(ctx context.Context, username string) (domain.User, error)
	CreateUser(ctx context.Context, user domain.User) error
	UserExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, username, realName, phone string) error
	UpdatePassword(ctx context.Context, username, password string) error

	SearchFlights(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error)
	ListFlights(ctx context.Context, limit int) ([]domain.Flight, error)
	GetFlight(ctx context.Context, flightID string) (domain.Flight, error)
	AddFlight(ctx context.Context, flight domain.Flight) error
	RestSeats(ctx context.Context, flightID string) (int, error)
	Cities(ctx context.Context) ([]string, error)

	UserOrders(ctx context.Context, username string) ([]domain.Order, error)
	OccupiedSeats(ctx context.Context, flightID string) ([]string, error)

	// InTx runs fn in one transaction. A non-nil error from fn rolls
	// everything back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close()
}

// Tx is the set of operations available inside a booking transaction.
type Tx interface {
	// LockFlight reads the flight and holds it against concurrent
	// inventory changes until the transaction ends.
	LockFlight(ctx context.Context, flightID string) (domain.Flight, error)
	GetTicket(ctx context.Context, orderID string) (domain.Ticket, error)
	UserExists(ctx context.Context, username string) (bool, error)
	OccupiedSeats(ctx context.Context, flightID string) ([]string, error)
	InsertTicket(ctx context.Context, ticket domain.Ticket) error
	DeleteTicket(ctx context.Context, orderID string) error
	// AddRestSeats adjusts the remaining seat count by delta. It fails with
	// ErrNoSeats when the count would drop below zero.
	AddRestSeats(ctx context.Context, flightID string, delta int) error
}
