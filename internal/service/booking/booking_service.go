package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/kafka"
	"github.com/Domenick1991/ftms/internal/metrics"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrFlightNotFound = errors.New("flight not found")
	ErrNoSeatsLeft    = errors.New("no seats left")
	ErrSeatTaken      = errors.New("seat already taken")
	ErrOrderNotFound  = errors.New("order not found")
	ErrRouteMismatch  = errors.New("new flight has a different route")
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidSeat    = errors.New("invalid seat number")
)

type BookingUseCase interface {
	BookTicket(ctx context.Context, h repository.Handle, input BookTicketInput) (string, error)
	CancelTicket(ctx context.Context, h repository.Handle, orderID string) error
	ChangeTicket(ctx context.Context, h repository.Handle, input ChangeTicketInput) (string, error)
	Orders(ctx context.Context, h repository.Handle, username string) ([]domain.Order, error)
}

type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookTicketInput struct {
	Username string
	FlightID string
	// SeatNumber is optional; empty means allocate one.
	SeatNumber string
}

type ChangeTicketInput struct {
	OrderID       string
	NewFlightID   string
	NewSeatNumber string
}

type BookingService struct {
	cache              Cache
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	attempts           int
	logger             *slog.Logger
	now                func() time.Time
	randN              func(n int) int
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, eventsTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = eventsTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithAllocationAttempts sets how many random seats are tried before the
// allocator falls back to scanning the seat map in order.
func WithAllocationAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n >= 0 {
			s.attempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

func NewBookingService(opts ...BookingServiceOption) *BookingService {
	service := &BookingService{
		attempts: 8,
		logger:   slog.Default(),
		now:      time.Now,
		randN:    rand.IntN,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// BookTicket books one seat on a flight and returns the new order id.
func (s *BookingService) BookTicket(ctx context.Context, h repository.Handle, input BookTicketInput) (string, error) {
	var ticket domain.Ticket

	err := h.InTx(ctx, func(tx repository.Tx) error {
		flight, err := lockFlight(ctx, tx, input.FlightID)
		if err != nil {
			return err
		}
		if flight.RestSeats <= 0 {
			return ErrNoSeatsLeft
		}

		ok, err := tx.UserExists(ctx, input.Username)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		ticket, err = s.issueTicket(ctx, tx, input.Username, flight.FlightID, input.SeatNumber)
		return err
	})
	s.record("book", err)
	if err != nil {
		return "", err
	}

	s.afterCommit(ctx, kafka.TicketEvent{
		Type:       kafka.EventTicketBooked,
		OrderID:    ticket.OrderID,
		Username:   ticket.Username,
		FlightID:   ticket.FlightID,
		SeatNumber: ticket.SeatNumber,
	})
	return ticket.OrderID, nil
}

// Orders lists the user's tickets joined with their flights.
func (s *BookingService) Orders(ctx context.Context, h repository.Handle, username string) ([]domain.Order, error) {
	orders, err := h.UserOrders(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", username, err)
	}
	return orders, nil
}

// CancelTicket deletes the order and returns its seat to the flight.
func (s *BookingService) CancelTicket(ctx context.Context, h repository.Handle, orderID string) error {
	var ticket domain.Ticket

	err := h.InTx(ctx, func(tx repository.Tx) error {
		var err error
		ticket, err = getTicket(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if _, err := lockFlight(ctx, tx, ticket.FlightID); err != nil {
			return err
		}
		if err := tx.DeleteTicket(ctx, orderID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		return tx.AddRestSeats(ctx, ticket.FlightID, 1)
	})
	s.record("cancel", err)
	if err != nil {
		return err
	}

	s.afterCommit(ctx, kafka.TicketEvent{
		Type:       kafka.EventTicketCancelled,
		OrderID:    ticket.OrderID,
		Username:   ticket.Username,
		FlightID:   ticket.FlightID,
		SeatNumber: ticket.SeatNumber,
	})
	return nil
}

// ChangeTicket moves an order to another flight on the same route. The old
// order is deleted and a new one is issued under a new order id.
func (s *BookingService) ChangeTicket(ctx context.Context, h repository.Handle, input ChangeTicketInput) (string, error) {
	var oldTicket, newTicket domain.Ticket

	err := h.InTx(ctx, func(tx repository.Tx) error {
		var err error
		oldTicket, err = getTicket(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}

		oldFlight, newFlight, err := lockPair(ctx, tx, oldTicket.FlightID, input.NewFlightID)
		if err != nil {
			return err
		}
		if !oldFlight.SameRoute(newFlight) {
			return ErrRouteMismatch
		}
		if newFlight.RestSeats <= 0 {
			return ErrNoSeatsLeft
		}

		if err := tx.DeleteTicket(ctx, oldTicket.OrderID); err != nil {
			return err
		}
		if err := tx.AddRestSeats(ctx, oldTicket.FlightID, 1); err != nil {
			return err
		}

		newTicket, err = s.issueTicket(ctx, tx, oldTicket.Username, newFlight.FlightID, input.NewSeatNumber)
		return err
	})
	s.record("change", err)
	if err != nil {
		return "", err
	}

	s.afterCommit(ctx, kafka.TicketEvent{
		Type:         kafka.EventTicketChanged,
		OrderID:      newTicket.OrderID,
		Username:     newTicket.Username,
		FlightID:     newTicket.FlightID,
		SeatNumber:   newTicket.SeatNumber,
		PrevOrderID:  oldTicket.OrderID,
		PrevFlightID: oldTicket.FlightID,
		PrevSeat:     oldTicket.SeatNumber,
	})
	return newTicket.OrderID, nil
}

// issueTicket allocates a seat, inserts the ticket and debits the flight.
func (s *BookingService) issueTicket(ctx context.Context, tx repository.Tx, username, flightID, seat string) (domain.Ticket, error) {
	seat, err := s.allocateSeat(ctx, tx, flightID, seat)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket := domain.Ticket{
		OrderID:    uuid.NewString(),
		Username:   username,
		FlightID:   flightID,
		BookTime:   s.now(),
		Status:     domain.TicketStatusActive,
		SeatNumber: seat,
	}
	if err := tx.InsertTicket(ctx, ticket); err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatTaken):
			return domain.Ticket{}, fmt.Errorf("%w: %s", ErrSeatTaken, seat)
		case errors.Is(err, repository.ErrNotFound):
			return domain.Ticket{}, ErrUserNotFound
		}
		return domain.Ticket{}, err
	}
	if err := tx.AddRestSeats(ctx, flightID, -1); err != nil {
		if errors.Is(err, repository.ErrNoSeats) {
			return domain.Ticket{}, ErrNoSeatsLeft
		}
		return domain.Ticket{}, err
	}
	return ticket, nil
}

// allocateSeat honours a requested seat when it is free. Otherwise it
// draws random seats a bounded number of times and then takes the first
// free seat in row order.
func (s *BookingService) allocateSeat(ctx context.Context, tx repository.Tx, flightID, requested string) (string, error) {
	if requested != "" && !domain.ValidSeat(requested) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeat, requested)
	}

	seats, err := tx.OccupiedSeats(ctx, flightID)
	if err != nil {
		return "", err
	}
	occupied := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		occupied[seat] = struct{}{}
	}

	if requested != "" {
		if _, taken := occupied[requested]; taken {
			return "", fmt.Errorf("%w: %s", ErrSeatTaken, requested)
		}
		return requested, nil
	}

	for i := 0; i < s.attempts; i++ {
		seat := domain.SeatNumber(1+s.randN(domain.SeatRows), s.randN(len(domain.SeatColumns)))
		if _, taken := occupied[seat]; !taken {
			return seat, nil
		}
	}
	for row := 1; row <= domain.SeatRows; row++ {
		for col := range len(domain.SeatColumns) {
			seat := domain.SeatNumber(row, col)
			if _, taken := occupied[seat]; !taken {
				return seat, nil
			}
		}
	}
	return "", ErrNoSeatsLeft
}

func lockFlight(ctx context.Context, tx repository.Tx, flightID string) (domain.Flight, error) {
	f, err := tx.LockFlight(ctx, flightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Flight{}, ErrFlightNotFound
		}
		return domain.Flight{}, err
	}
	return f, nil
}

// lockPair locks two flights in flight id order so that concurrent
// changes in opposite directions cannot deadlock.
func lockPair(ctx context.Context, tx repository.Tx, oldID, newID string) (oldFlight, newFlight domain.Flight, err error) {
	if oldID == newID {
		f, err := lockFlight(ctx, tx, oldID)
		return f, f, err
	}

	first, second := oldID, newID
	if second < first {
		first, second = second, first
	}
	a, err := lockFlight(ctx, tx, first)
	if err != nil {
		return domain.Flight{}, domain.Flight{}, err
	}
	b, err := lockFlight(ctx, tx, second)
	if err != nil {
		return domain.Flight{}, domain.Flight{}, err
	}
	if a.FlightID == oldID {
		return a, b, nil
	}
	return b, a, nil
}

func getTicket(ctx context.Context, tx repository.Tx, orderID string) (domain.Ticket, error) {
	t, err := tx.GetTicket(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Ticket{}, ErrOrderNotFound
		}
		return domain.Ticket{}, err
	}
	return t, nil
}

func (s *BookingService) record(operation string, err error) {
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.Bookings.WithLabelValues(operation, result).Inc()
}

// afterCommit invalidates cached searches and publishes the event. Both
// are best effort: the booking is already durable.
func (s *BookingService) afterCommit(ctx context.Context, event kafka.TicketEvent) {
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.logger.Warn("failed to invalidate flights cache", "error", err)
		}
	}

	event.OccurredAt = s.now()
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish ticket event", "type", event.Type, "order_id", event.OrderID, "error", err)
	}
}

func (s *BookingService) publish(ctx context.Context, event kafka.TicketEvent) error {
	if s.producer == nil || s.eventsTopic == "" {
		return nil
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, event.OrderID, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, event.OrderID, event)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
