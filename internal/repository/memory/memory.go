// Package memory is a process-local store backend. All handles share one
// Store; a single mutex serializes transactions the way row locks do in
// the SQL backends.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
)

type Store struct {
	mu      sync.Mutex
	users   map[string]domain.User
	flights map[string]domain.Flight
	tickets map[string]domain.Ticket
}

func New() *Store {
	return &Store{
		users:   make(map[string]domain.User),
		flights: make(map[string]domain.Flight),
		tickets: make(map[string]domain.Ticket),
	}
}

// Open never blocks; every handle is a view onto the same Store.
func (s *Store) Open(ctx context.Context) (repository.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Handle{store: s}, nil
}

// Tickets returns a snapshot of all tickets. Used by tests and the admin API.
func (s *Store) Tickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

type Handle struct {
	store  *Store
	closed bool
}

func (h *Handle) lock() func() {
	h.store.mu.Lock()
	return h.store.mu.Unlock
}

func (h *Handle) GetUser(ctx context.Context, username string) (domain.User, error) {
	defer h.lock()()
	u, ok := h.store.users[username]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (h *Handle) CreateUser(ctx context.Context, user domain.User) error {
	defer h.lock()()
	if _, ok := h.store.users[user.Username]; ok {
		return fmt.Errorf("%w: user %s", repository.ErrAlreadyExists, user.Username)
	}
	h.store.users[user.Username] = user
	return nil
}

func (h *Handle) UserExists(ctx context.Context, username string) (bool, error) {
	defer h.lock()()
	_, ok := h.store.users[username]
	return ok, nil
}

func (h *Handle) UpdateProfile(ctx context.Context, username, realName, phone string) error {
	defer h.lock()()
	u, ok := h.store.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	u.RealName = realName
	u.Phone = phone
	h.store.users[username] = u
	return nil
}

func (h *Handle) UpdatePassword(ctx context.Context, username, password string) error {
	defer h.lock()()
	u, ok := h.store.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = password
	h.store.users[username] = u
	return nil
}

func (h *Handle) SearchFlights(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	defer h.lock()()

	var from, to = q.DayRange()
	flights := make([]domain.Flight, 0)
	for _, f := range h.store.flights {
		if f.RestSeats <= 0 {
			continue
		}
		if !strings.Contains(f.Departure, q.Departure) || !strings.Contains(f.Destination, q.Destination) {
			continue
		}
		if !q.Date.IsZero() && (f.DepartTime.Before(from) || !f.DepartTime.Before(to)) {
			continue
		}
		flights = append(flights, f)
	}
	sortByDepart(flights)
	return flights, nil
}

func (h *Handle) ListFlights(ctx context.Context, limit int) ([]domain.Flight, error) {
	defer h.lock()()

	flights := make([]domain.Flight, 0, len(h.store.flights))
	for _, f := range h.store.flights {
		flights = append(flights, f)
	}
	sortByDepart(flights)
	if limit > 0 && len(flights) > limit {
		flights = flights[:limit]
	}
	return flights, nil
}

func sortByDepart(flights []domain.Flight) {
	sort.Slice(flights, func(i, j int) bool {
		if flights[i].DepartTime.Equal(flights[j].DepartTime) {
			return flights[i].FlightID < flights[j].FlightID
		}
		return flights[i].DepartTime.Before(flights[j].DepartTime)
	})
}

func (h *Handle) GetFlight(ctx context.Context, flightID string) (domain.Flight, error) {
	defer h.lock()()
	f, ok := h.store.flights[flightID]
	if !ok {
		return domain.Flight{}, repository.ErrNotFound
	}
	return f, nil
}

func (h *Handle) AddFlight(ctx context.Context, flight domain.Flight) error {
	defer h.lock()()
	if _, ok := h.store.flights[flight.FlightID]; ok {
		return fmt.Errorf("%w: flight %s", repository.ErrAlreadyExists, flight.FlightID)
	}
	if flight.RestSeats < 0 {
		return repository.ErrNoSeats
	}
	h.store.flights[flight.FlightID] = flight
	return nil
}

func (h *Handle) RestSeats(ctx context.Context, flightID string) (int, error) {
	defer h.lock()()
	f, ok := h.store.flights[flightID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return f.RestSeats, nil
}

func (h *Handle) Cities(ctx context.Context) ([]string, error) {
	defer h.lock()()

	seen := make(map[string]struct{})
	for _, f := range h.store.flights {
		seen[f.Departure] = struct{}{}
		seen[f.Destination] = struct{}{}
	}
	cities := make([]string, 0, len(seen))
	for c := range seen {
		cities = append(cities, c)
	}
	slices.Sort(cities)
	return cities, nil
}

func (h *Handle) UserOrders(ctx context.Context, username string) ([]domain.Order, error) {
	defer h.lock()()

	orders := make([]domain.Order, 0)
	for _, t := range h.store.tickets {
		if t.Username != username {
			continue
		}
		f := h.store.flights[t.FlightID]
		orders = append(orders, domain.Order{
			OrderID:          t.OrderID,
			Username:         t.Username,
			FlightID:         t.FlightID,
			BookTime:         t.BookTime,
			SeatNumber:       t.SeatNumber,
			Departure:        f.Departure,
			Destination:      f.Destination,
			DepartureAirport: f.DepartureAirport,
			ArrivalAirport:   f.ArrivalAirport,
			DepartTime:       f.DepartTime,
			ArriveTime:       f.ArriveTime,
		})
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].DepartTime.After(orders[j].DepartTime) })
	return orders, nil
}

func (h *Handle) OccupiedSeats(ctx context.Context, flightID string) ([]string, error) {
	defer h.lock()()
	return h.store.occupiedSeats(flightID), nil
}

func (s *Store) occupiedSeats(flightID string) []string {
	seats := make([]string, 0)
	for _, t := range s.tickets {
		if t.FlightID == flightID && t.Status == domain.TicketStatusActive {
			seats = append(seats, t.SeatNumber)
		}
	}
	slices.Sort(seats)
	return seats
}

// InTx holds the store mutex for the whole of fn. Mutations are recorded
// in an undo log and reverted when fn fails.
func (h *Handle) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer h.lock()()

	tx := &Tx{store: h.store}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (h *Handle) Close() {
	h.closed = true
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	return h.closed
}

type Tx struct {
	store *Store
	undo  []func()
}

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *Tx) LockFlight(ctx context.Context, flightID string) (domain.Flight, error) {
	f, ok := t.store.flights[flightID]
	if !ok {
		return domain.Flight{}, repository.ErrNotFound
	}
	return f, nil
}

func (t *Tx) GetTicket(ctx context.Context, orderID string) (domain.Ticket, error) {
	tk, ok := t.store.tickets[orderID]
	if !ok {
		return domain.Ticket{}, repository.ErrNotFound
	}
	return tk, nil
}

func (t *Tx) UserExists(ctx context.Context, username string) (bool, error) {
	_, ok := t.store.users[username]
	return ok, nil
}

func (t *Tx) OccupiedSeats(ctx context.Context, flightID string) ([]string, error) {
	return t.store.occupiedSeats(flightID), nil
}

func (t *Tx) InsertTicket(ctx context.Context, tk domain.Ticket) error {
	if _, ok := t.store.users[tk.Username]; !ok {
		return fmt.Errorf("%w: user %s", repository.ErrNotFound, tk.Username)
	}
	if _, ok := t.store.flights[tk.FlightID]; !ok {
		return fmt.Errorf("%w: flight %s", repository.ErrNotFound, tk.FlightID)
	}
	if _, ok := t.store.tickets[tk.OrderID]; ok {
		return fmt.Errorf("%w: order %s", repository.ErrAlreadyExists, tk.OrderID)
	}
	if slices.Contains(t.store.occupiedSeats(tk.FlightID), tk.SeatNumber) {
		return fmt.Errorf("%w: %s on %s", repository.ErrSeatTaken, tk.SeatNumber, tk.FlightID)
	}

	t.store.tickets[tk.OrderID] = tk
	t.undo = append(t.undo, func() { delete(t.store.tickets, tk.OrderID) })
	return nil
}

func (t *Tx) DeleteTicket(ctx context.Context, orderID string) error {
	tk, ok := t.store.tickets[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(t.store.tickets, orderID)
	t.undo = append(t.undo, func() { t.store.tickets[orderID] = tk })
	return nil
}

func (t *Tx) AddRestSeats(ctx context.Context, flightID string, delta int) error {
	f, ok := t.store.flights[flightID]
	if !ok {
		return repository.ErrNotFound
	}
	if f.RestSeats+delta < 0 {
		return fmt.Errorf("%w: flight %s", repository.ErrNoSeats, flightID)
	}
	prev := f.RestSeats
	f.RestSeats += delta
	t.store.flights[flightID] = f
	t.undo = append(t.undo, func() {
		f := t.store.flights[flightID]
		f.RestSeats = prev
		t.store.flights[flightID] = f
	})
	return nil
}

var (
	_ repository.Opener = (*Store)(nil)
	_ repository.Handle = (*Handle)(nil)
	_ repository.Tx     = (*Tx)(nil)
)
