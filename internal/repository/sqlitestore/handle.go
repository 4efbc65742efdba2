package sqlitestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

type Handle struct {
	queries
	pool *sqlitex.Pool
}

const flightColumns = `flight_id, departure, destination, departure_airport, arrival_airport, depart_time, arrive_time, price, rest_seats`

func scanFlight(stmt *sqlite.Stmt) domain.Flight {
	return domain.Flight{
		FlightID:         stmt.ColumnText(0),
		Departure:        stmt.ColumnText(1),
		Destination:      stmt.ColumnText(2),
		DepartureAirport: stmt.ColumnText(3),
		ArrivalAirport:   stmt.ColumnText(4),
		DepartTime:       fromMillis(stmt.ColumnInt64(5)),
		ArriveTime:       fromMillis(stmt.ColumnInt64(6)),
		Price:            stmt.ColumnFloat(7),
		RestSeats:        stmt.ColumnInt(8),
	}
}

func (h *Handle) GetUser(ctx context.Context, username string) (domain.User, error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))

	var (
		u     domain.User
		found bool
	)
	err := h.execute(`SELECT username, password, real_name, phone FROM "user" WHERE username = ?`, func(stmt *sqlite.Stmt) error {
		u = domain.User{
			Username: stmt.ColumnText(0),
			Password: stmt.ColumnText(1),
			RealName: stmt.ColumnText(2),
			Phone:    stmt.ColumnText(3),
		}
		found = true
		return nil
	}, username)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (h *Handle) CreateUser(ctx context.Context, user domain.User) error {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))
	return h.execute(`INSERT INTO "user" (username, password, real_name, phone) VALUES (?, ?, ?, ?)`, nil,
		user.Username, user.Password, user.RealName, user.Phone)
}

func (h *Handle) updateUser(ctx context.Context, query string, args ...any) error {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))
	if err := h.execute(query, nil, args...); err != nil {
		return err
	}
	if h.conn.Changes() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (h *Handle) UpdateProfile(ctx context.Context, username, realName, phone string) error {
	return h.updateUser(ctx, `UPDATE "user" SET real_name = ?, phone = ? WHERE username = ?`, realName, phone, username)
}

func (h *Handle) UpdatePassword(ctx context.Context, username, password string) error {
	return h.updateUser(ctx, `UPDATE "user" SET password = ? WHERE username = ?`, password, username)
}

func searchFlightsQuery(q domain.FlightQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + flightColumns + ` FROM flight WHERE rest_seats > 0`)
	var args []any
	if q.Departure != "" {
		sb.WriteString(` AND departure LIKE '%' || ? || '%'`)
		args = append(args, q.Departure)
	}
	if q.Destination != "" {
		sb.WriteString(` AND destination LIKE '%' || ? || '%'`)
		args = append(args, q.Destination)
	}
	if !q.Date.IsZero() {
		from, to := q.DayRange()
		sb.WriteString(` AND depart_time >= ? AND depart_time < ?`)
		args = append(args, millis(from), millis(to))
	}
	sb.WriteString(` ORDER BY depart_time`)
	return sb.String(), args
}

func (h *Handle) collectFlights(query string, args ...any) ([]domain.Flight, error) {
	flights := make([]domain.Flight, 0)
	err := h.execute(query, func(stmt *sqlite.Stmt) error {
		flights = append(flights, scanFlight(stmt))
		return nil
	}, args...)
	return flights, err
}

func (h *Handle) SearchFlights(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))
	query, args := searchFlightsQuery(q)
	return h.collectFlights(query, args...)
}

func (h *Handle) ListFlights(ctx context.Context, limit int) ([]domain.Flight, error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))
	return h.collectFlights(`SELECT `+flightColumns+` FROM flight ORDER BY depart_time LIMIT ?`, limit)
}

func (h *Handle) GetFlight(ctx context.Context, flightID string) (domain.Flight, error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))
	return getFlight(h.queries, flightID)
}

func getFlight(q queries, flightID string) (domain.Flight, error) {
	var (
		f     domain.Flight
		found bool
	)
	err := q.execute(`SELECT `+flightColumns+` FROM flight WHERE flight_id = ?`, func(stmt *sqlite.Stmt) error {
		f = scanFlight(stmt)
		found = true
		return nil
	}, flightID)
	if err != nil {
		return domain.Flight{}, err
	}
	if !found {
		return domain.Flight{}, repository.ErrNotFound
	}
	return f, nil
}

func (h *Handle) AddFlight(ctx context.Context, f domain.Flight) error {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))
	return h.execute(`INSERT INTO flight (`+flightColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, nil,
		f.FlightID, f.Departure, f.Destination, f.DepartureAirport, f.ArrivalAirport,
		millis(f.DepartTime), millis(f.ArriveTime), f.Price, f.RestSeats)
}

func (h *Handle) RestSeats(ctx context.Context, flightID string) (int, error) {
	f, err := h.GetFlight(ctx, flightID)
	if err != nil {
		return 0, err
	}
	return f.RestSeats, nil
}

func (h *Handle) Cities(ctx context.Context) ([]string, error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))

	cities := make([]string, 0)
	err := h.execute(`SELECT departure FROM flight UNION SELECT destination FROM flight ORDER BY 1`, func(stmt *sqlite.Stmt) error {
		cities = append(cities, stmt.ColumnText(0))
		return nil
	})
	return cities, err
}

func (h *Handle) UserOrders(ctx context.Context, username string) ([]domain.Order, error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))

	orders := make([]domain.Order, 0)
	err := h.execute(`
        SELECT t.order_id, t.username, t.flight_id, t.book_time, t.seat_number,
               f.departure, f.destination, f.departure_airport, f.arrival_airport, f.depart_time, f.arrive_time
        FROM ticket t
        JOIN flight f ON f.flight_id = t.flight_id
        WHERE t.username = ?
        ORDER BY f.depart_time DESC`,
		func(stmt *sqlite.Stmt) error {
			orders = append(orders, domain.Order{
				OrderID:          stmt.ColumnText(0),
				Username:         stmt.ColumnText(1),
				FlightID:         stmt.ColumnText(2),
				BookTime:         fromMillis(stmt.ColumnInt64(3)),
				SeatNumber:       stmt.ColumnText(4),
				Departure:        stmt.ColumnText(5),
				Destination:      stmt.ColumnText(6),
				DepartureAirport: stmt.ColumnText(7),
				ArrivalAirport:   stmt.ColumnText(8),
				DepartTime:       fromMillis(stmt.ColumnInt64(9)),
				ArriveTime:       fromMillis(stmt.ColumnInt64(10)),
			})
			return nil
		}, username)
	return orders, err
}

// InTx runs fn inside BEGIN IMMEDIATE. The write lock taken up front
// plays the role of SELECT ... FOR UPDATE on the flight rows.
func (h *Handle) InTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	defer h.conn.SetInterrupt(h.conn.SetInterrupt(ctx.Done()))

	endTransaction, err := sqlitex.ImmediateTransaction(h.conn)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer endTransaction(&err)

	return fn(&Tx{queries: h.queries})
}

// Close returns the connection to the pool.
func (h *Handle) Close() {
	h.pool.Put(h.conn)
}

type Tx struct {
	queries
}

func (t *Tx) LockFlight(ctx context.Context, flightID string) (domain.Flight, error) {
	return getFlight(t.queries, flightID)
}

func (t *Tx) GetTicket(ctx context.Context, orderID string) (domain.Ticket, error) {
	var (
		tk    domain.Ticket
		found bool
	)
	err := t.execute(`SELECT order_id, username, flight_id, book_time, status, seat_number FROM ticket WHERE order_id = ?`,
		func(stmt *sqlite.Stmt) error {
			tk = domain.Ticket{
				OrderID:    stmt.ColumnText(0),
				Username:   stmt.ColumnText(1),
				FlightID:   stmt.ColumnText(2),
				BookTime:   fromMillis(stmt.ColumnInt64(3)),
				Status:     domain.TicketStatus(stmt.ColumnInt(4)),
				SeatNumber: stmt.ColumnText(5),
			}
			found = true
			return nil
		}, orderID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !found {
		return domain.Ticket{}, repository.ErrNotFound
	}
	return tk, nil
}

func (t *Tx) InsertTicket(ctx context.Context, tk domain.Ticket) error {
	err := sqlitex.Execute(t.conn, `INSERT INTO ticket (order_id, username, flight_id, book_time, status, seat_number) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{tk.OrderID, tk.Username, tk.FlightID, millis(tk.BookTime), int(tk.Status), tk.SeatNumber}})
	if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
		return fmt.Errorf("%w: %s on %s", repository.ErrSeatTaken, tk.SeatNumber, tk.FlightID)
	}
	return translate(err)
}

func (t *Tx) DeleteTicket(ctx context.Context, orderID string) error {
	if err := t.execute(`DELETE FROM ticket WHERE order_id = ?`, nil, orderID); err != nil {
		return err
	}
	if t.conn.Changes() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *Tx) AddRestSeats(ctx context.Context, flightID string, delta int) error {
	if err := t.execute(`UPDATE flight SET rest_seats = rest_seats + ? WHERE flight_id = ?`, nil, delta, flightID); err != nil {
		return err
	}
	if t.conn.Changes() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
