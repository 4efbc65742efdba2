package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ticketSeatConstraint is the name PostgreSQL gives UNIQUE (flight_id, seat_number).
const ticketSeatConstraint = "ticket_flight_id_seat_number_key"

func (h *PGHandle) UserOrders(ctx context.Context, username string) ([]domain.Order, error) {
	rows, err := h.conn.Query(ctx, `
        SELECT t.order_id, t.username, t.flight_id, t.book_time, t.seat_number,
               f.departure, f.destination, f.departure_airport, f.arrival_airport, f.depart_time, f.arrive_time
        FROM ticket t
        JOIN flight f ON f.flight_id = t.flight_id
        WHERE t.username = $1
        ORDER BY f.depart_time DESC
    `, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.OrderID, &o.Username, &o.FlightID, &o.BookTime, &o.SeatNumber,
			&o.Departure, &o.Destination, &o.DepartureAirport, &o.ArrivalAirport, &o.DepartTime, &o.ArriveTime); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (h *PGHandle) OccupiedSeats(ctx context.Context, flightID string) ([]string, error) {
	return pgOccupiedSeats(ctx, h.conn, flightID)
}

func (t *pgTx) OccupiedSeats(ctx context.Context, flightID string) ([]string, error) {
	return pgOccupiedSeats(ctx, t.q, flightID)
}

func pgOccupiedSeats(ctx context.Context, q querier, flightID string) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT seat_number FROM ticket WHERE flight_id=$1 AND status=$2 ORDER BY seat_number`,
		flightID, domain.TicketStatusActive)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *pgTx) GetTicket(ctx context.Context, orderID string) (domain.Ticket, error) {
	var tk domain.Ticket
	err := t.q.QueryRow(ctx, `SELECT order_id, username, flight_id, book_time, status, seat_number FROM ticket WHERE order_id=$1`, orderID).
		Scan(&tk.OrderID, &tk.Username, &tk.FlightID, &tk.BookTime, &tk.Status, &tk.SeatNumber)
	if err != nil {
		return domain.Ticket{}, translatePgError(err)
	}
	return tk, nil
}

func (t *pgTx) InsertTicket(ctx context.Context, tk domain.Ticket) error {
	_, err := t.q.Exec(ctx, `INSERT INTO ticket (order_id, username, flight_id, book_time, status, seat_number) VALUES ($1, $2, $3, $4, $5, $6)`,
		tk.OrderID, tk.Username, tk.FlightID, tk.BookTime, tk.Status, tk.SeatNumber)
	return translateTicketInsert(err, tk)
}

// translateTicketInsert reports ErrSeatTaken only for the seat constraint;
// an order id clash stays ErrAlreadyExists.
func translateTicketInsert(err error, tk domain.Ticket) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == ticketSeatConstraint {
		return fmt.Errorf("%w: %s on %s", ErrSeatTaken, tk.SeatNumber, tk.FlightID)
	}
	return translatePgError(err)
}

func (t *pgTx) DeleteTicket(ctx context.Context, orderID string) error {
	res, err := t.q.Exec(ctx, `DELETE FROM ticket WHERE order_id=$1`, orderID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
