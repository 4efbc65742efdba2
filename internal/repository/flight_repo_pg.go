package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/jackc/pgx/v5"
)

const flightColumns = `flight_id, departure, destination, departure_airport, arrival_airport, depart_time, arrive_time, price, rest_seats`

func scanFlight(row pgx.Row) (domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(&f.FlightID, &f.Departure, &f.Destination, &f.DepartureAirport, &f.ArrivalAirport,
		&f.DepartTime, &f.ArriveTime, &f.Price, &f.RestSeats)
	return f, err
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// searchFlightsQuery builds the search statement. Empty filters match
// everything; only flights with seats left are returned.
func searchFlightsQuery(q domain.FlightQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + flightColumns + ` FROM flight WHERE rest_seats > 0`)
	args := make([]any, 0, 4)

	if q.Departure != "" {
		args = append(args, q.Departure)
		fmt.Fprintf(&sb, ` AND departure LIKE '%%' || $%d || '%%'`, len(args))
	}
	if q.Destination != "" {
		args = append(args, q.Destination)
		fmt.Fprintf(&sb, ` AND destination LIKE '%%' || $%d || '%%'`, len(args))
	}
	if !q.Date.IsZero() {
		from, to := q.DayRange()
		args = append(args, from, to)
		fmt.Fprintf(&sb, ` AND depart_time >= $%d AND depart_time < $%d`, len(args)-1, len(args))
	}
	sb.WriteString(` ORDER BY depart_time`)
	return sb.String(), args
}

func (h *PGHandle) SearchFlights(ctx context.Context, q domain.FlightQuery) ([]domain.Flight, error) {
	sql, args := searchFlightsQuery(q)
	rows, err := h.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (h *PGHandle) ListFlights(ctx context.Context, limit int) ([]domain.Flight, error) {
	rows, err := h.conn.Query(ctx, `SELECT `+flightColumns+` FROM flight ORDER BY depart_time LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (h *PGHandle) GetFlight(ctx context.Context, flightID string) (domain.Flight, error) {
	f, err := scanFlight(h.conn.QueryRow(ctx, `SELECT `+flightColumns+` FROM flight WHERE flight_id=$1`, flightID))
	if err != nil {
		return domain.Flight{}, translatePgError(err)
	}
	return f, nil
}

func (h *PGHandle) AddFlight(ctx context.Context, f domain.Flight) error {
	_, err := h.conn.Exec(ctx, `INSERT INTO flight (`+flightColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.FlightID, f.Departure, f.Destination, f.DepartureAirport, f.ArrivalAirport, f.DepartTime, f.ArriveTime, f.Price, f.RestSeats)
	return translatePgError(err)
}

func (h *PGHandle) RestSeats(ctx context.Context, flightID string) (int, error) {
	var rest int
	if err := h.conn.QueryRow(ctx, `SELECT rest_seats FROM flight WHERE flight_id=$1`, flightID).Scan(&rest); err != nil {
		return 0, translatePgError(err)
	}
	return rest, nil
}

func (h *PGHandle) Cities(ctx context.Context) ([]string, error) {
	rows, err := h.conn.Query(ctx, `SELECT departure FROM flight UNION SELECT destination FROM flight ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *pgTx) LockFlight(ctx context.Context, flightID string) (domain.Flight, error) {
	f, err := scanFlight(t.q.QueryRow(ctx, `SELECT `+flightColumns+` FROM flight WHERE flight_id=$1 FOR UPDATE`, flightID))
	if err != nil {
		return domain.Flight{}, translatePgError(err)
	}
	return f, nil
}

func (t *pgTx) AddRestSeats(ctx context.Context, flightID string, delta int) error {
	res, err := t.q.Exec(ctx, `UPDATE flight SET rest_seats = rest_seats + $2 WHERE flight_id=$1`, flightID, delta)
	if err != nil {
		return translatePgError(err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
