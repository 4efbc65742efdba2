package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema when it does not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	migrations := []string{
		createUserTable,
		createFlightTable,
		createTicketTable,
		createFlightDepartIndex,
		createTicketUserIndex,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("database schema is up to date", "steps", len(migrations))
	return nil
}

const createUserTable = `
CREATE TABLE IF NOT EXISTS "user" (
    username  VARCHAR(64) PRIMARY KEY,
    password  VARCHAR(64) NOT NULL,
    real_name VARCHAR(64) NOT NULL DEFAULT '',
    phone     VARCHAR(32) NOT NULL DEFAULT ''
);`

const createFlightTable = `
CREATE TABLE IF NOT EXISTS flight (
    flight_id         VARCHAR(32) PRIMARY KEY,
    departure         VARCHAR(64) NOT NULL,
    destination       VARCHAR(64) NOT NULL,
    departure_airport VARCHAR(64) NOT NULL DEFAULT '',
    arrival_airport   VARCHAR(64) NOT NULL DEFAULT '',
    depart_time       TIMESTAMPTZ NOT NULL,
    arrive_time       TIMESTAMPTZ NOT NULL,
    price             DOUBLE PRECISION NOT NULL DEFAULT 0,
    rest_seats        INTEGER NOT NULL CHECK (rest_seats >= 0)
);`

const createTicketTable = `
CREATE TABLE IF NOT EXISTS ticket (
    order_id    VARCHAR(64) PRIMARY KEY,
    username    VARCHAR(64) NOT NULL REFERENCES "user"(username),
    flight_id   VARCHAR(32) NOT NULL REFERENCES flight(flight_id),
    book_time   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    status      INTEGER NOT NULL DEFAULT 1,
    seat_number VARCHAR(4) NOT NULL,

    CONSTRAINT ticket_flight_id_seat_number_key UNIQUE (flight_id, seat_number)
);`

const createFlightDepartIndex = `CREATE INDEX IF NOT EXISTS idx_flight_depart_time ON flight(depart_time);`

const createTicketUserIndex = `CREATE INDEX IF NOT EXISTS idx_ticket_username ON ticket(username);`
