// Package sqlitestore is the embedded store backend. Each handle owns one
// pooled SQLite connection; booking transactions use BEGIN IMMEDIATE so a
// second writer waits on the database lock instead of racing.
package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

type Config struct {
	// Path of the database file. It is created when missing.
	Path     string
	PoolSize int
	Logger   *slog.Logger
}

type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitestore: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)
	return &Store{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Open takes a connection out of the pool for the lifetime of the handle.
// It blocks while all connections are in use.
func (s *Store) Open(ctx context.Context) (repository.Handle, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: take: %w", err)
	}
	return &Handle{queries: queries{conn: conn}, pool: s.pool}, nil
}

func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("sqlite store close error", "path", s.path, "error", err)
		return fmt.Errorf("sqlitestore: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", "path", s.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlitestore: schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS "user" (
    username  TEXT PRIMARY KEY,
    password  TEXT NOT NULL,
    real_name TEXT NOT NULL DEFAULT '',
    phone     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS flight (
    flight_id         TEXT PRIMARY KEY,
    departure         TEXT NOT NULL,
    destination       TEXT NOT NULL,
    departure_airport TEXT NOT NULL DEFAULT '',
    arrival_airport   TEXT NOT NULL DEFAULT '',
    depart_time       INTEGER NOT NULL,
    arrive_time       INTEGER NOT NULL,
    price             REAL NOT NULL DEFAULT 0,
    rest_seats        INTEGER NOT NULL CHECK (rest_seats >= 0)
);

CREATE TABLE IF NOT EXISTS ticket (
    order_id    TEXT PRIMARY KEY,
    username    TEXT NOT NULL REFERENCES "user"(username),
    flight_id   TEXT NOT NULL REFERENCES flight(flight_id),
    book_time   INTEGER NOT NULL,
    status      INTEGER NOT NULL DEFAULT 1,
    seat_number TEXT NOT NULL,
    UNIQUE (flight_id, seat_number)
);

CREATE INDEX IF NOT EXISTS idx_flight_depart_time ON flight(depart_time);
CREATE INDEX IF NOT EXISTS idx_ticket_username ON ticket(username);
`

// translate maps SQLite constraint failures onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintUnique, sqlite.ResultConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", repository.ErrAlreadyExists, err)
	case sqlite.ResultConstraintForeignKey:
		return fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	case sqlite.ResultConstraintCheck:
		return fmt.Errorf("%w: %w", repository.ErrNoSeats, err)
	}
	return err
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// queries holds the statements shared by Handle and Tx.
type queries struct {
	conn *sqlite.Conn
}

func (q queries) execute(query string, result func(stmt *sqlite.Stmt) error, args ...any) error {
	return translate(sqlitex.Execute(q.conn, query, &sqlitex.ExecOptions{Args: args, ResultFunc: result}))
}

func (q queries) UserExists(ctx context.Context, username string) (bool, error) {
	defer q.conn.SetInterrupt(q.conn.SetInterrupt(ctx.Done()))

	found := false
	err := q.execute(`SELECT 1 FROM "user" WHERE username = ?`, func(*sqlite.Stmt) error {
		found = true
		return nil
	}, username)
	return found, err
}

func (q queries) OccupiedSeats(ctx context.Context, flightID string) ([]string, error) {
	defer q.conn.SetInterrupt(q.conn.SetInterrupt(ctx.Done()))

	seats := make([]string, 0)
	err := q.execute(`SELECT seat_number FROM ticket WHERE flight_id = ? AND status = ? ORDER BY seat_number`,
		func(stmt *sqlite.Stmt) error {
			seats = append(seats, stmt.ColumnText(0))
			return nil
		}, flightID, int(domain.TicketStatusActive))
	return seats, err
}

var (
	_ repository.Opener = (*Store)(nil)
	_ repository.Handle = (*Handle)(nil)
	_ repository.Tx     = (*Tx)(nil)
)
