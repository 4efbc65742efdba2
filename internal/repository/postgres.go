package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translatePgError maps driver errors onto the package sentinels.
func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrNoSeats, pgErr.ConstraintName)
		}
	}
	return err
}

type PGOpener struct {
	db *pgxpool.Pool
}

func NewPGOpener(db *pgxpool.Pool) *PGOpener {
	return &PGOpener{db: db}
}

// Open acquires a dedicated pool connection for the caller.
func (o *PGOpener) Open(ctx context.Context) (Handle, error) {
	conn, err := o.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &PGHandle{conn: conn}, nil
}

type PGHandle struct {
	conn *pgxpool.Conn
}

func (h *PGHandle) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := h.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (h *PGHandle) Close() {
	h.conn.Release()
}

type pgTx struct {
	q querier
}

var (
	_ Opener = (*PGOpener)(nil)
	_ Handle = (*PGHandle)(nil)
	_ Tx     = (*pgTx)(nil)
)
