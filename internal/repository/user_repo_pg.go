package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/ftms/internal/domain"
)

func (h *PGHandle) GetUser(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := h.conn.QueryRow(ctx, `SELECT username, password, real_name, phone FROM "user" WHERE username=$1`, username).
		Scan(&u.Username, &u.Password, &u.RealName, &u.Phone)
	if err != nil {
		return domain.User{}, translatePgError(err)
	}
	return u, nil
}

func (h *PGHandle) CreateUser(ctx context.Context, user domain.User) error {
	_, err := h.conn.Exec(ctx, `INSERT INTO "user" (username, password, real_name, phone) VALUES ($1, $2, $3, $4)`,
		user.Username, user.Password, user.RealName, user.Phone)
	return translatePgError(err)
}

func (h *PGHandle) UserExists(ctx context.Context, username string) (bool, error) {
	return pgUserExists(ctx, h.conn, username)
}

func (h *PGHandle) UpdateProfile(ctx context.Context, username, realName, phone string) error {
	res, err := h.conn.Exec(ctx, `UPDATE "user" SET real_name=$2, phone=$3 WHERE username=$1`, username, realName, phone)
	if err != nil {
		return translatePgError(err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (h *PGHandle) UpdatePassword(ctx context.Context, username, password string) error {
	res, err := h.conn.Exec(ctx, `UPDATE "user" SET password=$2 WHERE username=$1`, username, password)
	if err != nil {
		return translatePgError(err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) UserExists(ctx context.Context, username string) (bool, error) {
	return pgUserExists(ctx, t.q, username)
}

func pgUserExists(ctx context.Context, q querier, username string) (bool, error) {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM "user" WHERE username=$1`, username).Scan(&one)
	if err != nil {
		if errors.Is(translatePgError(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
