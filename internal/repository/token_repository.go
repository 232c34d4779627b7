package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/storefront-session/internal/model"
)

// TokenRepo manages the single refresh token slot on each account.  Only
// the SHA-256 hex digest of a token is ever written.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// SetRefreshToken overwrites the account's token slot; nil clears it.
// Overwriting is what revokes the previous session.
func (r *TokenRepo) SetRefreshToken(ctx context.Context, accountID uint64, tokenHash *string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=? WHERE id=?", nullable(tokenHash), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FindByRefreshToken returns the account currently holding tokenHash.
func (r *TokenRepo) FindByRefreshToken(ctx context.Context, tokenHash string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE refresh_token=? LIMIT 1", tokenHash)
	return scanAccount(row)
}

// ClearRefreshToken empties the slot only if it still holds tokenHash.  The
// conditional update makes concurrent clears and a racing login safe: a
// newer token written in between is left untouched.
func (r *TokenRepo) ClearRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=NULL WHERE refresh_token=?", tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
