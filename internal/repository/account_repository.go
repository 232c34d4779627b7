package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/storefront-session/internal/model"
)

const accountColumns = "id, identity, password_hash, role, refresh_token, created_at"

// AccountRepo reads and creates rows of the `users` table.  Identities are
// stored and matched exactly as given: no case folding, no trimming.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Insert creates an account and returns its ID.
func (r *AccountRepo) Insert(ctx context.Context, identity, passwordHash, role string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (identity, password_hash, role) VALUES (?,?,?)",
		identity, passwordHash, role)
	if err != nil {
		return 0, translate(err, ErrIdentityExists)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindByIdentity fetches an account by exact identity.
func (r *AccountRepo) FindByIdentity(ctx context.Context, identity string) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE identity=? LIMIT 1", identity)
	return scanAccount(row)
}

// FindByID fetches an account by id.
func (r *AccountRepo) FindByID(ctx context.Context, id uint64) (model.Account, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanAccount(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a       model.Account
		refresh sql.NullString
	)
	err := row.Scan(&a.ID, &a.Identity, &a.PasswordHash, &a.Role, &refresh, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	if refresh.Valid {
		a.RefreshToken = &refresh.String
	}
	return a, nil
}
