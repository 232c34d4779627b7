package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-session/internal/model"
)

var accountCols = []string{"id", "identity", "password_hash", "role", "refresh_token", "created_at"}

func TestAccountRepo_Insert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (identity, password_hash, role) VALUES (?,?,?)")).
		WithArgs("a@b.com", "hash", model.RoleUser).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Insert(context.Background(), "a@b.com", "hash", model.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestAccountRepo_InsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepo(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Insert(context.Background(), "a@b.com", "hash", model.RoleUser)
	assert.ErrorIs(t, err, ErrIdentityExists)
}

func TestAccountRepo_FindByIdentityIsExact(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepo(db)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE identity=?")).
		WithArgs(" A@b.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(3, " A@b.com", "hash", "user", nil, created))

	a, err := repo.FindByIdentity(context.Background(), " A@b.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), a.ID)
	assert.Equal(t, " A@b.com", a.Identity)
	assert.Nil(t, a.RefreshToken)
	assert.False(t, a.HasSession())
	assert.Equal(t, created, a.CreatedAt)
}

func TestAccountRepo_FindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(accountCols))

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
