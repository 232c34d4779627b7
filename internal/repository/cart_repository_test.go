package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-session/internal/model"
)

func TestCartRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCartRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, quantity FROM cart WHERE user_id=?")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).AddRow(5, 2).AddRow(8, 1))

	lines, err := repo.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []model.CartLine{
		{AccountID: 1, ProductID: 5, Quantity: 2},
		{AccountID: 1, ProductID: 8, Quantity: 1},
	}, lines)
}

func TestCartRepo_AddUnknownProduct(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCartRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE quantity = LEAST(quantity + VALUES(quantity), 9999)")).
		WithArgs(uint64(1), uint64(99), 1).
		WillReturnError(&mysql.MySQLError{Number: 1452})

	err := repo.Add(context.Background(), 1, 99, 1)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCartRepo_SetQuantityAndRemoveMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCartRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cart SET quantity=?")).
		WithArgs(4, uint64(1), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart")).
		WithArgs(uint64(1), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetQuantity(context.Background(), 1, 5, 4), ErrNotFound)
	assert.ErrorIs(t, repo.Remove(context.Background(), 1, 5), ErrNotFound)
}

func TestCartRepo_MergeTxBuildsOneStatement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCartRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO cart (user_id, product_id, quantity) VALUES (?, ?, ?),(?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE quantity = LEAST(quantity + VALUES(quantity), 9999)")).
		WithArgs(uint64(1), uint64(5), 2, uint64(1), uint64(7), 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.MergeTx(context.Background(), tx, 1, []model.AnonymousItem{
		{ProductID: 5, Quantity: 2},
		{ProductID: 7, Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestCartRepo_MergeTxEmptyIsNoop(t *testing.T) {
	db, _ := newMock(t)
	repo := NewCartRepo(db)
	assert.NoError(t, repo.MergeTx(context.Background(), nil, 1, nil))
}

func TestCartRepo_MergeTxPassesThroughErrors(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCartRepo(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cart").WillReturnError(boom)
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.MergeTx(context.Background(), tx, 1, []model.AnonymousItem{{ProductID: 5, Quantity: 2}})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, tx.Rollback())
}
