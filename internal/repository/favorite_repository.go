package repository

import (
	"context"
	"database/sql"
	"strings"
)

// FavoriteRepo provides data access to the `favorites` table.
type FavoriteRepo struct{ DB *sql.DB }

func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{DB: db} }

// List returns the favorited product ids in ascending order.
func (r *FavoriteRepo) List(ctx context.Context, accountID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT product_id FROM favorites WHERE user_id=? ORDER BY product_id", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Add favorites a product.  Favoriting it twice is a conflict.
func (r *FavoriteRepo) Add(ctx context.Context, accountID, productID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO favorites (user_id, product_id) VALUES (?,?)", accountID, productID)
	return translate(err, ErrConflict)
}

// Remove drops a product from the favorites.
func (r *FavoriteRepo) Remove(ctx context.Context, accountID, productID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id=? AND product_id=?", accountID, productID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MergeTx unions productIDs into the account's favorites inside tx.
// Already present entries are left as they are.  Unlike INSERT IGNORE, the
// no-op update only swallows duplicates: a missing product still fails the
// statement and with it the caller's transaction.
func (r *FavoriteRepo) MergeTx(ctx context.Context, tx *sql.Tx, accountID uint64, productIDs []uint64) error {
	if len(productIDs) == 0 {
		return nil
	}
	var q strings.Builder
	q.WriteString("INSERT INTO favorites (user_id, product_id) VALUES ")
	args := make([]interface{}, 0, len(productIDs)*2)
	for i, pid := range productIDs {
		if i > 0 {
			q.WriteString(",")
		}
		q.WriteString("(?, ?)")
		args = append(args, accountID, pid)
	}
	q.WriteString(" ON DUPLICATE KEY UPDATE product_id = product_id")
	_, err := tx.ExecContext(ctx, q.String(), args...)
	return translate(err, nil)
}
