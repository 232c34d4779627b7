package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/iliyamo/storefront-session/internal/model"
)

// addQuantity sums an incoming quantity into an existing line, clamped to
// model.MaxQuantity so the column never overflows.
var addQuantity = "ON DUPLICATE KEY UPDATE quantity = LEAST(quantity + VALUES(quantity), " +
	strconv.Itoa(model.MaxQuantity) + ")"

// CartRepo provides data access to the `cart` table.
type CartRepo struct{ DB *sql.DB }

func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{DB: db} }

// List returns the account's cart ordered by product.
func (r *CartRepo) List(ctx context.Context, accountID uint64) ([]model.CartLine, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT product_id, quantity FROM cart WHERE user_id=? ORDER BY product_id", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []model.CartLine{}
	for rows.Next() {
		l := model.CartLine{AccountID: accountID}
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Add puts quantity more of a product into the cart, creating the line
// when it does not exist yet.
func (r *CartRepo) Add(ctx context.Context, accountID, productID uint64, quantity int) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO cart (user_id, product_id, quantity) VALUES (?,?,?) "+addQuantity,
		accountID, productID, quantity)
	return translate(err, nil)
}

// SetQuantity overwrites the quantity of an existing line.
func (r *CartRepo) SetQuantity(ctx context.Context, accountID, productID uint64, quantity int) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE cart SET quantity=? WHERE user_id=? AND product_id=?", quantity, accountID, productID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Remove deletes a line.
func (r *CartRepo) Remove(ctx context.Context, accountID, productID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM cart WHERE user_id=? AND product_id=?", accountID, productID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MergeTx adds anonymous cart items to the account's cart inside tx.
// Existing lines are summed with the incoming quantity (up to
// model.MaxQuantity), never overwritten;
// a product repeated in items accumulates as well.  The caller owns the
// transaction.  An empty slice is a no-op.
func (r *CartRepo) MergeTx(ctx context.Context, tx *sql.Tx, accountID uint64, items []model.AnonymousItem) error {
	if len(items) == 0 {
		return nil
	}
	var q strings.Builder
	q.WriteString("INSERT INTO cart (user_id, product_id, quantity) VALUES ")
	args := make([]interface{}, 0, len(items)*3)
	for i, it := range items {
		if i > 0 {
			q.WriteString(",")
		}
		q.WriteString("(?, ?, ?)")
		args = append(args, accountID, it.ProductID, it.Quantity)
	}
	q.WriteString(" " + addQuantity)
	_, err := tx.ExecContext(ctx, q.String(), args...)
	return translate(err, nil)
}
