package memstore

import (
	"context"

	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/repository"
)

// Carts is the cart table view of a Store.
type Carts struct{ s *Store }

func (s *Store) Carts() *Carts { return &Carts{s: s} }

func (c *Carts) List(_ context.Context, accountID uint64) ([]model.CartLine, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cart := c.s.carts[accountID]
	lines := []model.CartLine{}
	for _, pid := range sortedKeys(cart) {
		lines = append(lines, model.CartLine{AccountID: accountID, ProductID: pid, Quantity: cart[pid]})
	}
	return lines, nil
}

func (c *Carts) Add(_ context.Context, accountID, productID uint64, quantity int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if !c.s.knownLocked(productID) {
		return repository.ErrUnknownProduct
	}
	cart := c.s.cartLocked(accountID)
	cart[productID] = min(cart[productID]+quantity, model.MaxQuantity)
	return nil
}

func (c *Carts) SetQuantity(_ context.Context, accountID, productID uint64, quantity int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cart := c.s.carts[accountID]
	if _, ok := cart[productID]; !ok {
		return repository.ErrNotFound
	}
	cart[productID] = quantity
	return nil
}

func (c *Carts) Remove(_ context.Context, accountID, productID uint64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cart := c.s.carts[accountID]
	if _, ok := cart[productID]; !ok {
		return repository.ErrNotFound
	}
	delete(cart, productID)
	return nil
}
