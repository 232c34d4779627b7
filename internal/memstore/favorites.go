package memstore

import (
	"context"

	"github.com/iliyamo/storefront-session/internal/repository"
)

// Favorites is the favorites table view of a Store.
type Favorites struct{ s *Store }

func (s *Store) Favorites() *Favorites { return &Favorites{s: s} }

func (f *Favorites) List(_ context.Context, accountID uint64) ([]uint64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return sortedKeys(f.s.favorites[accountID]), nil
}

func (f *Favorites) Add(_ context.Context, accountID, productID uint64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if !f.s.knownLocked(productID) {
		return repository.ErrUnknownProduct
	}
	favs := f.s.favsLocked(accountID)
	if _, ok := favs[productID]; ok {
		return repository.ErrConflict
	}
	favs[productID] = struct{}{}
	return nil
}

func (f *Favorites) Remove(_ context.Context, accountID, productID uint64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	favs := f.s.favorites[accountID]
	if _, ok := favs[productID]; !ok {
		return repository.ErrNotFound
	}
	delete(favs, productID)
	return nil
}
