// Package memstore is an in-memory credential, cart and favorite store with
// the same contracts and error values as the MySQL repositories.  Tests and
// local demos use it in place of a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/repository"
	"github.com/iliyamo/storefront-session/internal/service"
)

// Store holds every table behind one mutex, which also makes Merge atomic.
type Store struct {
	mu        sync.Mutex
	nextID    uint64
	accounts  map[uint64]model.Account
	carts     map[uint64]map[uint64]int
	favorites map[uint64]map[uint64]struct{}
	products  map[uint64]struct{}
	failMerge error
}

// New returns an empty store.  With no products registered every product
// id is accepted; after AddProducts only those ids are.
func New() *Store {
	return &Store{
		accounts:  map[uint64]model.Account{},
		carts:     map[uint64]map[uint64]int{},
		favorites: map[uint64]map[uint64]struct{}{},
	}
}

// AddProducts restricts accepted product ids to the catalog given.
func (s *Store) AddProducts(ids ...uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.products == nil {
		s.products = map[uint64]struct{}{}
	}
	for _, id := range ids {
		s.products[id] = struct{}{}
	}
}

// FailMerges makes every following Merge return err (nil to stop).
func (s *Store) FailMerges(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMerge = err
}

// SetRole changes an account's role in place.
func (s *Store) SetRole(id uint64, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.Role = role
		s.accounts[id] = a
	}
}

func (s *Store) Insert(_ context.Context, identity, passwordHash, role string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Identity == identity {
			return 0, repository.ErrIdentityExists
		}
	}
	s.nextID++
	s.accounts[s.nextID] = model.Account{
		ID: s.nextID, Identity: identity, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now().UTC(),
	}
	return s.nextID, nil
}

func (s *Store) FindByIdentity(_ context.Context, identity string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Identity == identity {
			return copyAccount(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id uint64) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) SetRefreshToken(_ context.Context, accountID uint64, tokenHash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.RefreshToken = nil
	if tokenHash != nil {
		h := *tokenHash
		a.RefreshToken = &h
	}
	s.accounts[accountID] = a
	return nil
}

func (s *Store) FindByRefreshToken(_ context.Context, tokenHash string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.RefreshToken != nil && *a.RefreshToken == tokenHash {
			return copyAccount(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (s *Store) ClearRefreshToken(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.accounts {
		if a.RefreshToken != nil && *a.RefreshToken == tokenHash {
			a.RefreshToken = nil
			s.accounts[id] = a
			return true, nil
		}
	}
	return false, nil
}

// Merge applies anonymous state all-or-nothing with the same additive and
// set-union rules as the SQL reconciler.
func (s *Store) Merge(_ context.Context, accountID uint64, state model.AnonymousState) (service.MergeReport, error) {
	if err := service.ValidateAnonymousState(state); err != nil {
		return service.MergeReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMerge != nil {
		return service.MergeReport{}, s.failMerge
	}
	if state.IsEmpty() {
		return service.MergeReport{}, nil
	}
	for _, it := range state.Cart {
		if !s.knownLocked(it.ProductID) {
			return service.MergeReport{}, repository.ErrUnknownProduct
		}
	}
	for _, pid := range state.Favorites {
		if !s.knownLocked(pid) {
			return service.MergeReport{}, repository.ErrUnknownProduct
		}
	}
	favs := s.favsLocked(accountID)
	seen := map[uint64]struct{}{}
	for _, pid := range state.Favorites {
		favs[pid] = struct{}{}
		seen[pid] = struct{}{}
	}
	cart := s.cartLocked(accountID)
	for _, it := range state.Cart {
		cart[it.ProductID] = min(cart[it.ProductID]+it.Quantity, model.MaxQuantity)
	}
	return service.MergeReport{CartLines: len(state.Cart), Favorites: len(seen)}, nil
}

func (s *Store) knownLocked(pid uint64) bool {
	if s.products == nil {
		return true
	}
	_, ok := s.products[pid]
	return ok
}

func (s *Store) cartLocked(accountID uint64) map[uint64]int {
	c, ok := s.carts[accountID]
	if !ok {
		c = map[uint64]int{}
		s.carts[accountID] = c
	}
	return c
}

func (s *Store) favsLocked(accountID uint64) map[uint64]struct{} {
	f, ok := s.favorites[accountID]
	if !ok {
		f = map[uint64]struct{}{}
		s.favorites[accountID] = f
	}
	return f
}

func copyAccount(a model.Account) model.Account {
	if a.RefreshToken != nil {
		h := *a.RefreshToken
		a.RefreshToken = &h
	}
	return a
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
