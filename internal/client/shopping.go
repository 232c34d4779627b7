package client

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/iliyamo/storefront-session/internal/model"
)

// Cart, favorite and their mutations act on the server while signed in
// and on the local state while signed out.  Both sides follow the same
// rules: adding to the cart sums quantities, setting a quantity needs an
// existing line, and a favorite can only be added once.  Locally a line
// never exceeds model.MaxQuantity, so the state always passes the server's
// merge validation.

type cartBody struct {
	Cart []model.AnonymousItem `json:"cart"`
}

type favoritesBody struct {
	Favorites []uint64 `json:"favorites"`
}

type cartItemBody struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart returns the current cart.
func (a *Agent) Cart(ctx context.Context) ([]model.AnonymousItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity == nil {
		return append([]model.AnonymousItem{}, a.state.Cart...), nil
	}
	var out cartBody
	err := a.authed(ctx, http.MethodGet, "/v1/cart", nil, &out)
	return out.Cart, err
}

// AddToCart adds quantity of a product.
func (a *Agent) AddToCart(ctx context.Context, productID uint64, quantity int) error {
	if productID == 0 || quantity < 1 || quantity > model.MaxQuantity {
		return ErrInvalidInput
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity != nil {
		return a.authed(ctx, http.MethodPost, "/v1/cart", cartItemBody{productID, quantity}, nil)
	}
	for i := range a.state.Cart {
		if a.state.Cart[i].ProductID == productID {
			if a.state.Cart[i].Quantity > model.MaxQuantity-quantity {
				return ErrInvalidInput
			}
			a.state.Cart[i].Quantity += quantity
			return a.save()
		}
	}
	a.state.Cart = append(a.state.Cart, model.AnonymousItem{ProductID: productID, Quantity: quantity})
	sort.Slice(a.state.Cart, func(i, j int) bool { return a.state.Cart[i].ProductID < a.state.Cart[j].ProductID })
	return a.save()
}

// SetCartQuantity overwrites the quantity of a line already in the cart.
func (a *Agent) SetCartQuantity(ctx context.Context, productID uint64, quantity int) error {
	if productID == 0 || quantity < 1 || quantity > model.MaxQuantity {
		return ErrInvalidInput
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity != nil {
		return a.authed(ctx, http.MethodPut, "/v1/cart", cartItemBody{productID, quantity}, nil)
	}
	for i := range a.state.Cart {
		if a.state.Cart[i].ProductID == productID {
			a.state.Cart[i].Quantity = quantity
			return a.save()
		}
	}
	return ErrNotFound
}

// RemoveFromCart drops a line.
func (a *Agent) RemoveFromCart(ctx context.Context, productID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity != nil {
		return a.authed(ctx, http.MethodDelete, "/v1/cart/"+strconv.FormatUint(productID, 10), nil, nil)
	}
	for i := range a.state.Cart {
		if a.state.Cart[i].ProductID == productID {
			a.state.Cart = append(a.state.Cart[:i], a.state.Cart[i+1:]...)
			return a.save()
		}
	}
	return ErrNotFound
}

// Favorites returns the favorite product ids.
func (a *Agent) Favorites(ctx context.Context) ([]uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity == nil {
		return append([]uint64{}, a.state.Favorites...), nil
	}
	var out favoritesBody
	err := a.authed(ctx, http.MethodGet, "/v1/favorites", nil, &out)
	return out.Favorites, err
}

// AddFavorite adds a product to the favorites.
func (a *Agent) AddFavorite(ctx context.Context, productID uint64) error {
	if productID == 0 {
		return ErrInvalidInput
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity != nil {
		return a.authed(ctx, http.MethodPost, "/v1/favorites", map[string]uint64{"product_id": productID}, nil)
	}
	for _, id := range a.state.Favorites {
		if id == productID {
			return ErrConflict
		}
	}
	a.state.Favorites = append(a.state.Favorites, productID)
	return a.save()
}

// RemoveFavorite removes a product from the favorites.
func (a *Agent) RemoveFavorite(ctx context.Context, productID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Identity != nil {
		return a.authed(ctx, http.MethodDelete, "/v1/favorites/"+strconv.FormatUint(productID, 10), nil, nil)
	}
	for i, id := range a.state.Favorites {
		if id == productID {
			a.state.Favorites = append(a.state.Favorites[:i], a.state.Favorites[i+1:]...)
			return a.save()
		}
	}
	return ErrNotFound
}
