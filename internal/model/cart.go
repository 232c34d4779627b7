package model

// CartLine is a row of the `cart` table, unique per (account, product).
// Quantity is always positive; a line that would drop to zero is deleted.
type CartLine struct {
	AccountID uint64
	ProductID uint64
	Quantity  int
}

// MaxQuantity caps a single cart line.  Sums past it are clamped by the
// stores and refused by validation.
const MaxQuantity = 9999

// AnonymousItem is one cart line held by a signed-out client.
type AnonymousItem struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AnonymousState is the cart and favorite set a client accumulated before
// authenticating.  It is sent once with login or registration and then
// discarded by the client.
type AnonymousState struct {
	Cart      []AnonymousItem `json:"cart,omitempty"`
	Favorites []uint64        `json:"favorites,omitempty"`
}

// IsEmpty reports whether there is nothing to reconcile.
func (s AnonymousState) IsEmpty() bool { return len(s.Cart) == 0 && len(s.Favorites) == 0 }
