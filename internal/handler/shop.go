package handler

import (
	"context"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/middleware"
	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/service"
)

// CartStore is the cart persistence used by ShopHandler.
type CartStore interface {
	List(ctx context.Context, accountID uint64) ([]model.CartLine, error)
	Add(ctx context.Context, accountID, productID uint64, quantity int) error
	SetQuantity(ctx context.Context, accountID, productID uint64, quantity int) error
	Remove(ctx context.Context, accountID, productID uint64) error
}

// FavoriteStore is the favorites persistence used by ShopHandler.
type FavoriteStore interface {
	List(ctx context.Context, accountID uint64) ([]uint64, error)
	Add(ctx context.Context, accountID, productID uint64) error
	Remove(ctx context.Context, accountID, productID uint64) error
}

// ShopHandler serves the signed-in shopper's cart and favorites.  Every
// route acts on the account in the access token; there is no way to address
// another account's data.
type ShopHandler struct {
	Guard     *service.SessionGuard
	Carts     CartStore
	Favorites FavoriteStore
	Log       zerolog.Logger
}

func NewShopHandler(g *service.SessionGuard, carts CartStore, favs FavoriteStore, log zerolog.Logger) *ShopHandler {
	return &ShopHandler{Guard: g, Carts: carts, Favorites: favs, Log: log}
}

type cartItemReq struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (r cartItemReq) validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(model.MaxQuantity)),
	)
	if err != nil {
		return &service.ValidationError{Fields: err}
	}
	return nil
}

type favoriteReq struct {
	ProductID uint64 `json:"product_id"`
}

type cartResp struct {
	Cart []model.AnonymousItem `json:"cart"`
}

type favoritesResp struct {
	Favorites []uint64 `json:"favorites"`
}

// GetCart lists the account's cart.
func (h *ShopHandler) GetCart(c echo.Context) error {
	return h.respondCart(c, http.StatusOK)
}

// AddToCart adds quantity to a line, creating it when needed.
func (h *ShopHandler) AddToCart(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := req.validate(); err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Carts.Add(ctx, middleware.AccountID(c), req.ProductID, req.Quantity); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.respondCart(c, http.StatusOK)
}

// UpdateCart sets the quantity of an existing line.
func (h *ShopHandler) UpdateCart(c echo.Context) error {
	var req cartItemReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := req.validate(); err != nil {
		return respondError(c, h.Log, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Carts.SetQuantity(ctx, middleware.AccountID(c), req.ProductID, req.Quantity); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.respondCart(c, http.StatusOK)
}

// RemoveFromCart deletes a line.
func (h *ShopHandler) RemoveFromCart(c echo.Context) error {
	pid, ok := productParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Carts.Remove(ctx, middleware.AccountID(c), pid); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.respondCart(c, http.StatusOK)
}

func (h *ShopHandler) respondCart(c echo.Context, status int) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	lines, err := h.Carts.List(ctx, middleware.AccountID(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	items := make([]model.AnonymousItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.AnonymousItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return c.JSON(status, cartResp{Cart: items})
}

// GetFavorites lists favorite product ids.
func (h *ShopHandler) GetFavorites(c echo.Context) error {
	return h.respondFavorites(c, http.StatusOK)
}

// AddFavorite adds a product; adding it twice is a 409.
func (h *ShopHandler) AddFavorite(c echo.Context) error {
	var req favoriteReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if req.ProductID == 0 {
		return respondError(c, h.Log, &service.ValidationError{
			Fields: validation.Errors{"product_id": validation.Validate(req.ProductID, validation.Required)},
		})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Favorites.Add(ctx, middleware.AccountID(c), req.ProductID); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.respondFavorites(c, http.StatusCreated)
}

// RemoveFavorite drops a product; removing one that is absent is a 404.
func (h *ShopHandler) RemoveFavorite(c echo.Context) error {
	pid, ok := productParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Favorites.Remove(ctx, middleware.AccountID(c), pid); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.respondFavorites(c, http.StatusOK)
}

func (h *ShopHandler) respondFavorites(c echo.Context, status int) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	ids, err := h.Favorites.List(ctx, middleware.AccountID(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if ids == nil {
		ids = []uint64{}
	}
	return c.JSON(status, favoritesResp{Favorites: ids})
}

// Sync merges anonymous state the client still holds, typically after the
// merge at login did not apply.
func (h *ShopHandler) Sync(c echo.Context) error {
	var state model.AnonymousState
	if err := c.Bind(&state); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	report, err := h.Guard.Sync(ctx, middleware.AccountID(c), state)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"applied": true, "cart_lines": report.CartLines, "favorites": report.Favorites})
}

func productParam(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("productId"), 10, 64)
	return id, err == nil && id != 0
}
