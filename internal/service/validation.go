package service

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/iliyamo/storefront-session/internal/model"
)

// maxAnonymousItems bounds how much client state one merge accepts.
const maxAnonymousItems = 500

// Credentials is the identity/password pair of login and registration.
type Credentials struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// Validate checks the fields required to attempt a login.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Identity, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.Password, validation.Required, validation.Length(1, 128)),
	)
}

// validateNew adds the password policy applied when an account is created.
func (c Credentials) validateNew() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Password, validation.Length(6, 128)),
	)
}

// ValidateAnonymousState rejects product ids of zero and quantities outside
// 1..MaxQuantity before anything touches the store.
func ValidateAnonymousState(s model.AnonymousState) error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Cart, validation.Length(0, maxAnonymousItems)),
		validation.Field(&s.Favorites, validation.Length(0, maxAnonymousItems)),
	)
	if err != nil {
		return invalid(err)
	}
	for i := range s.Cart {
		it := s.Cart[i]
		err := validation.ValidateStruct(&it,
			validation.Field(&it.ProductID, validation.Required),
			validation.Field(&it.Quantity, validation.Required, validation.Min(1), validation.Max(model.MaxQuantity)),
		)
		if err != nil {
			return invalid(validation.Errors{fmt.Sprintf("cart[%d]", i): err})
		}
	}
	for i, pid := range s.Favorites {
		if err := validation.Validate(pid, validation.Required); err != nil {
			return invalid(validation.Errors{fmt.Sprintf("favorites[%d]", i): err})
		}
	}
	return nil
}
