// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let the service and handler layers
// distinguish failure scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup or a targeted update/delete
// matches no row.
var ErrNotFound = errors.New("not found")

// ErrIdentityExists is returned when registering an identity that is
// already taken.  Handlers should translate this into an HTTP 409 response.
var ErrIdentityExists = errors.New("identity already exists")

// ErrConflict is returned when an insert collides with an existing row,
// such as favoriting a product twice.
var ErrConflict = errors.New("conflict")

// ErrUnknownProduct is returned when a cart or favorite row references a
// product the catalog does not have.
var ErrUnknownProduct = errors.New("unknown product")

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

// translate maps constraint violations to the sentinels above.
func translate(err error, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case isMySQLError(err, mysqlDuplicateEntry) && duplicate != nil:
		return duplicate
	case isMySQLError(err, mysqlNoReferencedRow):
		return ErrUnknownProduct
	}
	return err
}
