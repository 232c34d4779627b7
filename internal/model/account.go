package model

import "time"

// Role names carried in the role column and the access token.  Roles are
// compared by exact string match; there is no hierarchy between them.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account mirrors a row of the `users` table.
//
// RefreshToken holds the SHA-256 hex digest of the single live refresh
// token, or nil when the account has no session.  Writing a new value
// invalidates whatever token was there before.
type Account struct {
	ID           uint64    // users.id
	Identity     string    // users.identity (unique, case-sensitive)
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	RefreshToken *string   // users.refresh_token (nullable)
	CreatedAt    time.Time // users.created_at
}

// HasSession reports whether a refresh token is currently stored.
func (a Account) HasSession() bool { return a.RefreshToken != nil && *a.RefreshToken != "" }
