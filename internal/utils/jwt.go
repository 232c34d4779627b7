package utils // package utils provides helpers for token creation and hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/storefront-session/internal/model"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, wrong kind, malformed claims and expiry alike.
var ErrInvalidToken = errors.New("invalid token")

// TokenKind separates access tokens from refresh tokens.  Each kind is
// signed with its own secret and carries its kind in the typ claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the payload of both token kinds.  Refresh tokens leave Identity
// and Role empty; the account row is the source of truth for those.
type Claims struct {
	AccountID uint64    `json:"uid"`
	Identity  string    `json:"identity,omitempty"`
	Role      string    `json:"role,omitempty"`
	Kind      TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// AccessToken is a signed access JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a signed refresh JWT.  Raw goes to the client; the server
// keeps only HashRefreshRaw(Raw).
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// TokenIssuer signs and verifies tokens.  It holds no per-request state and
// never consults the store.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// IssuerOption customises a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) { i.now = now }
}

// NewTokenIssuer fails on missing or shared secrets and non-positive TTLs;
// these are configuration errors that must stop startup.
func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) (*TokenIssuer, error) {
	switch {
	case accessSecret == "" || refreshSecret == "":
		return nil, errors.New("token signing secrets are required")
	case accessSecret == refreshSecret:
		return nil, errors.New("access and refresh secrets must differ")
	case accessTTL <= 0 || refreshTTL <= 0:
		return nil, errors.New("token TTLs must be positive")
	}
	i := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccessToken signs a short-lived token carrying the account's id,
// identity and role.
func (i *TokenIssuer) IssueAccessToken(a model.Account) (AccessToken, error) {
	now := i.now().UTC()
	exp := now.Add(i.accessTTL)
	claims := Claims{
		AccountID: a.ID,
		Identity:  a.Identity,
		Role:      a.Role,
		Kind:      KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(a.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// IssueRefreshToken signs a long-lived token for the account.  The jti makes
// two tokens issued within the same second distinct, so a second login
// always displaces the first.
func (i *TokenIssuer) IssueRefreshToken(a model.Account) (RefreshToken, error) {
	now := i.now().UTC()
	exp := now.Add(i.refreshTTL)
	claims := Claims{
		AccountID: a.ID,
		Kind:      KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(a.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return RefreshToken{Raw: signed, Exp: exp}, nil
}

// Verify checks signature, kind and expiry of a token.
func (i *TokenIssuer) Verify(raw string, kind TokenKind) (*Claims, error) {
	var secret []byte
	switch kind {
	case KindAccess:
		secret = i.accessSecret
	case KindRefresh:
		secret = i.refreshSecret
	default:
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid || claims.Kind != kind || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashRefreshRaw returns the SHA-256 hex digest stored in place of the raw
// refresh token.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
