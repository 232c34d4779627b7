package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords with bcrypt.  Before hashing,
// the plain password is keyed with a server-side pepper through HMAC-SHA256,
// which also keeps the bcrypt input under its 72 byte limit.
type PasswordHasher struct {
	pepper []byte
	cost   int
	dummy  []byte
}

// NewPasswordHasher validates the pepper and work factor.
func NewPasswordHasher(pepper string, cost int) (*PasswordHasher, error) {
	if pepper == "" {
		return nil, errors.New("password pepper is empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	h := &PasswordHasher{pepper: []byte(pepper), cost: cost}
	dummy, err := bcrypt.GenerateFromPassword(h.peppered("not-a-password"), cost)
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns the bcrypt hash of the peppered password.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(h.peppered(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a stored hash with a plain password.
func (h *PasswordHasher) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), h.peppered(plain)) == nil
}

// Burn runs one comparison against a throwaway hash so that a login for an
// unknown identity costs as much as one with a wrong password.
func (h *PasswordHasher) Burn(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, h.peppered(plain))
}

func (h *PasswordHasher) peppered(plain string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(plain))
	return []byte(base64.RawStdEncoding.EncodeToString(mac.Sum(nil)))
}
