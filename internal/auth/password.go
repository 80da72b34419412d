package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordMismatch is returned when a password does not match its stored value.
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its bcrypt hash.
func ComparePassword(hashed, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// VerifyPassword checks plain against a stored credential. Besides bcrypt it
// accepts unsalted SHA-256 hex digests and plaintext rows; legacy reports
// that the stored value should be rehashed.
func VerifyPassword(stored, plain string) (legacy bool, err error) {
	switch {
	case isBcryptHash(stored):
		return false, ComparePassword(stored, plain)
	case isSHA256Hex(stored):
		sum := sha256.Sum256([]byte(plain))
		if subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(hex.EncodeToString(sum[:]))) == 1 {
			return true, nil
		}
		return false, ErrPasswordMismatch
	default:
		if stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1 {
			return true, nil
		}
		return false, ErrPasswordMismatch
	}
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
