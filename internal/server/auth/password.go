package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a salted bcrypt hash of raw with the given cost.
func HashPassword(raw string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether raw matches hash.
func ComparePassword(raw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
