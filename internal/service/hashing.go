package service

import (
	"crypto/hmac"
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// applyPepper applies HMAC-SHA256 using the pepper as the key.
func applyPepper(password, pepper string) []byte {
	h := hmac.New(sha256.New, []byte(pepper))
	h.Write([]byte(password))
	return h.Sum(nil)
}

// hashPassword generates a bcrypt hash of the peppered password. bcrypt
// embeds its own per-hash salt; the cost stays at the library default.
func hashPassword(password, pepper string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(applyPepper(password, pepper), bcrypt.DefaultCost)
	return string(bytes), err
}

// checkPasswordHash compares a plain text password (after peppering) with
// a stored hash. Never returns an error: any failure is a non-match.
func checkPasswordHash(password, hash, pepper string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), applyPepper(password, pepper))
	return err == nil
}
