package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost balances hashing time against login throughput.
const bcryptCost = 10

// saltBytes is the length of the random salt mixed into every password
// before hashing. The salt is stored next to the hash.
const saltBytes = 32

// NewSalt returns a fresh random salt in hex form.
func NewSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// saltedDigest folds password+salt through SHA-256 so the bcrypt input
// stays under its 72-byte limit regardless of password length.
func saltedDigest(password, salt string) []byte {
	sum := sha256.Sum256([]byte(password + salt))
	return sum[:]
}

// HashPassword generates a new salt and hashes the salted password.
func HashPassword(password string) (salt, hash string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	h, err := bcrypt.GenerateFromPassword(saltedDigest(password, salt), bcryptCost)
	if err != nil {
		return "", "", err
	}
	return salt, string(h), nil
}

// VerifyPassword checks a plain password against a stored salt and hash.
func VerifyPassword(salt, hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), saltedDigest(password, salt)) == nil
}
