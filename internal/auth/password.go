package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// HashPassword generates a salted Argon2id hash of the password. Both values
// are base64 encoded.
func HashPassword(password string) (hash, salt string, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	key := argon2.IDKey([]byte(password), raw, argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(raw), nil
}

// VerifyPassword compares a password with a salted hash in constant time.
func VerifyPassword(password, salt, hash string) (bool, error) {
	decodedSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	decodedHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}
	candidate := argon2.IDKey([]byte(password), decodedSalt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(decodedHash, candidate) == 1, nil
}

// EncodeSecret packs a hash and salt as "salt$hash", the form used in
// configuration.
func EncodeSecret(password string) (string, error) {
	hash, salt, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	return salt + "$" + hash, nil
}

// Secret is a configured "salt$hash" pair.
type Secret struct {
	Salt string
	Hash string
}

// ParseSecret splits a "salt$hash" value.
func ParseSecret(encoded string) (Secret, error) {
	salt, hash, ok := strings.Cut(encoded, "$")
	if !ok || salt == "" || hash == "" {
		return Secret{}, fmt.Errorf("malformed secret: want salt$hash")
	}
	return Secret{Salt: salt, Hash: hash}, nil
}

// Matches reports whether password hashes to s. A malformed secret never
// matches.
func (s Secret) Matches(password string) bool {
	ok, err := VerifyPassword(password, s.Salt, s.Hash)
	return err == nil && ok
}
