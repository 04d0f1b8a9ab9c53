// Package apikey implements the server's bearer credential: an unstructured
// 128-bit random token. Clients hold the plaintext token; the database only
// ever stores the hex-encoded SHA-256 of its raw bytes.
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/gameroom/backend/internal/errs"
)

// Key is a plaintext api key. Not safe to store; store Hash() instead.
type Key [16]byte

// New generates a random key.
func New() Key {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return k
}

// String formats the key as the 32-character lowercase hex string presented
// to clients.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Hash returns the hex-encoded SHA-256 of the key's raw bytes (64 chars),
// the only form persisted in the users table.
func (k Key) Hash() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:])
}

// Parse decodes a key presented by a client.
func Parse(s string) (Key, error) {
	var k Key
	if len(s) != 32 {
		return k, errs.ErrMalformedApiKey
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, errs.ErrMalformedApiKey
	}
	copy(k[:], raw)
	return k, nil
}
