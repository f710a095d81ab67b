// Package crypto derives the session key material from the shared password
// and builds the AEAD that seals application data into plugin messages.
//
// Nonces are uniformly random per flush. There is no counter fallback: the
// 96-bit birthday bound is acceptable because sessions are short-lived (the
// supervisor rebuilds the session on any fault) and flush cadence is low.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NonceSize is the AES-GCM nonce size in bytes.
const NonceSize = 12

// TagSize is the AES-GCM authentication tag size in bytes.
const TagSize = 16

// usernamePrefix is prepended to the key digest to form a plausible player name.
const usernamePrefix = "Player"

// DeriveKey returns the AES-256 key for the given password.
func DeriveKey(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}

// Username derives the masquerade username announced in LoginStart: the
// literal "Player" followed by the first 8 hex characters of the key digest.
func Username(password string) string {
	h := DeriveKey(password)
	return usernamePrefix + hex.EncodeToString(h[:])[:8]
}

// NewAEAD builds the AES-256-GCM instance for the given password.
func NewAEAD(password string) (cipher.AEAD, error) {
	key := DeriveKey(password)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher(): %s", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM(): %s", err)
	}

	return aead, nil
}

// NewNonce returns a fresh random nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("rand.Read(): %s", err)
	}
	return nonce, nil
}
