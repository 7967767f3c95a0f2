// Package aead implements the pairwise AES-GCM-128 encrypted channel used to
// deliver setup shares between clients (spec.md §4.5).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/AESGCM128.py
// (EncryptionKey.encrypt/decrypt wrapping an AEAD ciphertext with its tag
// and nonce) and stdlib crypto/cipher.NewGCM, the same pairing
// other_examples/.../afcea7da_abdorrahmani-CryptoLens__internal-crypto-x25519.go.go
// uses for its own derived-key AEAD channel.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// KeySize is the fixed AES-GCM-128 key length in bytes.
const KeySize = 16

// Key derives a 16-byte AEAD key from an agreed secret, truncating or
// left-padding with zeros as needed, per spec.md §4.5.
func Key(secret []byte) []byte {
	k := make([]byte, KeySize)
	if len(secret) >= KeySize {
		copy(k, secret[:KeySize])
		return k
	}
	copy(k[KeySize-len(secret):], secret)
	return k
}

// Message is a sealed AEAD payload: nonce and ciphertext+tag travel
// together so Open needs no side channel.
type Message struct {
	Nonce      []byte
	Ciphertext []byte // includes the GCM authentication tag
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aead: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random nonce, optionally
// authenticating associated data that is not encrypted.
func Seal(key, plaintext, associatedData []byte) (*Message, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aead: nonce: %w", err)
	}
	ct := gcm.Seal(nil, nonce, plaintext, associatedData)
	return &Message{Nonce: nonce, Ciphertext: ct}, nil
}

// Open decrypts and authenticates m under key, failing when the tag does
// not verify (spec.md §7, AuthenticationFailure).
func Open(key []byte, m *Message, associatedData []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	pt, err := gcm.Open(nil, m.Nonce, m.Ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("aead: authentication failed: %w", err)
	}
	return pt, nil
}
