// Package kas implements the ECDH key agreement scheme parties use to
// establish pairwise channel keys before exchanging setup shares (spec.md
// §4.6).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/KeyAggreement.py
// (ephemeral P-256 keypair, shared-secret X coordinate, SHA-256
// iterate-counter KDF) and stdlib crypto/ecdh, following the same idiom as
// other_examples/.../afcea7da_abdorrahmani-CryptoLens__internal-crypto-x25519.go.go.
package kas

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// ScalarBytes is the fixed width of a P-256 private scalar, big-endian.
const ScalarBytes = 32

// Curve is the fixed curve the scheme uses: NIST P-256.
func Curve() ecdh.Curve { return ecdh.P256() }

// KeyPair is an ephemeral ECDH keypair for one party.
type KeyPair struct {
	Private *ecdh.PrivateKey
	Public  *ecdh.PublicKey
}

// Generate creates a fresh ephemeral P-256 keypair.
func Generate() (*KeyPair, error) {
	priv, err := Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("kas: generate: %w", err)
	}
	return &KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}

// PublicBytes returns the uncompressed encoding of the public key, suitable
// for transmission in a setup message.
func (kp *KeyPair) PublicBytes() []byte { return kp.Public.Bytes() }

// PrivateScalar returns the raw big-endian scalar encoding of the private
// key. The pwmask protocol (spec.md §6, the CCS-17 variant) Shamir-shares
// this scalar directly so that a threshold of surviving peers can
// reconstruct a dropped user's DH key and recompute its pairwise masks.
func (kp *KeyPair) PrivateScalar() *big.Int { return new(big.Int).SetBytes(kp.Private.Bytes()) }

// PrivateFromScalar rebuilds a P-256 private key from a raw scalar
// recovered by threshold reconstruction, padding it to the curve's fixed
// scalar width.
func PrivateFromScalar(scalar *big.Int) (*ecdh.PrivateKey, error) {
	b := scalar.Bytes()
	if len(b) > ScalarBytes {
		return nil, fmt.Errorf("kas: scalar too large for P-256 (%d bytes)", len(b))
	}
	buf := make([]byte, ScalarBytes)
	copy(buf[ScalarBytes-len(b):], b)
	priv, err := Curve().NewPrivateKey(buf)
	if err != nil {
		return nil, fmt.Errorf("kas: invalid reconstructed private key: %w", err)
	}
	return priv, nil
}

// ParsePublic decodes a peer's uncompressed public key bytes.
func ParsePublic(b []byte) (*ecdh.PublicKey, error) {
	pub, err := Curve().NewPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("kas: invalid public key: %w", err)
	}
	return pub, nil
}

// SharedSecret computes Z = ECDH(priv, peerPub), the raw agreed secret
// before key derivation.
func SharedSecret(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey) ([]byte, error) {
	z, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("kas: ecdh: %w", err)
	}
	return z, nil
}

// DeriveKey expands a shared secret z into a key of exactly sizeBits bits
// by iterating SHA-256 over (z || counter), counter starting at 0 as a
// single byte, concatenating digests and keeping the last sizeBits/8 bytes
// (spec.md §4.6).
func DeriveKey(z []byte, sizeBits int) []byte {
	need := sizeBits / 8
	var stream []byte
	counter := byte(0)
	for len(stream) < need {
		sum := sha256.Sum256(append(append([]byte{}, z...), counter))
		stream = append(stream, sum[:]...)
		counter++
	}
	return stream[len(stream)-need:]
}

// Agree runs the full key agreement: derive a sizeBits-bit shared key from
// a local keypair and a peer's public key.
func Agree(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey, sizeBits int) ([]byte, error) {
	z, err := SharedSecret(priv, peerPub)
	if err != nil {
		return nil, err
	}
	return DeriveKey(z, sizeBits), nil
}
