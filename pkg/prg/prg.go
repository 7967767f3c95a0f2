// Package prg implements the deterministic pseudorandom generator used to
// expand a 128-bit mask seed into a vector of masking values (spec.md §4.4).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/PRG.py (AES-128
// keyed on the seed, encrypting a zero buffer under a fixed nonce) and on
// other_examples/.../sixafter-nanoid__x-crypto-ctrdrbg-aes_ctr_drbg.go.go's
// use of stdlib crypto/aes + crypto/cipher.NewCTR for exactly this shape of
// "key the cipher with entropy, stream zeros through CTR" construction.
package prg

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"math/big"
)

// fixedIV is the 12-byte zero nonce concatenated with a zero initial
// counter (spec.md §4.4), forming the 16-byte IV stdlib CTR mode requires.
// Reusing a zero nonce is sound here only because every PRG seed is used
// exactly once: callers must never call Expand twice with the same seed.
var fixedIV = make([]byte, aes.BlockSize)

// SeedBits is the fixed width of a PRG seed.
const SeedBits = 128

// MaskSeed derives a 128-bit PRG key from an arbitrary-size integer by
// keeping its low 128 bits, per spec.md §4.4.
func MaskSeed(seed *big.Int) []byte {
	mask := new(big.Int).Lsh(big.NewInt(1), SeedBits)
	mask.Sub(mask, big.NewInt(1))
	v := new(big.Int).And(seed, mask)
	buf := make([]byte, SeedBits/8)
	v.FillBytes(buf)
	return buf
}

// Expand derives m integers, each reduced modulo 2^bits, from a 128-bit
// seed using AES-128 in CTR mode over a zero-filled nonce (spec.md §4.4).
func Expand(seed []byte, m int, bits int) ([]*big.Int, error) {
	if len(seed) != SeedBits/8 {
		return nil, fmt.Errorf("prg: seed must be %d bytes, got %d", SeedBits/8, len(seed))
	}
	block, err := aes.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("prg: %w", err)
	}

	chunkLen := (bits + 7) / 8
	stream := make([]byte, m*chunkLen)
	ctr := cipher.NewCTR(block, fixedIV)
	ctr.XORKeyStream(stream, stream)

	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	out := make([]*big.Int, m)
	for i := 0; i < m; i++ {
		chunk := stream[i*chunkLen : (i+1)*chunkLen]
		v := new(big.Int).SetBytes(chunk)
		out[i] = v.Mod(v, mask)
	}
	return out, nil
}
