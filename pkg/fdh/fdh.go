// Package fdh implements the full-domain hash used to map a round tag onto
// an element of Z*_{N^2} for Joye-Libert encryption (spec.md §4.3).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/FullDomainHash.py
// (SHA-256 iterated with a trailing counter byte, trailing-bits truncation,
// retry on gcd failure), corrected per spec.md §4.3/§9 to accumulate digests
// across retries rather than the reference's single-block-only loop — the
// trailing-bits convention itself is preserved bit-exactly since on-the-wire
// ciphertexts must remain compatible with it.
package fdh

import (
	"crypto/sha256"
	"math/big"
)

var one = big.NewInt(1)

// Hasher is FDH(ℓ, N): a full-domain hash with output bit-length Bits whose
// range is restricted to Z*_N (equivalently Z*_{N^2}, since N and N^2 share
// the same prime factors).
type Hasher struct {
	Bits int
	N    *big.Int
}

// New builds a Hasher targeting `bits`-bit outputs coprime to n.
func New(bits int, n *big.Int) *Hasher {
	return &Hasher{Bits: bits, N: n}
}

// H maps t to an element of Z*_N of at most h.Bits bits, per spec.md §4.3:
// SHA-256(encode(t) || counter) blocks are concatenated (counter starting
// at 1, one byte, incremented per block) until at least h.Bits bits have
// accumulated; the trailing h.Bits bits of the accumulated digest string
// are interpreted as r. If gcd(r, N) != 1, another digest block is appended
// and the trailing h.Bits bits of the longer string are re-tested, until r
// is coprime to N. encode(t) is the big-endian representation of t in
// h.Bits/2 bytes.
func (h *Hasher) H(t *big.Int) *big.Int {
	encLen := h.Bits / 2
	enc := make([]byte, encLen)
	t.FillBytes(enc)

	var stream []byte
	counter := byte(1)
	for {
		block := make([]byte, 0, len(enc)+1)
		block = append(block, enc...)
		block = append(block, counter)
		sum := sha256.Sum256(block)
		stream = append(stream, sum[:]...)
		counter++

		if len(stream)*8 >= h.Bits {
			r := trailingBits(stream, h.Bits)
			if new(big.Int).GCD(nil, nil, r, h.N).Cmp(one) == 0 {
				return r
			}
		}
	}
}

// trailingBits returns the low `bits` bits of the integer formed by the
// trailing bytes of stream.
func trailingBits(stream []byte, bits int) *big.Int {
	nbytes := (bits + 7) / 8
	tail := stream[len(stream)-nbytes:]
	r := new(big.Int).SetBytes(tail)
	mask := new(big.Int).Lsh(one, uint(bits))
	mask.Sub(mask, one)
	return r.And(r, mask)
}
