// Package vector implements the vector encoding (VE) scheme that packs a
// vector of small plaintexts into the minimum number of Joye-Libert
// residues, leaving enough headroom per slot for additive overflow across
// up to `n` summed ciphertexts (spec.md §4.9).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/VectorEncoding.py
// (VES.encode/decode/_batch/_debatch), reworked onto math/big.
package vector

import (
	"fmt"
	"math/big"
)

// Scheme is one VES(ptsize, addops, valuesize, vectorsize) instance: its
// derived element width, batch size, and batch count are fixed once at
// construction (spec.md §4.9).
type Scheme struct {
	PlaintextBits int // P: bits available per residue slot
	MaxAdds       int // n: max number of ciphertexts ever summed together
	ValueBits     int // v: bits per plaintext element before overflow headroom
	VectorSize    int // d: number of elements in the vector being encoded

	ElementBits int // e = v + ceil(log2(n))
	BatchSize   int // B = floor(P / e)
	NumBatches  int // K = ceil(d / B)
}

// NewScheme derives a VES instance's element width, batch size, and batch
// count from its four parameters, per spec.md §4.9.
func NewScheme(plaintextBits, maxAdds, valueBits, vectorSize int) (*Scheme, error) {
	if maxAdds < 1 {
		return nil, fmt.Errorf("vector: maxAdds must be >= 1, got %d", maxAdds)
	}
	overflowBits := ceilLog2(maxAdds)
	elementBits := valueBits + overflowBits
	if elementBits <= 0 {
		return nil, fmt.Errorf("vector: non-positive element width")
	}
	batchSize := plaintextBits / elementBits
	if batchSize < 1 {
		return nil, fmt.Errorf("vector: plaintext width %d too small for element width %d", plaintextBits, elementBits)
	}
	numBatches := (vectorSize + batchSize - 1) / batchSize

	return &Scheme{
		PlaintextBits: plaintextBits,
		MaxAdds:       maxAdds,
		ValueBits:     valueBits,
		VectorSize:    vectorSize,
		ElementBits:   elementBits,
		BatchSize:     batchSize,
		NumBatches:    numBatches,
	}, nil
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	bits := 0
	v := n - 1
	for v > 0 {
		bits++
		v >>= 1
	}
	return bits
}

// Encode packs V (length <= s.VectorSize) into s.NumBatches big integers,
// each holding up to s.BatchSize elements at e-bit-wide slots, little-
// endian within the residue: Σ x_i * 2^(e*i) (spec.md §4.9). The final
// batch may be short.
func (s *Scheme) Encode(v []*big.Int) []*big.Int {
	out := make([]*big.Int, 0, s.NumBatches)
	for start := 0; start < len(v); start += s.BatchSize {
		end := start + s.BatchSize
		if end > len(v) {
			end = len(v)
		}
		out = append(out, s.batch(v[start:end]))
	}
	return out
}

func (s *Scheme) batch(elems []*big.Int) *big.Int {
	acc := new(big.Int)
	for i, e := range elems {
		shifted := new(big.Int).Lsh(e, uint(s.ElementBits*i))
		acc.Or(acc, shifted)
	}
	return acc
}

// Decode unpacks a slice of encoded batches back into the flat element
// vector, masking and shifting s.ElementBits bits at a time until each
// batch is exhausted (spec.md §4.9). Because element-wise sums never
// overflow e bits by construction, this recovers the elementwise sum of
// whatever ciphertexts were homomorphically combined before decoding.
func (s *Scheme) Decode(batches []*big.Int) []*big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(s.ElementBits))
	mask.Sub(mask, big.NewInt(1))

	var out []*big.Int
	for _, b := range batches {
		rem := new(big.Int).Set(b)
		for rem.Sign() != 0 {
			v := new(big.Int).And(rem, mask)
			out = append(out, v)
			rem.Rsh(rem, uint(s.ElementBits))
		}
	}
	return out
}
