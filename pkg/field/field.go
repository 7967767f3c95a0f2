// Package field implements the fixed-modulus prime fields used by the
// Shamir secret sharing layer over mask seeds (spec.md §4.2, §4.7).
//
// Grounded on the pack's own ModInt-style field wrappers over math/big (see
// other_examples/.../bnb-chain-tss-lib__crypto-paillier-paillier.go.go's
// common.ModInt helper) — the same "(value, modulus) pair with reducing
// Add/Sub/Mul" shape, specialized here to the handful of fixed Mersenne-ish
// primes the spec names.
package field

import (
	"fmt"
	"math/big"

	"github.com/luxfi/ftsa/pkg/bignum"
)

// Modulus is a supported field modulus, picked by the smallest bucket whose
// bit-width covers the secret being shared (spec.md §4.2).
type Modulus struct {
	Bits int
	P    *big.Int
}

var (
	mod64   = mustModulus(64, new(big.Int).Sub(pow2(65), big.NewInt(493)))
	mod128  = mustModulus(128, new(big.Int).Sub(pow2(129), big.NewInt(1365)))
	mod256  = mustModulus(256, new(big.Int).Sub(pow2(257), big.NewInt(2233)))
	mod512  = mustModulus(512, new(big.Int).Sub(pow2(521), big.NewInt(1)))
	mod1024 = mustModulus(1024, new(big.Int).Sub(pow2(1279), big.NewInt(1)))
	mod2048 = mustModulus(2048, new(big.Int).Sub(pow2(2203), big.NewInt(1)))
)

func pow2(n uint) *big.Int { return new(big.Int).Lsh(big.NewInt(1), n) }

func mustModulus(bits int, p *big.Int) *Modulus { return &Modulus{Bits: bits, P: p} }

// ModulusFor picks the smallest bucket (65, 129, 257, 521, 1279, or 2203-bit
// prime) whose field covers a secret of the given bit length.
func ModulusFor(secretBits int) (*Modulus, error) {
	switch {
	case secretBits <= 64:
		return mod64, nil
	case secretBits <= 128:
		return mod128, nil
	case secretBits <= 256:
		return mod256, nil
	case secretBits <= 512:
		return mod512, nil
	case secretBits <= 1024:
		return mod1024, nil
	case secretBits <= 2048:
		return mod2048, nil
	default:
		return nil, fmt.Errorf("field: no sufficient field for a %d-bit secret", secretBits)
	}
}

// Element is a value in Z_p for one of the Moduli above.
type Element struct {
	v *big.Int
	m *Modulus
}

// New builds a field element, reducing v mod m.P.
func New(v *big.Int, m *Modulus) Element {
	r := new(big.Int).Mod(v, m.P)
	return Element{v: r, m: m}
}

// FromUint64 builds a field element from a small unsigned integer.
func FromUint64(v uint64, m *Modulus) Element {
	return New(new(big.Int).SetUint64(v), m)
}

// FromBytes builds a field element from a big-endian byte string.
func FromBytes(b []byte, m *Modulus) Element {
	return New(new(big.Int).SetBytes(b), m)
}

// Modulus returns the element's modulus.
func (e Element) Modulus() *Modulus { return e.m }

// Int returns the element's canonical representative in [0, p).
func (e Element) Int() *big.Int { return new(big.Int).Set(e.v) }

// Equal reports whether e and o hold the same value in the same field.
func (e Element) Equal(o Element) bool {
	return e.m.P.Cmp(o.m.P) == 0 && e.v.Cmp(o.v) == 0
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool { return e.v.Sign() == 0 }

// Add returns e + o mod p.
func (e Element) Add(o Element) Element {
	return New(new(big.Int).Add(e.v, o.v), e.m)
}

// Sub returns e - o mod p.
func (e Element) Sub(o Element) Element {
	return New(new(big.Int).Sub(e.v, o.v), e.m)
}

// Mul returns e * o mod p.
func (e Element) Mul(o Element) Element {
	return New(new(big.Int).Mul(e.v, o.v), e.m)
}

// Inverse returns e^-1 mod p, failing for the zero element.
func (e Element) Inverse() (Element, error) {
	if e.IsZero() {
		return Element{}, fmt.Errorf("field: inversion of zero")
	}
	inv, err := bignum.Invert(e.v, e.m.P)
	if err != nil {
		return Element{}, err
	}
	return Element{v: inv, m: e.m}, nil
}

// Pow returns e^exp mod p for a non-negative exponent.
func (e Element) Pow(exp *big.Int) Element {
	return Element{v: bignum.PowMod(e.v, exp, e.m.P), m: e.m}
}
