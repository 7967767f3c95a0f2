// Package bignum collects the arbitrary-precision integer primitives needed
// across FTSA (spec.md §4.1): modular exponentiation, modular inversion,
// prime generation, and uniform random sampling from a cryptographic source.
//
// The building blocks use math/big rather than a fixed-width constant-time
// library (the teacher's github.com/cronokirby/saferith, scoped to
// announced-bit-length unsigned moduli for ECDSA-style MPC) because TJL's
// integer secret sharing needs signed arbitrary-precision integers with
// exact (non-modular) division and values that grow past any bit length
// fixed at setup time (spec.md §9, "the factorial trick"). This is the same
// choice the pack's own threshold-Paillier implementations make for this
// exact scheme shape; see DESIGN.md.
package bignum

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PowMod computes a^b mod m. It special-cases a == 1 the way the reference
// implementation's powmod helper does, since modexp by a unit base is a
// common hot path in JL.Protect/Agg.
func PowMod(a, b, m *big.Int) *big.Int {
	if m.Sign() == 0 {
		panic("bignum: PowMod with zero modulus")
	}
	if a.Cmp(big.NewInt(1)) == 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(a, b, m)
}

// PowModSigned computes a^e mod m for a signed exponent e, by inverting a
// mod m when e is negative. JL secret keys (and derived exponents such as
// Δ²·sk) are signed, so every exponentiation in the scheme must go through
// this helper rather than math/big's Exp, which requires e >= 0.
func PowModSigned(a, e, m *big.Int) (*big.Int, error) {
	if e.Sign() >= 0 {
		return PowMod(a, e, m), nil
	}
	pos := new(big.Int).Neg(e)
	r := PowMod(a, pos, m)
	inv, err := Invert(r, m)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Invert returns a^-1 mod m, failing when gcd(a, m) != 1.
func Invert(a, m *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(a, m)
	if inv == nil {
		return nil, fmt.Errorf("bignum: %s has no inverse mod %s", a.String(), m.String())
	}
	return inv, nil
}

// GCD returns gcd(a, b).
func GCD(a, b *big.Int) *big.Int {
	return new(big.Int).GCD(nil, nil, a, b)
}

// RandomBits draws a uniformly random non-negative integer with exactly the
// given number of bits from crypto/rand, with the top bit forced to 1 (the
// same convention getprimeover uses before sieving for primality).
func RandomBits(bits int) (*big.Int, error) {
	if bits <= 0 {
		return nil, fmt.Errorf("bignum: RandomBits requires bits > 0, got %d", bits)
	}
	nbytes := (bits + 7) / 8
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("bignum: RandomBits: %w", err)
	}
	r := new(big.Int).SetBytes(buf)
	// Trim down to exactly `bits` bits, then force the top bit set.
	r.Rsh(r, uint(nbytes*8-bits))
	r.SetBit(r, bits-1, 1)
	return r, nil
}

// RandomSignedBits draws a random integer of magnitude < 2^bits with a
// uniformly random sign, as ISS.Share does for its polynomial coefficients
// (spec.md §4.8).
func RandomSignedBits(bits int) (*big.Int, error) {
	magBuf := make([]byte, (bits+7)/8)
	if _, err := rand.Read(magBuf); err != nil {
		return nil, fmt.Errorf("bignum: RandomSignedBits: %w", err)
	}
	mag := new(big.Int).SetBytes(magBuf)
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	mag.Mod(mag, mask)

	signByte := make([]byte, 1)
	if _, err := rand.Read(signByte); err != nil {
		return nil, fmt.Errorf("bignum: RandomSignedBits: %w", err)
	}
	if signByte[0]%2 == 0 {
		mag.Neg(mag)
	}
	return mag, nil
}

// NextPrime returns the smallest prime >= x.
func NextPrime(x *big.Int) *big.Int {
	if x.Cmp(big.NewInt(2)) <= 0 {
		return big.NewInt(2)
	}
	p := new(big.Int).Set(x)
	if p.Bit(0) == 0 {
		p.Add(p, big.NewInt(1))
	}
	for !p.ProbablyPrime(32) {
		p.Add(p, big.NewInt(2))
	}
	return p
}

// PrimeOver returns a prime p with exactly `bits` bits: a uniformly random
// bits-length integer with its top bit set, advanced to the next prime, as
// specified in spec.md §4.1.
func PrimeOver(bits int) (*big.Int, error) {
	r, err := RandomBits(bits)
	if err != nil {
		return nil, err
	}
	return NextPrime(r), nil
}

// EncodeSigned serializes a signed integer as a one-byte sign flag (0 for
// non-negative, 1 for negative) followed by its big-endian magnitude. This
// is the wire encoding used for ISS/Shamir share values exchanged over the
// AEAD channel (spec.md §4.5), standing in for the reference
// implementation's gmpy2.to_binary on the Go side.
func EncodeSigned(v *big.Int) []byte {
	sign := byte(0)
	if v.Sign() < 0 {
		sign = 1
	}
	mag := new(big.Int).Abs(v)
	out := make([]byte, 1, 1+len(mag.Bytes()))
	out[0] = sign
	out = append(out, mag.Bytes()...)
	return out
}

// DecodeSigned parses a buffer produced by EncodeSigned.
func DecodeSigned(b []byte) (*big.Int, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("bignum: DecodeSigned: empty buffer")
	}
	v := new(big.Int).SetBytes(b[1:])
	if b[0] == 1 {
		v.Neg(v)
	}
	return v, nil
}
