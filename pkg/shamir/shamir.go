// Package shamir implements Shamir secret sharing over the prime fields in
// pkg/field, used to share 128-bit mask seeds among the threshold set of a
// dropout recovery (spec.md §4.7).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/ShamirSS.py
// (SSS.share/recon over utils.PField), reworked onto pkg/field's Element
// type and math/big arithmetic.
package shamir

import (
	"fmt"
	"math/big"

	"github.com/luxfi/ftsa/pkg/bignum"
	"github.com/luxfi/ftsa/pkg/field"
)

// Share is one point (i, p(i)) of a degree-(t-1) polynomial evaluated at a
// public, non-zero index i.
type Share struct {
	Index field.Element
	Value field.Element
}

// Share draws a degree-(t-1) polynomial with constant term `secret` and
// evaluates it at each index in indices (spec.md §4.7). Indices must be
// distinct and non-zero.
func Share(secret field.Element, t int, indices []uint64, m *field.Modulus) ([]Share, error) {
	if t < 1 {
		return nil, fmt.Errorf("shamir: threshold must be >= 1, got %d", t)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("shamir: no indices supplied")
	}
	coeffs := make([]field.Element, t)
	coeffs[0] = secret
	for k := 1; k < t; k++ {
		r, err := bignum.RandomBits(m.Bits)
		if err != nil {
			return nil, fmt.Errorf("shamir: %w", err)
		}
		coeffs[k] = field.New(r, m)
	}

	shares := make([]Share, len(indices))
	seen := make(map[uint64]struct{}, len(indices))
	for idx, i := range indices {
		if i == 0 {
			return nil, fmt.Errorf("shamir: index 0 is reserved and cannot be a share point")
		}
		if _, dup := seen[i]; dup {
			return nil, fmt.Errorf("shamir: duplicate index %d", i)
		}
		seen[i] = struct{}{}
		x := field.FromUint64(i, m)
		shares[idx] = Share{Index: x, Value: evalHorner(coeffs, x)}
	}
	return shares, nil
}

// evalHorner evaluates the polynomial with the given coefficients (lowest
// degree first) at x via Horner's method.
func evalHorner(coeffs []field.Element, x field.Element) field.Element {
	acc := coeffs[len(coeffs)-1]
	for k := len(coeffs) - 2; k >= 0; k-- {
		acc = acc.Mul(x).Add(coeffs[k])
	}
	return acc
}

// LagrangeCoefficients computes λ_j = Π_{m != j} x_m * (x_m - x_j)^-1 for
// reconstruction at x = 0, one per share, in the order shares are given.
func LagrangeCoefficients(shares []Share, m *field.Modulus) ([]field.Element, error) {
	coefs := make([]field.Element, len(shares))
	for j := range shares {
		num := field.FromUint64(1, m)
		den := field.FromUint64(1, m)
		for k := range shares {
			if k == j {
				continue
			}
			num = num.Mul(shares[k].Index)
			den = den.Mul(shares[k].Index.Sub(shares[j].Index))
		}
		denInv, err := den.Inverse()
		if err != nil {
			return nil, fmt.Errorf("shamir: duplicate share index prevents reconstruction: %w", err)
		}
		coefs[j] = num.Mul(denInv)
	}
	return coefs, nil
}

// Reconstruct recovers the secret (the polynomial's value at x=0) from at
// least t shares. If lagCoefs is non-nil it is used directly (spec.md §4.7
// allows precomputed Lagrange coefficients); otherwise they are computed
// from the shares' indices.
func Reconstruct(shares []Share, lagCoefs []field.Element, m *field.Modulus) (field.Element, error) {
	if len(shares) == 0 {
		return field.Element{}, fmt.Errorf("shamir: no shares supplied")
	}
	seen := make(map[string]struct{}, len(shares))
	for _, s := range shares {
		key := s.Index.Int().String()
		if _, dup := seen[key]; dup {
			return field.Element{}, fmt.Errorf("shamir: duplicate share index %s", key)
		}
		seen[key] = struct{}{}
	}

	coefs := lagCoefs
	if coefs == nil {
		var err error
		coefs, err = LagrangeCoefficients(shares, m)
		if err != nil {
			return field.Element{}, err
		}
	}
	if len(coefs) != len(shares) {
		return field.Element{}, fmt.Errorf("shamir: %d lagrange coefficients for %d shares", len(coefs), len(shares))
	}

	acc := field.FromUint64(0, m)
	for j, s := range shares {
		acc = acc.Add(s.Value.Mul(coefs[j]))
	}
	return acc, nil
}

// ModulusForSeed picks the field for a PRG seed, which spec.md §4.4 fixes
// at 128 bits.
func ModulusForSeed() (*field.Modulus, error) { return field.ModulusFor(128) }

// FromBigInt reduces a secret for sharing over m.
func FromBigInt(v *big.Int, m *field.Modulus) field.Element { return field.New(v, m) }
