// Package intshare implements Shamir secret sharing over the integers (no
// modular reduction), used to share TJL user secret keys (spec.md §4.8).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/IntegerSS.py
// (ISSS.Share/Recon, the factorial-trick Lagrange reconstruction), with one
// deliberate deviation: the reference's coefficient loop only appends a
// drawn coefficient when its randomly chosen sign is negative, so on
// average only half of the intended t-1 coefficients are ever added to the
// polynomial — a bug in indentation, not a security choice. Per spec.md
// §4.8/§9 this implementation draws all t-1 nonzero signed coefficients as
// the algorithm describes; see DESIGN.md for the recorded decision.
package intshare

import (
	"fmt"
	"math/big"

	"github.com/luxfi/ftsa/pkg/bignum"
)

// Share is one point (i, p(i)) of an integer-valued polynomial, with i the
// public index of a user in U.
type Share struct {
	Index uint64
	Value *big.Int
}

// Params bundles the derived constants of one ISS instance: the factorial
// modulus Δ = |U|! and the coefficient bit-width B = bits(N)*2 +
// ceil(log2(Δ^2)) + sigma (spec.md §4.8).
type Params struct {
	Delta        *big.Int
	CoeffBits    int
	SecretDomain int // bits(N)*2, the bit-length of the secret being shared
}

// NewParams derives Δ and the coefficient bit-width for a group of size
// |U| sharing secrets of secretDomainBits bits, with statistical security
// margin sigma (spec.md §4.8).
func NewParams(uSize, secretDomainBits, sigma int) Params {
	delta := factorial(uSize)
	deltaSq := new(big.Int).Mul(delta, delta)
	coeffBits := secretDomainBits + deltaSq.BitLen() + sigma
	return Params{Delta: delta, CoeffBits: coeffBits, SecretDomain: secretDomainBits}
}

func factorial(n int) *big.Int {
	r := big.NewInt(1)
	for i := 2; i <= n; i++ {
		r.Mul(r, big.NewInt(int64(i)))
	}
	return r
}

// Share draws a degree-(t-1) integer polynomial with constant term
// secret*Δ and evaluates it at each index in U (spec.md §4.8). Indices
// must be distinct and non-zero.
func Share(secret *big.Int, t int, u []uint64, p Params) ([]Share, error) {
	if t < 1 {
		return nil, fmt.Errorf("intshare: threshold must be >= 1, got %d", t)
	}
	if len(u) == 0 {
		return nil, fmt.Errorf("intshare: empty user set")
	}

	coeffs := make([]*big.Int, t)
	for k := 0; k < t-1; k++ {
		c, err := bignum.RandomSignedBits(p.CoeffBits)
		if err != nil {
			return nil, fmt.Errorf("intshare: %w", err)
		}
		coeffs[k] = c
	}
	coeffs[t-1] = new(big.Int).Mul(secret, p.Delta)

	seen := make(map[uint64]struct{}, len(u))
	shares := make([]Share, len(u))
	for idx, i := range u {
		if i == 0 {
			return nil, fmt.Errorf("intshare: index 0 is reserved and cannot be a share point")
		}
		if _, dup := seen[i]; dup {
			return nil, fmt.Errorf("intshare: duplicate index %d", i)
		}
		seen[i] = struct{}{}
		shares[idx] = Share{Index: i, Value: evalHorner(coeffs, i)}
	}
	return shares, nil
}

// evalHorner evaluates coeffs (highest degree first, matching the
// reference's left-to-right accumulation idx*acc + coeff) at idx over the
// integers, with no reduction.
func evalHorner(coeffs []*big.Int, idx uint64) *big.Int {
	acc := big.NewInt(0)
	x := new(big.Int).SetUint64(idx)
	for _, c := range coeffs {
		acc.Mul(acc, x)
		acc.Add(acc, c)
	}
	return new(big.Int).Set(acc)
}

// LagrangeCoefficients computes λ_j = Δ * Π_{m!=j} x_m / (x_m - x_j) for
// reconstruction at x=0, one per share, as exact integers (spec.md §4.8).
func LagrangeCoefficients(shares []Share, delta *big.Int) (map[uint64]*big.Int, error) {
	indices := make([]uint64, len(shares))
	seen := make(map[uint64]struct{}, len(shares))
	for i, s := range shares {
		if _, dup := seen[s.Index]; dup {
			return nil, fmt.Errorf("intshare: duplicate share index %d", s.Index)
		}
		seen[s.Index] = struct{}{}
		indices[i] = s.Index
	}

	coefs := make(map[uint64]*big.Int, len(shares))
	for j, xj := range indices {
		num := big.NewInt(1)
		den := big.NewInt(1)
		for m, xm := range indices {
			if m == j {
				continue
			}
			num.Mul(num, new(big.Int).SetUint64(xm))
			den.Mul(den, new(big.Int).Sub(new(big.Int).SetUint64(xm), new(big.Int).SetUint64(xj)))
		}
		num.Mul(num, delta)
		q, r := new(big.Int).QuoRem(num, den, new(big.Int))
		if r.Sign() != 0 {
			return nil, fmt.Errorf("intshare: non-exact lagrange coefficient for index %d", xj)
		}
		coefs[xj] = q
	}
	return coefs, nil
}

// Reconstruct recovers the shared secret from at least t shares, using the
// factorial trick: the Lagrange sum is computed as an exact integer scaled
// by Δ (once from sharing, once from the coefficients), then divided by
// Δ^2 (spec.md §4.8). If lagCoefs is nil, they are computed from the
// shares' indices.
func Reconstruct(shares []Share, t int, p Params, lagCoefs map[uint64]*big.Int) (*big.Int, error) {
	if len(shares) < t {
		return nil, fmt.Errorf("intshare: %d shares, need at least %d", len(shares), t)
	}
	seen := make(map[uint64]struct{}, len(shares))
	for _, s := range shares {
		if _, dup := seen[s.Index]; dup {
			return nil, fmt.Errorf("intshare: duplicate share index %d", s.Index)
		}
		seen[s.Index] = struct{}{}
	}

	coefs := lagCoefs
	if coefs == nil {
		var err error
		coefs, err = LagrangeCoefficients(shares, p.Delta)
		if err != nil {
			return nil, err
		}
	}

	result := big.NewInt(0)
	for _, s := range shares {
		lambda, ok := coefs[s.Index]
		if !ok {
			return nil, fmt.Errorf("intshare: missing lagrange coefficient for index %d", s.Index)
		}
		term := new(big.Int).Mul(s.Value, lambda)
		result.Add(result, term)
	}

	deltaSq := new(big.Int).Mul(p.Delta, p.Delta)
	q, _ := new(big.Int).QuoRem(result, deltaSq, new(big.Int))
	return q, nil
}

// ReconstructVector reconstructs each coordinate of a vector of per-user
// share vectors, computing Lagrange coefficients once and reusing them
// across coordinates (spec.md §4.8's "vector overload").
func ReconstructVector(shares [][]Share, t int, p Params) ([]*big.Int, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("intshare: empty share list")
	}
	width := len(shares[0])
	for _, row := range shares {
		if len(row) != width {
			return nil, fmt.Errorf("intshare: inconsistent vector share width")
		}
	}

	firstCol := make([]Share, len(shares))
	for i, row := range shares {
		firstCol[i] = row[0]
	}
	coefs, err := LagrangeCoefficients(firstCol, p.Delta)
	if err != nil {
		return nil, err
	}

	out := make([]*big.Int, width)
	for c := 0; c < width; c++ {
		col := make([]Share, len(shares))
		for i, row := range shares {
			col[i] = row[c]
		}
		v, err := Reconstruct(col, t, p, coefs)
		if err != nil {
			return nil, err
		}
		out[c] = v
	}
	return out, nil
}
