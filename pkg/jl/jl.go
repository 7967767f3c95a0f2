// Package jl implements the Joye-Libert additively homomorphic scheme (JL)
// and its threshold extension (TJL): setup, per-user protection, server
// aggregation, and the three threshold operations that let an aggregator
// recover a Joye-Libert ciphertext of zero for dropped-out users
// (spec.md §4.10, §4.11).
//
// Grounded on original_source/ftsa/protocols/buildingblocks/JoyeLibert.py
// (JLS/TJLS, PublicParam/UserKey/ServerKey/EncryptedNumber) and, for the Go
// idiom of a Paillier-family scheme over math/big, on
// other_examples/.../ea45a47e_bnb-chain-tss-lib__crypto-paillier-paillier.go.go
// (Setup/Encrypt/Decrypt shape) and
// other_examples/.../6bb99cbf_didiercrunch-paillier__thresholdkey.go.go
// (ShareCombine's Lagrange-interpolation-on-the-exponent). Per-batch modular
// exponentiation in the vector path is parallelized with
// golang.org/x/sync/errgroup, the same dependency the teacher repo pulls in
// for independent per-round work.
package jl

import (
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/ftsa/pkg/bignum"
	"github.com/luxfi/ftsa/pkg/fdh"
	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/vector"
)

// PublicParam holds the Joye-Libert modulus and hash function, shared by
// every party and immutable after Setup (spec.md §3).
type PublicParam struct {
	N       *big.Int
	NSquare *big.Int
	Bits    int // bit length of N
	H       *fdh.Hasher
}

// Equal compares public parameters by modulus, the convention spec.md §3
// assigns PublicParam.
func (pp *PublicParam) Equal(other *PublicParam) bool {
	return pp.N.Cmp(other.N) == 0
}

// Setup samples two λ/4-bit primes until their product N has exactly λ/2
// bits, and constructs the full-domain hash H (spec.md §4.10).
func Setup(lambdaBits int) (*PublicParam, error) {
	if lambdaBits%4 != 0 {
		return nil, fmt.Errorf("jl: lambda must be divisible by 4, got %d", lambdaBits)
	}
	primeBits := lambdaBits / 4
	targetBits := lambdaBits / 2

	var n *big.Int
	for {
		p, err := bignum.PrimeOver(primeBits)
		if err != nil {
			return nil, fmt.Errorf("jl: %w", err)
		}
		q, err := bignum.PrimeOver(primeBits)
		if err != nil {
			return nil, fmt.Errorf("jl: %w", err)
		}
		for q.Cmp(p) == 0 {
			q, err = bignum.PrimeOver(primeBits)
			if err != nil {
				return nil, fmt.Errorf("jl: %w", err)
			}
		}
		cand := new(big.Int).Mul(p, q)
		if cand.BitLen() == targetBits {
			n = cand
			break
		}
	}

	nSquare := new(big.Int).Mul(n, n)
	return &PublicParam{
		N:       n,
		NSquare: nSquare,
		Bits:    targetBits,
		H:       fdh.New(targetBits, n),
	}, nil
}

// SampleUserKeys draws nUsers uniformly random signed keys of 2*bits(N)
// bits and the server key sk_0 = -Σ sk_u, per spec.md §4.10.
func SampleUserKeys(pp *PublicParam, nUsers int) (sk0 *big.Int, users []*big.Int, err error) {
	sum := big.NewInt(0)
	users = make([]*big.Int, nUsers)
	for i := 0; i < nUsers; i++ {
		s, err := bignum.RandomSignedBits(2 * pp.Bits)
		if err != nil {
			return nil, nil, fmt.Errorf("jl: %w", err)
		}
		users[i] = s
		sum.Add(sum, s)
	}
	return new(big.Int).Neg(sum), users, nil
}

// packTau packs a round tag with an optional batch counter, the multiplexing
// scheme spec.md §4.10 uses so each vector batch hashes to a distinct
// point: (counter << bits(N)/2) | tau.
func packTau(pp *PublicParam, counter uint64, tau uint64) *big.Int {
	shift := uint(pp.Bits / 2)
	t := new(big.Int).Lsh(new(big.Int).SetUint64(counter), shift)
	t.Or(t, new(big.Int).SetUint64(tau))
	return t
}

// Protect encrypts a single plaintext x < N under secret key sk for round
// tau: y = (1 + x*N) * H(tau)^sk mod N^2 (spec.md §4.10).
func Protect(pp *PublicParam, sk *big.Int, tau uint64, x *big.Int) (*big.Int, error) {
	return protectAt(pp, sk, new(big.Int).SetUint64(tau), x)
}

func protectAt(pp *PublicParam, sk *big.Int, tau *big.Int, x *big.Int) (*big.Int, error) {
	h := pp.H.H(tau)
	r, err := bignum.PowModSigned(h, sk, pp.NSquare)
	if err != nil {
		return nil, fmt.Errorf("jl: protect: %w", err)
	}
	nude := new(big.Int).Mul(pp.N, x)
	nude.Add(nude, big.NewInt(1))
	nude.Mod(nude, pp.NSquare)
	ct := new(big.Int).Mul(nude, r)
	ct.Mod(ct, pp.NSquare)
	return ct, nil
}

// ProtectVector encodes xs with ve and protects each batch under a
// distinct multiplexed tau, in parallel (spec.md §4.10).
func ProtectVector(pp *PublicParam, sk *big.Int, tau uint64, xs []*big.Int, ve *vector.Scheme) ([]*big.Int, error) {
	batches := ve.Encode(xs)
	out := make([]*big.Int, len(batches))

	g := new(errgroup.Group)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			ct, err := protectAt(pp, sk, packTau(pp, uint64(i), tau), batch)
			if err != nil {
				return err
			}
			out[i] = ct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Combine multiplies ciphertexts mod N^2, the homomorphic addition of
// their underlying plaintexts (spec.md §4.10's Agg product step).
func Combine(pp *PublicParam, ys []*big.Int) (*big.Int, error) {
	if len(ys) == 0 {
		return nil, fmt.Errorf("jl: combine requires at least one ciphertext")
	}
	acc := new(big.Int).Set(ys[0])
	for _, y := range ys[1:] {
		acc.Mul(acc, y)
		acc.Mod(acc, pp.NSquare)
	}
	return acc, nil
}

// Raise computes ciphertext^exp mod N^2, used to scale an aggregated
// product by Δ² before folding in a recovered zero-ciphertext
// (spec.md §4.11's Agg).
func Raise(pp *PublicParam, ciphertext, exp *big.Int) *big.Int {
	return bignum.PowMod(ciphertext, exp, pp.NSquare)
}

// one is reused as the default (non-threshold) scale factor.
var one = big.NewInt(1)

// DefaultScale is the scale factor Δ used by plain (non-threshold) JL.Agg.
func DefaultScale() *big.Int { return new(big.Int).Set(one) }

// Agg decrypts an aggregated ciphertext yTau for round tau under the
// server key sk0, scaled by delta^2 (spec.md §4.10's Agg and §4.11's
// threshold Agg: delta=1 recovers plain JL, delta=Δ=|U|! applies when a
// recovered zero-ciphertext was folded in).
func Agg(pp *PublicParam, sk0 *big.Int, tau uint64, yTau *big.Int, delta *big.Int) (*big.Int, error) {
	return aggAt(pp, sk0, new(big.Int).SetUint64(tau), yTau, delta)
}

func aggAt(pp *PublicParam, sk0 *big.Int, tau *big.Int, yTau *big.Int, delta *big.Int) (*big.Int, error) {
	deltaSq := new(big.Int).Mul(delta, delta)
	h := pp.H.H(tau)
	exp := new(big.Int).Mul(deltaSq, sk0)
	r, err := bignum.PowModSigned(h, exp, pp.NSquare)
	if err != nil {
		return nil, fmt.Errorf("jl: agg: %w", err)
	}
	v := new(big.Int).Mul(yTau, r)
	v.Mod(v, pp.NSquare)

	num := new(big.Int).Sub(v, big.NewInt(1))
	q, rem := new(big.Int).QuoRem(num, pp.N, new(big.Int))
	if rem.Sign() != 0 {
		return nil, fmt.Errorf("jl: agg: ciphertext did not decrypt to a multiple of N (corrupted input or mismatched keys)")
	}
	x := q.Mod(q, pp.N)

	if deltaSq.Cmp(one) == 0 {
		return x, nil
	}
	invDeltaSq, err := bignum.Invert(deltaSq, pp.N)
	if err != nil {
		return nil, fmt.Errorf("jl: agg: delta^2 not invertible mod N: %w", err)
	}
	x.Mul(x, invDeltaSq)
	x.Mod(x, pp.N)
	return x, nil
}

// AggVector decodes a vector aggregation: each batch ciphertext is
// decrypted in parallel under its multiplexed tau, then VE-decoded back
// into the flat summed vector (spec.md §4.10, §4.9).
func AggVector(pp *PublicParam, sk0 *big.Int, tau uint64, yBatches []*big.Int, delta *big.Int, ve *vector.Scheme) ([]*big.Int, error) {
	decoded := make([]*big.Int, len(yBatches))
	g := new(errgroup.Group)
	for i, y := range yBatches {
		i, y := i, y
		g.Go(func() error {
			x, err := aggAt(pp, sk0, packTau(pp, uint64(i), tau), y, delta)
			if err != nil {
				return err
			}
			decoded[i] = x
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ve.Decode(decoded), nil
}

// SKShare applies integer secret sharing (pkg/intshare) to a user's secret
// key, so that t of the n shares can later reconstruct sk_u on the
// exponent via ShareCombine (spec.md §4.11's SKShare).
func SKShare(sk *big.Int, t int, u []uint64, params intshare.Params) ([]intshare.Share, error) {
	return intshare.Share(sk, t, u, params)
}

// ShareProtect sums a user's shares of every failed user's secret key and
// protects a zero plaintext under that summed share, for round tau
// (spec.md §4.11's ShareProtect). Every share in shareList must carry the
// same index (the recovering user's own id).
func ShareProtect(pp *PublicParam, shareList []intshare.Share, tau uint64) (intshare.Share, error) {
	if len(shareList) == 0 {
		return intshare.Share{}, fmt.Errorf("jl: shareprotect: empty share list")
	}
	idx := shareList[0].Index
	sum := new(big.Int).Set(shareList[0].Value)
	for _, s := range shareList[1:] {
		if s.Index != idx {
			return intshare.Share{}, fmt.Errorf("jl: shareprotect: mismatched share indices %d != %d", s.Index, idx)
		}
		sum.Add(sum, s.Value)
	}
	ct, err := Protect(pp, sum, tau, big.NewInt(0))
	if err != nil {
		return intshare.Share{}, err
	}
	return intshare.Share{Index: idx, Value: ct}, nil
}

// ShareProtectVector is the vector form of ShareProtect: the summed share
// key protects an all-zero vector, producing one ciphertext share per
// batch.
func ShareProtectVector(pp *PublicParam, shareList []intshare.Share, tau uint64, ve *vector.Scheme) ([]intshare.Share, error) {
	if len(shareList) == 0 {
		return nil, fmt.Errorf("jl: shareprotectvector: empty share list")
	}
	idx := shareList[0].Index
	sum := new(big.Int).Set(shareList[0].Value)
	for _, s := range shareList[1:] {
		if s.Index != idx {
			return nil, fmt.Errorf("jl: shareprotectvector: mismatched share indices %d != %d", s.Index, idx)
		}
		sum.Add(sum, s.Value)
	}
	zeros := make([]*big.Int, ve.VectorSize)
	for i := range zeros {
		zeros[i] = big.NewInt(0)
	}
	cts, err := ProtectVector(pp, sum, tau, zeros, ve)
	if err != nil {
		return nil, err
	}
	out := make([]intshare.Share, len(cts))
	for i, ct := range cts {
		out[i] = intshare.Share{Index: idx, Value: ct}
	}
	return out, nil
}

// ShareCombine combines t-out-of-n protected-zero shares by Lagrange
// interpolation on the exponent: Π_j share_j^λ_j mod N^2 (spec.md §4.11's
// ShareCombine).
func ShareCombine(pp *PublicParam, shares []intshare.Share, t int, delta *big.Int) (*big.Int, error) {
	if len(shares) < t {
		return nil, fmt.Errorf("jl: sharecombine: %d shares, need at least %d", len(shares), t)
	}
	coefs, err := intshare.LagrangeCoefficients(shares, delta)
	if err != nil {
		return nil, fmt.Errorf("jl: sharecombine: %w", err)
	}
	result := big.NewInt(1)
	for _, s := range shares {
		lambda := coefs[s.Index]
		r, err := bignum.PowModSigned(s.Value, lambda, pp.NSquare)
		if err != nil {
			return nil, fmt.Errorf("jl: sharecombine: %w", err)
		}
		result.Mul(result, r)
		result.Mod(result, pp.NSquare)
	}
	return result, nil
}

// ShareCombineVector combines a vector of per-batch protected-zero shares,
// computing the Lagrange coefficients once and reusing them across
// batches (spec.md §4.11).
func ShareCombineVector(pp *PublicParam, vshares [][]intshare.Share, t int, delta *big.Int) ([]*big.Int, error) {
	if len(vshares) == 0 {
		return nil, fmt.Errorf("jl: sharecombinevector: empty share list")
	}
	width := len(vshares[0])
	for _, row := range vshares {
		if len(row) != width {
			return nil, fmt.Errorf("jl: sharecombinevector: inconsistent vector width")
		}
	}

	firstCol := make([]intshare.Share, len(vshares))
	for i, row := range vshares {
		firstCol[i] = row[0]
	}
	coefs, err := intshare.LagrangeCoefficients(firstCol, delta)
	if err != nil {
		return nil, fmt.Errorf("jl: sharecombinevector: %w", err)
	}

	out := make([]*big.Int, width)
	for c := 0; c < width; c++ {
		result := big.NewInt(1)
		for _, row := range vshares {
			s := row[c]
			lambda := coefs[s.Index]
			r, err := bignum.PowModSigned(s.Value, lambda, pp.NSquare)
			if err != nil {
				return nil, fmt.Errorf("jl: sharecombinevector: %w", err)
			}
			result.Mul(result, r)
			result.Mod(result, pp.NSquare)
		}
		out[c] = result
	}
	return out, nil
}
