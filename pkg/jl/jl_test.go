package jl

import (
	"math/big"
	"testing"

	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSetup builds small, fast-to-generate public parameters. Real deployments
// use lambda >= 2048; tests use 64 so prime generation stays fast.
func testSetup(t *testing.T) *PublicParam {
	t.Helper()
	pp, err := Setup(64)
	require.NoError(t, err)
	require.Equal(t, 32, pp.Bits)
	return pp
}

func TestSetupProducesCoprimeHash(t *testing.T) {
	pp := testSetup(t)
	h := pp.H.H(big.NewInt(7))
	g := new(big.Int).GCD(nil, nil, h, pp.N)
	assert.Equal(t, big.NewInt(1), g)
}

func TestSampleUserKeysSumToZero(t *testing.T) {
	pp := testSetup(t)
	sk0, users, err := SampleUserKeys(pp, 5)
	require.NoError(t, err)
	require.Len(t, users, 5)

	sum := new(big.Int).Set(sk0)
	for _, u := range users {
		sum.Add(sum, u)
	}
	assert.Equal(t, 0, sum.Sign())
}

func TestProtectAggRoundTripSingleUser(t *testing.T) {
	pp := testSetup(t)
	sk0, users, err := SampleUserKeys(pp, 1)
	require.NoError(t, err)

	x := big.NewInt(42)
	y, err := Protect(pp, users[0], 1, x)
	require.NoError(t, err)

	got, err := Agg(pp, sk0, 1, y, DefaultScale())
	require.NoError(t, err)
	assert.Equal(t, 0, x.Cmp(got))
}

func TestProtectAggRoundTripMultiUserSum(t *testing.T) {
	pp := testSetup(t)
	nUsers := 4
	sk0, users, err := SampleUserKeys(pp, nUsers)
	require.NoError(t, err)

	inputs := []int64{3, 7, 11, 21}
	var cts []*big.Int
	for i, x := range inputs {
		ct, err := Protect(pp, users[i], 1, big.NewInt(x))
		require.NoError(t, err)
		cts = append(cts, ct)
	}

	combined, err := Combine(pp, cts)
	require.NoError(t, err)

	got, err := Agg(pp, sk0, 1, combined, DefaultScale())
	require.NoError(t, err)

	want := int64(0)
	for _, x := range inputs {
		want += x
	}
	assert.Equal(t, big.NewInt(want), got)
}

func TestProtectVectorAggVectorRoundTrip(t *testing.T) {
	pp := testSetup(t)
	ve, err := vector.NewScheme(pp.Bits, 3, 8, 4)
	require.NoError(t, err)

	sk0, users, err := SampleUserKeys(pp, 3)
	require.NoError(t, err)

	inputs := [][]int64{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	}

	var allBatches [][]*big.Int
	for i, row := range inputs {
		xs := make([]*big.Int, len(row))
		for j, v := range row {
			xs[j] = big.NewInt(v)
		}
		batches, err := ProtectVector(pp, users[i], 1, xs, ve)
		require.NoError(t, err)
		allBatches = append(allBatches, batches)
	}

	numBatches := len(allBatches[0])
	combined := make([]*big.Int, numBatches)
	for b := 0; b < numBatches; b++ {
		col := make([]*big.Int, len(allBatches))
		for i := range allBatches {
			col[i] = allBatches[i][b]
		}
		c, err := Combine(pp, col)
		require.NoError(t, err)
		combined[b] = c
	}

	got, err := AggVector(pp, sk0, 1, combined, DefaultScale(), ve)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []int64{15, 18, 21, 24}, toInt64s(got))
}

func TestShareProtectCombineRecoversDroppedUser(t *testing.T) {
	pp := testSetup(t)
	nUsers := 4
	threshold := 3
	sk0, users, err := SampleUserKeys(pp, nUsers)
	require.NoError(t, err)

	issParams := intshare.NewParams(nUsers, pp.Bits*2, 40)

	// Every user secret-shares their key among all n users.
	shareSets := make([][]intshare.Share, nUsers)
	for i, sk := range users {
		shares, err := intshare.Share(sk, threshold, []uint64{1, 2, 3, 4}, issParams)
		require.NoError(t, err)
		shareSets[i] = shares
	}

	// Simulate user index 3 (the 4th client, 0-indexed position 3 in
	// `users`) dropping out after online_encrypt: the 3 survivors each hold
	// their own share of the dropped user's key (shareSets[3][holderID-1],
	// since indices are 1..n) and protect zero with it.
	survivorIDs := []uint64{1, 2, 3}

	var dropShares []intshare.Share
	for _, holderID := range survivorIDs {
		dropShares = append(dropShares, shareSets[3][holderID-1])
	}

	var yZeroShares []intshare.Share
	for _, ds := range dropShares {
		share, err := ShareProtect(pp, []intshare.Share{ds}, 1)
		require.NoError(t, err)
		yZeroShares = append(yZeroShares, share)
	}

	delta := issParams.Delta
	recovered, err := ShareCombine(pp, yZeroShares, threshold, delta)
	require.NoError(t, err)

	// The recovered ciphertext, raised appropriately, should decrypt to
	// zero when combined with the delta^2-scaled product of the alive
	// users' ciphertexts, recovering the sum of only the alive inputs.
	deltaSq := new(big.Int).Mul(delta, delta)

	inputs := []int64{3, 7, 11, 21} // includes the dropped user's 21
	var aliveCts []*big.Int
	for i := 0; i < nUsers-1; i++ {
		ct, err := Protect(pp, users[i], 1, big.NewInt(inputs[i]))
		require.NoError(t, err)
		aliveCts = append(aliveCts, ct)
	}
	combined, err := Combine(pp, aliveCts)
	require.NoError(t, err)
	raised := Raise(pp, combined, deltaSq)

	final, err := Combine(pp, []*big.Int{raised, recovered})
	require.NoError(t, err)

	got, err := Agg(pp, sk0, 1, final, delta)
	require.NoError(t, err)

	want := int64(0)
	for _, x := range inputs[:nUsers-1] {
		want += x
	}
	assert.Equal(t, big.NewInt(want), got)
}

func toInt64s(xs []*big.Int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = x.Int64()
	}
	return out
}
