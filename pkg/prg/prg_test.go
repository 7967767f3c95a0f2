package prg

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSeedTruncates(t *testing.T) {
	big192 := new(big.Int).Lsh(big.NewInt(1), 192)
	big192.Sub(big192, big.NewInt(1))

	masked := MaskSeed(big192)
	assert.Len(t, masked, SeedBits/8)

	v := new(big.Int).SetBytes(masked)
	assert.Equal(t, SeedBits, v.BitLen())
}

func TestExpandDeterministic(t *testing.T) {
	seed := MaskSeed(big.NewInt(123456789))

	a, err := Expand(seed, 10, 12)
	require.NoError(t, err)
	b, err := Expand(seed, 10, 12)
	require.NoError(t, err)

	require.Len(t, a, 10)
	for i := range a {
		assert.Equal(t, 0, a[i].Cmp(b[i]))
	}
}

func TestExpandBounds(t *testing.T) {
	seed := MaskSeed(big.NewInt(42))
	bound := new(big.Int).Lsh(big.NewInt(1), 9)

	out, err := Expand(seed, 50, 9)
	require.NoError(t, err)
	require.Len(t, out, 50)
	for _, v := range out {
		assert.True(t, v.Cmp(bound) < 0)
		assert.True(t, v.Sign() >= 0)
	}
}

func TestExpandVariesWithSeed(t *testing.T) {
	s1 := MaskSeed(big.NewInt(1))
	s2 := MaskSeed(big.NewInt(2))

	a, err := Expand(s1, 8, 16)
	require.NoError(t, err)
	b, err := Expand(s2, 8, 16)
	require.NoError(t, err)

	differs := false
	for i := range a {
		if a[i].Cmp(b[i]) != 0 {
			differs = true
			break
		}
	}
	assert.True(t, differs, "expected different seeds to expand to different vectors")
}

func TestExpandRejectsBadSeedLength(t *testing.T) {
	_, err := Expand([]byte{1, 2, 3}, 4, 8)
	assert.Error(t, err)
}
