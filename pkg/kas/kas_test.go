package kas

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParsePublic(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	require.NotNil(t, kp.Private)
	require.NotNil(t, kp.Public)

	pub, err := ParsePublic(kp.PublicBytes())
	require.NoError(t, err)
	assert.True(t, pub.Equal(kp.Public))
}

func TestParsePublicRejectsGarbage(t *testing.T) {
	_, err := ParsePublic([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestAgreeSymmetric(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	keyA, err := Agree(a.Private, b.Public, 256)
	require.NoError(t, err)
	keyB, err := Agree(b.Private, a.Public, 256)
	require.NoError(t, err)

	assert.Equal(t, keyA, keyB)
	assert.Len(t, keyA, 32)
}

func TestAgreeSizesKeyToRequestedBits(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	key, err := Agree(a.Private, b.Public, 2048)
	require.NoError(t, err)
	assert.Len(t, key, 2048/8)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	z := []byte("a raw shared secret")
	a := DeriveKey(z, 256)
	b := DeriveKey(z, 256)
	assert.Equal(t, a, b)
}

func TestDeriveKeyVariesWithSize(t *testing.T) {
	z := []byte("a raw shared secret")
	small := DeriveKey(z, 256)
	large := DeriveKey(z, 512)
	assert.Len(t, small, 32)
	assert.Len(t, large, 64)
	// 256 bits needs exactly one SHA-256 block (counter=0); 512 bits needs
	// exactly two (counter=0,1) with nothing trimmed off the front, so the
	// first block is shared between both derivations.
	assert.Equal(t, small, large[:32])
}

func TestPrivateScalarRoundTrips(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	scalar := kp.PrivateScalar()
	rebuilt, err := PrivateFromScalar(scalar)
	require.NoError(t, err)
	assert.True(t, rebuilt.PublicKey().Equal(kp.Public))
}

func TestPrivateFromScalarRejectsOversizedScalar(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 8*(ScalarBytes+1))
	_, err := PrivateFromScalar(huge)
	assert.Error(t, err)
}

func TestDifferentPeersProduceDifferentKeys(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	c, err := Generate()
	require.NoError(t, err)

	k1, err := Agree(a.Private, b.Public, 256)
	require.NoError(t, err)
	k2, err := Agree(a.Private, c.Public, 256)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
