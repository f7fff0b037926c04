package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	assert.Len(t, pub.Hex(), 64)
	assert.Len(t, pub.Address(), 40)
	assert.Equal(t, pub.Hex(), priv.Public().Hex(), "derived public key should match")

	back, err := PubKeyFromHex(pub.Hex())
	require.NoError(t, err)
	assert.Equal(t, pub, back)
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("hello critterchain")
	sig := Sign(priv, data)
	assert.NoError(t, Verify(pub, data, sig))
	assert.Error(t, Verify(pub, []byte("tampered"), sig))
}
