package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestP1363DERRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("fixed message"))

	for i := 0; i < 32; i++ {
		r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
		require.NoError(t, err)
		p1363 := rawSignature(r, s)

		der, err := P1363ToDER(p1363)
		require.NoError(t, err)
		assert.True(t, ecdsa.VerifyASN1(&priv.PublicKey, digest[:], der))

		back, err := DERToP1363(der, p256ScalarSize)
		require.NoError(t, err)
		assert.Equal(t, p1363, back)
	}
}

func TestP1363ToDER_IntegerEncoding(t *testing.T) {
	t.Run("high bit set gets a zero prefix", func(t *testing.T) {
		sig := make([]byte, 64)
		sig[0] = 0x80
		sig[32] = 0x01
		der, err := P1363ToDER(sig)
		require.NoError(t, err)
		// SEQUENCE, len, INTEGER len 33 starting 0x00 0x80
		assert.Equal(t, byte(0x30), der[0])
		assert.Equal(t, []byte{0x02, 33, 0x00, 0x80}, der[2:6])
	})

	t.Run("leading zeros are stripped to one byte", func(t *testing.T) {
		sig := make([]byte, 64)
		sig[31] = 0x05
		sig[63] = 0x07
		der, err := P1363ToDER(sig)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x30, 0x06, 0x02, 0x01, 0x05, 0x02, 0x01, 0x07}, der)
	})

	t.Run("all-zero scalar keeps one byte", func(t *testing.T) {
		der, err := P1363ToDER(make([]byte, 64))
		require.NoError(t, err)
		assert.Equal(t, []byte{0x30, 0x06, 0x02, 0x01, 0x00, 0x02, 0x01, 0x00}, der)
	})

	t.Run("odd length is rejected", func(t *testing.T) {
		_, err := P1363ToDER(make([]byte, 63))
		assert.Error(t, err)
	})
}

func TestDERToP1363_Malformed(t *testing.T) {
	for name, der := range map[string][]byte{
		"empty":          nil,
		"not a sequence": {0x02, 0x01, 0x01},
		"trailing bytes": {0x30, 0x06, 0x02, 0x01, 0x05, 0x02, 0x01, 0x07, 0x00},
		"one integer":    {0x30, 0x03, 0x02, 0x01, 0x05},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DERToP1363(der, p256ScalarSize)
			assert.Error(t, err)
		})
	}
}
