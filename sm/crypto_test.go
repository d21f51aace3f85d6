package sm

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-bt/bthost"
)

func s2h(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// Vectors from Core Spec v5.0, Vol 3, Part H, Appendix D.

var (
	testU = []byte{
		0xe6, 0x9d, 0x35, 0x0e, 0x48, 0x01, 0x03, 0xcc,
		0xdb, 0xfd, 0xf4, 0xac, 0x11, 0x91, 0xf4, 0xef,
		0xb9, 0xa5, 0xf9, 0xe9, 0xa7, 0x83, 0x2c, 0x5e,
		0x2c, 0xbe, 0x97, 0xf2, 0xd2, 0x03, 0xb0, 0x20,
	}
	testV = []byte{
		0xfd, 0xc5, 0x7f, 0xf4, 0x49, 0xdd, 0x4f, 0x6b,
		0xfb, 0x7c, 0x9d, 0xf1, 0xc2, 0x9a, 0xcb, 0x59,
		0x2a, 0xe7, 0xd4, 0xee, 0xfb, 0xfc, 0x0a, 0x90,
		0x9a, 0xbb, 0xf6, 0x32, 0x3d, 0x8b, 0x18, 0x55,
	}
	testX = []byte{
		0xab, 0xae, 0x2b, 0x71, 0xec, 0xb2, 0xff, 0xff,
		0x3e, 0x73, 0x77, 0xd1, 0x54, 0x84, 0xcb, 0xd5,
	}
	testY = []byte{
		0xcf, 0xc4, 0x3d, 0xff, 0xf7, 0x83, 0x65, 0x21,
		0x6e, 0x5f, 0xa7, 0x25, 0xcc, 0xe7, 0xe8, 0xa6,
	}
)

func TestF4(t *testing.T) {
	exp := []byte{
		0x2d, 0x87, 0x74, 0xa9, 0xbe, 0xa1, 0xed, 0xf1,
		0x1c, 0xbd, 0xa9, 0x07, 0xf1, 0x16, 0xc9, 0xf2,
	}

	out, err := f4(testU, testV, testX, 0x00)
	require.NoError(t, err)
	assert.Equal(t, exp, out)

	_, err = f4(testU[:31], testV, testX, 0x00)
	assert.Error(t, err)
}

func TestF5(t *testing.T) {
	w := s2h(t, "98a6bf73f3348d86f166f8b4136b79999b7d390aa610103405adc857a33402ec")
	n1 := s2h(t, "abae2b71ecb2ffff3e7377d15484cbd5")
	n2 := s2h(t, "cfc43dfff78365216e5fa725cce7e8a6")
	a1 := []byte{0xce, 0xbf, 0x37, 0x37, 0x12, 0x56, 0x00}
	a2 := []byte{0xc1, 0xcf, 0x2d, 0x70, 0x13, 0xa7, 0x00}

	expMacKey := s2h(t, "206e63ce206a3ffd024a08a176f16529")
	expLTK := s2h(t, "380a7594b522059823cdd76911798669")

	macKey, ltk, err := f5(w, n1, n2, a1, a2)
	require.NoError(t, err)
	assert.Equal(t, expMacKey, macKey)
	assert.Equal(t, expLTK, ltk)
}

func TestF6(t *testing.T) {
	w := s2h(t, "206e63ce206a3ffd024a08a176f16529")
	n1 := s2h(t, "abae2b71ecb2ffff3e7377d15484cbd5")
	n2 := s2h(t, "cfc43dfff78365216e5fa725cce7e8a6")
	r := s2h(t, "c80f2d0cd242da0854bb53b43b34a312")
	ioCap := []byte{0x02, 0x01, 0x01}
	a1 := []byte{0xce, 0xbf, 0x37, 0x37, 0x12, 0x56, 0x00}
	a2 := []byte{0xc1, 0xcf, 0x2d, 0x70, 0x13, 0xa7, 0x00}

	exp := s2h(t, "618f95da090b6cd2c5e8d09c9873c4e3")

	out, err := f6(w, n1, n2, r, ioCap, a1, a2)
	require.NoError(t, err)
	assert.Equal(t, exp, out)
}

func TestG2(t *testing.T) {
	val, err := g2(testU, testV, testX, testY)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2f9ed5ba%1000000), val)
}

func TestPublicKeyRoundTrip(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	xy := MarshalPublicKeyXY(keys.Public())
	require.Len(t, xy, 64)

	pk, ok := UnmarshalPublicKey(xy)
	require.True(t, ok)
	assert.Equal(t, xy, MarshalPublicKeyXY(pk))
	assert.Equal(t, xy[:32], MarshalPublicKeyX(pk))
}

func TestSharedSecretAgreement(t *testing.T) {
	ka, err := GenerateKeys()
	require.NoError(t, err)
	kb, err := GenerateKeys()
	require.NoError(t, err)

	sa, err := SharedSecret(ka, kb.Public())
	require.NoError(t, err)
	sb, err := SharedSecret(kb, ka.Public())
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestDeriveLongTermKey(t *testing.T) {
	dhKey := s2h(t, "98a6bf73f3348d86f166f8b4136b79999b7d390aa610103405adc857a33402ec")
	n1 := s2h(t, "abae2b71ecb2ffff3e7377d15484cbd5")
	n2 := s2h(t, "cfc43dfff78365216e5fa725cce7e8a6")

	// the printed address form reverses the wire bytes
	la := bthost.NewAddr(bthost.AddrTypeLEPublic, "56:12:37:37:bf:ce")
	ra := bthost.NewAddr(bthost.AddrTypeLEPublic, "a7:13:70:2d:cf:c1")

	macKey, ltk, err := DeriveLongTermKey(dhKey, n1, n2, la, ra)
	require.NoError(t, err)
	assert.Equal(t, s2h(t, "206e63ce206a3ffd024a08a176f16529"), macKey)
	assert.Equal(t, s2h(t, "380a7594b522059823cdd76911798669"), ltk)
}

func TestConfirmValueMatchesBothSides(t *testing.T) {
	ka, err := GenerateKeys()
	require.NoError(t, err)
	kb, err := GenerateKeys()
	require.NoError(t, err)

	nb, err := Nonce()
	require.NoError(t, err)
	require.Len(t, nb, 16)

	// the responder computes Cb, the initiator verifies it
	cb, err := ConfirmValue(ka.Public(), kb.Public(), nb, 0)
	require.NoError(t, err)
	check, err := f4(MarshalPublicKeyX(ka.Public()), MarshalPublicKeyX(kb.Public()), nb, 0)
	require.NoError(t, err)
	assert.Equal(t, check, cb)
}
