package sm

import (
	"crypto"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/pkg/errors"
	"github.com/wsddn/go-ecdh"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/sliceops"
)

// ECDHKeys is a local P-256 keypair for LE Secure Connections.
type ECDHKeys struct {
	public  crypto.PublicKey
	private crypto.PrivateKey
}

// GenerateKeys mints a fresh P-256 keypair.
func GenerateKeys() (*ECDHKeys, error) {
	var err error
	kp := ECDHKeys{}
	e := ecdh.NewEllipticECDH(elliptic.P256())

	kp.private, kp.public, err = e.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &kp, nil
}

// Public returns the public half.
func (k *ECDHKeys) Public() crypto.PublicKey { return k.public }

// UnmarshalPublicKey parses a 64-byte little-endian X||Y public key as
// it appears in an SMP Pairing Public Key PDU.
func UnmarshalPublicKey(b []byte) (crypto.PublicKey, bool) {
	if len(b) != 64 {
		return nil, false
	}
	e := ecdh.NewEllipticECDH(elliptic.P256())
	xs := sliceops.SwapBuf(b[:32])
	ys := sliceops.SwapBuf(b[32:])

	r := append([]byte{0x04}, xs...)
	r = append(r, ys...)

	return e.Unmarshal(r)
}

// MarshalPublicKeyXY renders a public key as little-endian X||Y.
func MarshalPublicKeyXY(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:]
	x := sliceops.SwapBuf(ba[:32])
	y := sliceops.SwapBuf(ba[32:])

	return append(x, y...)
}

// MarshalPublicKeyX renders just the little-endian X coordinate.
func MarshalPublicKeyX(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:]

	return sliceops.SwapBuf(ba[:32])
}

// SharedSecret computes the little-endian DHKey between the local
// private key and the peer's public key.
func SharedSecret(keys *ECDHKeys, peer crypto.PublicKey) ([]byte, error) {
	e := ecdh.NewEllipticECDH(elliptic.P256())
	b, err := e.GenerateSharedSecret(keys.private, peer)
	if err != nil {
		return nil, err
	}
	return sliceops.SwapBuf(b), nil
}

// Nonce returns a fresh 128-bit pairing random.
func Nonce() ([]byte, error) {
	n := make([]byte, 16)
	if _, err := rand.Read(n); err != nil {
		return nil, errors.Wrap(err, "can't generate nonce")
	}
	return n, nil
}

// ConfirmValue computes the pairing confirm Cb = f4(PKbx, PKax, Nb, z).
func ConfirmValue(remotePub, localPub crypto.PublicKey, nonce []byte, z uint8) ([]byte, error) {
	return f4(MarshalPublicKeyX(remotePub), MarshalPublicKeyX(localPub), nonce, z)
}

// ComparisonValue computes the six-digit numeric comparison value
// shown to the user on both sides.
func ComparisonValue(initiatorPub, responderPub crypto.PublicKey, na, nb []byte) (uint32, error) {
	return g2(MarshalPublicKeyX(initiatorPub), MarshalPublicKeyX(responderPub), na, nb)
}

// smAddress renders addr as the 7-byte BD_ADDR || type field f5 and f6
// consume.
func smAddress(addr bthost.Addr) []byte {
	b := addr.Bytes()
	switch addr.Type {
	case bthost.AddrTypeLERandom:
		b = append(b, 0x01)
	default:
		b = append(b, 0x00)
	}
	return b
}

// DeriveLongTermKey runs f5 over the DHKey and both pairing randoms,
// producing the MacKey and the LTK for the new bond.
func DeriveLongTermKey(dhKey, localNonce, peerNonce []byte, localAddr, peerAddr bthost.Addr) (macKey, ltk []byte, err error) {
	macKey, ltk, err = f5(dhKey, localNonce, peerNonce, smAddress(localAddr), smAddress(peerAddr))
	if err != nil {
		return nil, nil, errors.Wrap(err, "can't derive LTK")
	}
	return macKey, ltk, nil
}

// CheckValue computes the DHKey check Ea/Eb = f6(MacKey, N1, N2, R,
// IOcap, A1, A2).
func CheckValue(macKey, n1, n2, r, ioCap []byte, a1, a2 bthost.Addr) ([]byte, error) {
	return f6(macKey, n1, n2, r, ioCap, smAddress(a1), smAddress(a2))
}
