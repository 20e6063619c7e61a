package signature

import (
	"errors"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// p256ScalarSize is the byte length of r and s for P-256 and secp256k1.
const p256ScalarSize = 32

var (
	errInvalidP1363 = errors.New("signature: IEEE-P1363 signature must have even, non-zero length")
	errInvalidDER   = errors.New("signature: malformed DER signature")
	errUnknownForm  = errors.New("signature: neither IEEE-P1363 nor DER")
)

// P1363ToDER converts an r‖s signature into SEQUENCE{INTEGER r, INTEGER s}.
func P1363ToDER(sig []byte) ([]byte, error) {
	if len(sig) == 0 || len(sig)%2 != 0 {
		return nil, errInvalidP1363
	}
	half := len(sig) / 2
	r, s := derInteger(sig[:half]), derInteger(sig[half:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.INTEGER, func(b *cryptobyte.Builder) { b.AddBytes(r) })
		b.AddASN1(asn1.INTEGER, func(b *cryptobyte.Builder) { b.AddBytes(s) })
	})
	return b.Bytes()
}

// DERToP1363 converts a DER signature back to r‖s with each half left-padded to size bytes.
func DERToP1363(der []byte, size int) ([]byte, error) {
	input := cryptobyte.String(der)
	var inner cryptobyte.String
	r, s := new(big.Int), new(big.Int)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, errInvalidDER
	}
	if r.Sign() < 0 || s.Sign() < 0 || r.BitLen() > size*8 || s.BitLen() > size*8 {
		return nil, errInvalidDER
	}
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out, nil
}

// derInteger strips leading zeros down to one byte and prepends 0x00 when the
// high bit is set so the INTEGER stays non-negative.
func derInteger(x []byte) []byte {
	for len(x) > 1 && x[0] == 0 {
		x = x[1:]
	}
	if x[0]&0x80 != 0 {
		return append([]byte{0}, x...)
	}
	out := make([]byte, len(x))
	copy(out, x)
	return out
}

// normalizeES256 accepts a 64-byte IEEE-P1363 signature or a DER signature and returns DER.
func normalizeES256(sig []byte) ([]byte, error) {
	switch {
	case len(sig) == 2*p256ScalarSize:
		return P1363ToDER(sig)
	case len(sig) > 0 && sig[0] == 0x30:
		return sig, nil
	default:
		return nil, errUnknownForm
	}
}
