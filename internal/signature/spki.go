package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"errors"
)

// Fixed SubjectPublicKeyInfo prefixes. Raw key bytes are appended to build a
// DER SPKI that x509 can parse.
var (
	// SEQUENCE{SEQUENCE{OID ecPublicKey 1.2.840.10045.2.1, OID prime256v1 1.2.840.10045.3.1.7}, BIT STRING(66)}
	p256SPKIPrefix = []byte{
		0x30, 0x59, 0x30, 0x13, 0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02, 0x01,
		0x06, 0x08, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07, 0x03, 0x42, 0x00,
	}
	// SEQUENCE{SEQUENCE{OID Ed25519 1.3.101.112}, BIT STRING(33)}
	ed25519SPKIPrefix = []byte{
		0x30, 0x2a, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x03, 0x21, 0x00,
	}
)

const (
	uncompressedPointSize = 65
	compressedPointSize   = 33
)

var (
	ErrCompressedKey  = errors.New("signature: compressed public keys are not supported")
	ErrInvalidKey     = errors.New("signature: invalid public key")
	errUnexpectedType = errors.New("signature: SPKI parsed to unexpected key type")
)

// ParseP256PublicKey wraps a 65-byte uncompressed point in the P-256 SPKI header.
func ParseP256PublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	switch {
	case len(raw) == compressedPointSize:
		return nil, ErrCompressedKey
	case len(raw) != uncompressedPointSize || raw[0] != 0x04:
		return nil, ErrInvalidKey
	}
	der := make([]byte, 0, len(p256SPKIPrefix)+len(raw))
	der = append(append(der, p256SPKIPrefix...), raw...)
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, ErrInvalidKey
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errUnexpectedType
	}
	return ecKey, nil
}

// ParseEd25519PublicKey wraps a 32-byte key in the Ed25519 SPKI header.
func ParseEd25519PublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidKey
	}
	der := make([]byte, 0, len(ed25519SPKIPrefix)+len(raw))
	der = append(append(der, ed25519SPKIPrefix...), raw...)
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, ErrInvalidKey
	}
	edKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, errUnexpectedType
	}
	return edKey, nil
}
