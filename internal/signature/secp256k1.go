package signature

import (
	"crypto/sha1" //nolint:gosec // legacy proof digest, matches the issuing tool
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// verifySecp256k1Raw verifies a raw r‖s signature over SHA-256(input) with a raw
// secp256k1 public key (compressed or uncompressed SEC1 bytes).
func verifySecp256k1Raw(input, sig, publicKeyRaw []byte) bool {
	if len(sig) != 2*p256ScalarSize {
		return false
	}
	pub, err := btcec.ParsePubKey(publicKeyRaw, btcec.S256())
	if err != nil {
		return false
	}
	digest := sha256.Sum256(input)
	s := &btcec.Signature{
		R: new(big.Int).SetBytes(sig[:p256ScalarSize]),
		S: new(big.Int).SetBytes(sig[p256ScalarSize:]),
	}
	return s.Verify(digest[:], pub)
}

// verifySecp256k1Legacy verifies EcdsaSecp256k1Signature2019 proofs as produced by
// the issuer signing tool: SHA-1 digest of data, signature raw r‖s or DER.
func verifySecp256k1Legacy(data, sig, publicKeyRaw []byte) bool {
	pub, err := btcec.ParsePubKey(publicKeyRaw, btcec.S256())
	if err != nil {
		return false
	}
	var parsed *btcec.Signature
	switch {
	case len(sig) == 2*p256ScalarSize:
		parsed = &btcec.Signature{
			R: new(big.Int).SetBytes(sig[:p256ScalarSize]),
			S: new(big.Int).SetBytes(sig[p256ScalarSize:]),
		}
	case len(sig) > 0 && sig[0] == 0x30:
		parsed, err = btcec.ParseDERSignature(sig, btcec.S256())
		if err != nil {
			return false
		}
	default:
		return false
	}
	digest := sha1.Sum(data) //nolint:gosec
	return parsed.Verify(digest[:], pub)
}
