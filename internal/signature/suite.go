// Package signature verifies bearer-token signatures and Data Integrity proofs
// against raw public key bytes resolved from the ledger.
//
// Verification never returns an error for malformed input: bad encodings, bad
// keys and bad signatures all collapse to false. Only structural token errors
// (see ParseToken) are reported as errors.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Suite identifies a signature scheme and its canonicalization rule.
type Suite string

const (
	// SuiteES256 is ECDSA P-256 / SHA-256 over a bearer token signing input.
	SuiteES256 Suite = "ES256"
	// SuiteES256K is the legacy secp256k1 token scheme: raw r‖s, raw key.
	SuiteES256K Suite = "ES256K"
	// SuiteEd25519 is Ed25519 over canonical document bytes.
	SuiteEd25519 Suite = "Ed25519"
	// SuiteP256Proof is ECDSA P-256 / SHA-256 over canonical document bytes.
	SuiteP256Proof Suite = "P256Proof"
)

// SuiteForAlgorithm maps a JOSE alg header value to a token suite.
func SuiteForAlgorithm(alg string) (Suite, bool) {
	switch alg {
	case string(SuiteES256):
		return SuiteES256, true
	case string(SuiteES256K):
		return SuiteES256K, true
	default:
		return "", false
	}
}

// Verify checks signatureEncoded over signingInput with publicKeyRaw under suite.
// Token suites expect base64url signatures; proof suites expect multibase.
func Verify(signingInput []byte, signatureEncoded string, publicKeyRaw []byte, suite Suite) bool {
	switch suite {
	case SuiteES256:
		sig, ok := decodeBase64URL(signatureEncoded)
		if !ok {
			return false
		}
		return verifyES256(signingInput, sig, publicKeyRaw)
	case SuiteES256K:
		sig, ok := decodeBase64URL(signatureEncoded)
		if !ok {
			return false
		}
		return verifySecp256k1Raw(signingInput, sig, publicKeyRaw)
	case SuiteEd25519:
		sig, err := DecodeProofValue(signatureEncoded)
		if err != nil {
			return false
		}
		return verifyEd25519(signingInput, sig, publicKeyRaw)
	case SuiteP256Proof:
		sig, err := DecodeProofValue(signatureEncoded)
		if err != nil {
			return false
		}
		return verifyES256(signingInput, sig, publicKeyRaw)
	default:
		return false
	}
}

// verifyES256 normalizes sig to DER and verifies SHA-256(input) with the SPKI-wrapped key.
func verifyES256(input, sig, publicKeyRaw []byte) bool {
	der, err := normalizeES256(sig)
	if err != nil {
		return false
	}
	key, err := ParseP256PublicKey(publicKeyRaw)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(input)
	return ecdsa.VerifyASN1(key, digest[:], der)
}

func decodeBase64URL(s string) ([]byte, bool) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}
