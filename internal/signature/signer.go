package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // legacy proof digest
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethodSecp256k1 implements jwt.SigningMethod for ES256K tokens using
// raw r‖s signatures, matching verifySecp256k1Raw.
type SigningMethodSecp256k1 struct{}

// SigningMethodES256K signs legacy secp256k1 bearer tokens.
var SigningMethodES256K = &SigningMethodSecp256k1{}

var errKeyType = errors.New("signature: unexpected key type")

func (m *SigningMethodSecp256k1) Alg() string {
	return string(SuiteES256K)
}

// Sign expects a *btcec.PrivateKey.
func (m *SigningMethodSecp256k1) Sign(signingString string, key any) ([]byte, error) {
	priv, ok := key.(*btcec.PrivateKey)
	if !ok {
		return nil, errKeyType
	}
	digest := sha256.Sum256([]byte(signingString))
	sig, err := priv.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return rawSignature(sig.R, sig.S), nil
}

// Verify expects the raw SEC1 public key bytes.
func (m *SigningMethodSecp256k1) Verify(signingString string, sig []byte, key any) error {
	raw, ok := key.([]byte)
	if !ok {
		return errKeyType
	}
	if !verifySecp256k1Raw([]byte(signingString), sig, raw) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// SignToken mints a bearer token whose iss and sub are both did.
func SignToken(method jwt.SigningMethod, key any, did, keyID string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"iss": did,
		"sub": did,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(method, claims)
	if keyID != "" {
		tok.Header["kid"] = keyID
	}
	return tok.SignedString(key)
}

// SignEd25519Proof returns a copy of doc carrying an Ed25519 proof built from options.
func SignEd25519Proof(doc, options map[string]any, priv ed25519.PrivateKey) (map[string]any, error) {
	canonical, err := CanonicalWithoutProof(doc)
	if err != nil {
		return nil, err
	}
	value, err := EncodeProofValue(ed25519.Sign(priv, canonical))
	if err != nil {
		return nil, err
	}
	return withProof(doc, options, value), nil
}

// SignP256Proof returns a copy of doc carrying an ECDSA P-256 proof with an
// IEEE-P1363 multibase proofValue.
func SignP256Proof(doc, options map[string]any, priv *ecdsa.PrivateKey) (map[string]any, error) {
	canonical, err := CanonicalWithoutProof(doc)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(canonical)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, err
	}
	value, err := EncodeProofValue(rawSignature(r, s))
	if err != nil {
		return nil, err
	}
	return withProof(doc, options, value), nil
}

// SignLegacySecp256k1Proof produces an EcdsaSecp256k1Signature2019 proof the way
// the issuer signing tool does: base64 r‖s over
// SHA-1(sha256(canon(options)) ‖ sha256(canon(doc))).
func SignLegacySecp256k1Proof(doc, options map[string]any, priv *btcec.PrivateKey) (map[string]any, error) {
	data, err := legacySigningData(&Proof{raw: options}, doc)
	if err != nil {
		return nil, err
	}
	digest := sha1.Sum(data) //nolint:gosec
	sig, err := priv.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return withProof(doc, options, base64.StdEncoding.EncodeToString(rawSignature(sig.R, sig.S))), nil
}

// P256PublicKeyBytes returns the 65-byte uncompressed point for key.
func P256PublicKeyBytes(key *ecdsa.PublicKey) ([]byte, error) {
	pub, err := key.ECDH()
	if err != nil {
		return nil, err
	}
	return pub.Bytes(), nil
}

func withProof(doc, options map[string]any, value string) map[string]any {
	proof := make(map[string]any, len(options)+1)
	for k, v := range options {
		proof[k] = v
	}
	proof["proofValue"] = value

	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[proofMember] = proof
	return out
}

func rawSignature(r, s *big.Int) []byte {
	out := make([]byte, 2*p256ScalarSize)
	r.FillBytes(out[:p256ScalarSize])
	s.FillBytes(out[p256ScalarSize:])
	return out
}
