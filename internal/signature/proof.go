package signature

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Proof types and cryptosuites understood by VerifyProof.
const (
	ProofTypeDataIntegrity        = "DataIntegrityProof"
	ProofTypeEd25519Signature2020 = "Ed25519Signature2020"
	ProofTypeEd25519Signature2018 = "Ed25519Signature2018"
	ProofTypeSecp256r1Signature   = "EcdsaSecp256r1Signature2019"
	ProofTypeSecp256k1Signature   = "EcdsaSecp256k1Signature2019"
)

// KeyFamily is the key type a proof is checked against.
type KeyFamily string

const (
	FamilyEd25519   KeyFamily = "Ed25519"
	FamilyP256      KeyFamily = "P-256"
	FamilySecp256k1 KeyFamily = "secp256k1"
)

// Proof result reasons.
const (
	ProofReasonInvalidDocument = "invalid_document"
	ProofReasonMissingProof    = "missing_proof"
	ProofReasonUnsupportedType = "unsupported_proof_type"
	ProofReasonInvalidValue    = "invalid_proof_value"
	ProofReasonKeyMismatch     = "key_family_mismatch"
	ProofReasonSignature       = "signature_mismatch"
)

// Proof is the subset of a Data Integrity proof object used for verification.
type Proof struct {
	Type               string
	Cryptosuite        string
	Created            string
	VerificationMethod string
	ProofPurpose       string
	ProofValue         string
	raw                map[string]any
}

// ProofResult is the outcome of VerifyProof. Reason is empty when Valid.
type ProofResult struct {
	Valid              bool
	Reason             string
	Family             KeyFamily
	VerificationMethod string
}

// ExtractProof returns the proof object embedded in doc, or nil.
func ExtractProof(doc map[string]any) *Proof {
	raw, ok := doc[proofMember].(map[string]any)
	if !ok {
		if list, isList := doc[proofMember].([]any); isList && len(list) > 0 {
			raw, ok = list[0].(map[string]any)
		}
		if !ok {
			return nil
		}
	}
	str := func(k string) string {
		s, _ := raw[k].(string)
		return s
	}
	return &Proof{
		Type:               str("type"),
		Cryptosuite:        str("cryptosuite"),
		Created:            str("created"),
		VerificationMethod: str("verificationMethod"),
		ProofPurpose:       str("proofPurpose"),
		ProofValue:         str("proofValue"),
		raw:                raw,
	}
}

// Family resolves the key family from the proof type and cryptosuite. Generic
// DataIntegrityProof values without a known cryptosuite fall back to the key length.
func (p *Proof) Family(publicKeyRaw []byte) (KeyFamily, bool) {
	switch p.Type {
	case ProofTypeEd25519Signature2020, ProofTypeEd25519Signature2018:
		return FamilyEd25519, true
	case ProofTypeSecp256r1Signature:
		return FamilyP256, true
	case ProofTypeSecp256k1Signature:
		return FamilySecp256k1, true
	case ProofTypeDataIntegrity:
		switch {
		case strings.HasPrefix(p.Cryptosuite, "eddsa-"):
			return FamilyEd25519, true
		case strings.HasPrefix(p.Cryptosuite, "ecdsa-"):
			return FamilyP256, true
		}
		switch len(publicKeyRaw) {
		case ed25519.PublicKeySize:
			return FamilyEd25519, true
		case uncompressedPointSize:
			return FamilyP256, true
		}
	}
	return "", false
}

// VerifyProof verifies the proof embedded in a JSON document against a raw public key.
func VerifyProof(document []byte, publicKeyRaw []byte) ProofResult {
	doc, err := ParseDocument(document)
	if err != nil {
		return ProofResult{Reason: ProofReasonInvalidDocument}
	}
	return VerifyDocumentProof(doc, publicKeyRaw)
}

// VerifyDocumentProof is VerifyProof over an already-parsed document.
func VerifyDocumentProof(doc map[string]any, publicKeyRaw []byte) ProofResult {
	proof := ExtractProof(doc)
	if proof == nil {
		return ProofResult{Reason: ProofReasonMissingProof}
	}
	result := ProofResult{VerificationMethod: proof.VerificationMethod}
	family, ok := proof.Family(publicKeyRaw)
	if !ok {
		result.Reason = ProofReasonUnsupportedType
		return result
	}
	result.Family = family
	if proof.ProofValue == "" {
		result.Reason = ProofReasonInvalidValue
		return result
	}

	canonical, err := CanonicalWithoutProof(doc)
	if err != nil {
		result.Reason = ProofReasonInvalidDocument
		return result
	}

	var valid bool
	switch family {
	case FamilyEd25519:
		if len(publicKeyRaw) != ed25519.PublicKeySize {
			result.Reason = ProofReasonKeyMismatch
			return result
		}
		valid = Verify(canonical, proof.ProofValue, publicKeyRaw, SuiteEd25519)
	case FamilyP256:
		if len(publicKeyRaw) != uncompressedPointSize {
			result.Reason = ProofReasonKeyMismatch
			return result
		}
		valid = Verify(canonical, proof.ProofValue, publicKeyRaw, SuiteP256Proof)
	case FamilySecp256k1:
		data, err := legacySigningData(proof, doc)
		if err != nil {
			result.Reason = ProofReasonInvalidDocument
			return result
		}
		sig, err := base64.StdEncoding.DecodeString(proof.ProofValue)
		if err != nil {
			result.Reason = ProofReasonInvalidValue
			return result
		}
		valid = verifySecp256k1Legacy(data, sig, publicKeyRaw)
	}
	if !valid {
		result.Reason = ProofReasonSignature
		return result
	}
	result.Valid = true
	return result
}

func verifyEd25519(input, sig, publicKeyRaw []byte) bool {
	key, err := ParseEd25519PublicKey(publicKeyRaw)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, input, sig)
}

// legacySigningData rebuilds sha256(canon(proof options)) ‖ sha256(canon(document))
// over the ASCII-escaped canonical form the issuer signing tool hashes.
func legacySigningData(proof *Proof, doc map[string]any) ([]byte, error) {
	options := make(map[string]any, len(proof.raw))
	for k, v := range proof.raw {
		if k == "proofValue" {
			continue
		}
		options[k] = v
	}
	canonicalOptions, err := CanonicalizeASCII(options)
	if err != nil {
		return nil, err
	}
	canonicalDoc, err := CanonicalizeASCII(withoutProof(doc))
	if err != nil {
		return nil, err
	}
	optionsHash := sha256.Sum256(canonicalOptions)
	docHash := sha256.Sum256(canonicalDoc)
	return append(optionsHash[:], docHash[:]...), nil
}
