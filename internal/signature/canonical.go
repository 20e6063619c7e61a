package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// proofMember is excluded from the canonical form of a signed document.
const proofMember = "proof"

var errNotObject = errors.New("signature: document is not a JSON object")

// Canonicalize renders v as compact JSON with object keys sorted
// lexicographically at every level. This is a deterministic stringify, not
// RDF canonicalization.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// CanonicalizeASCII is Canonicalize with every byte outside printable ASCII
// inside strings written as a lowercase \uXXXX escape, using a surrogate pair
// above the BMP. Legacy secp256k1 proofs are signed over this form.
func CanonicalizeASCII(v any) ([]byte, error) {
	raw, err := Canonicalize(v)
	if err != nil {
		return nil, err
	}
	return escapeNonASCII(raw), nil
}

// escapeNonASCII rewrites compact JSON output. Non-ASCII runes only occur
// inside string literals there, so escaping them in place keeps the JSON valid.
func escapeNonASCII(b []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r < utf8.RuneSelf && r != 0x7f:
			out.WriteByte(b[0])
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
		b = b[size:]
	}
	return out.Bytes()
}

// ParseDocument decodes a JSON object, preserving number literals.
func ParseDocument(document []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(document))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errNotObject
	}
	return doc, nil
}

// CanonicalWithoutProof returns the canonical form of doc with the proof member removed.
// doc itself is not modified.
func CanonicalWithoutProof(doc map[string]any) ([]byte, error) {
	return Canonicalize(withoutProof(doc))
}

func withoutProof(doc map[string]any) map[string]any {
	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != proofMember {
			stripped[k] = v
		}
	}
	return stripped
}
