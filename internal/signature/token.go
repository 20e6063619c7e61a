package signature

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a bearer token does not have exactly three segments.
var ErrMalformedToken = errors.New("signature: token must have three dot-separated segments")

// Token is a decoded, unverified bearer token.
type Token struct {
	Raw          string
	SigningInput []byte
	Header       map[string]any
	Claims       map[string]any
	Signature    string
}

// Algorithm returns the alg header value.
func (t *Token) Algorithm() string {
	alg, _ := t.Header["alg"].(string)
	return alg
}

// Issuer returns the iss claim.
func (t *Token) Issuer() string {
	iss, _ := t.Claims["iss"].(string)
	return iss
}

// Subject returns the sub claim.
func (t *Token) Subject() string {
	sub, _ := t.Claims["sub"].(string)
	return sub
}

// ParseToken splits and decodes a compact token without verifying it.
// A wrong segment count fails fast with ErrMalformedToken; undecodable
// segments fail with a *ClaimError.
func ParseToken(raw string) (*Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformedToken
	}
	parser := jwt.NewParser()

	headerBytes, err := parser.DecodeSegment(parts[0])
	if err != nil {
		return nil, &ClaimError{Reason: ReasonInvalidHeader, Detail: "header is not base64url"}
	}
	header, err := decodeObject(headerBytes)
	if err != nil {
		return nil, &ClaimError{Reason: ReasonInvalidHeader, Detail: "header is not a JSON object"}
	}

	payloadBytes, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, &ClaimError{Reason: ReasonInvalidPayload, Detail: "payload is not base64url"}
	}
	claims, err := decodeObject(payloadBytes)
	if err != nil {
		return nil, &ClaimError{Reason: ReasonInvalidPayload, Detail: "payload is not a JSON object"}
	}

	return &Token{
		Raw:          raw,
		SigningInput: []byte(parts[0] + "." + parts[1]),
		Header:       header,
		Claims:       claims,
		Signature:    parts[2],
	}, nil
}

func decodeObject(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("not an object")
	}
	return out, nil
}
