package signature

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Reason is a machine-readable rejection cause.
type Reason string

const (
	ReasonMalformedToken        Reason = "malformed_token"
	ReasonInvalidHeader         Reason = "invalid_header"
	ReasonInvalidPayload        Reason = "invalid_payload"
	ReasonUnsupportedAlgorithm  Reason = "unsupported_algorithm"
	ReasonInvalidType           Reason = "invalid_type"
	ReasonMissingIssuer         Reason = "missing_issuer"
	ReasonMissingSubject        Reason = "missing_subject"
	ReasonIssuerSubjectMismatch Reason = "issuer_subject_mismatch"
	ReasonInvalidClaim          Reason = "invalid_claim"
	ReasonTokenExpired          Reason = "token_expired"
	ReasonTokenNotYetValid      Reason = "token_not_yet_valid"
	ReasonIssuedInFuture        Reason = "issued_in_future"
)

// ClaimError reports why a token's header or claims were rejected.
type ClaimError struct {
	Reason Reason
	Detail string
}

func (e *ClaimError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ClaimPolicy holds the header and time rules applied before signature checks.
type ClaimPolicy struct {
	Algorithms   []string
	Type         string
	IssuedAtSkew time.Duration
}

// DefaultClaimPolicy accepts ES256 and ES256K tokens typed JWT with 60s iat skew.
func DefaultClaimPolicy() ClaimPolicy {
	return ClaimPolicy{
		Algorithms:   []string{string(SuiteES256), string(SuiteES256K)},
		Type:         "JWT",
		IssuedAtSkew: 60 * time.Second,
	}
}

// Validate checks header and registered claims at now. It does not touch the signature.
func (p ClaimPolicy) Validate(tok *Token, now time.Time) error {
	alg := tok.Algorithm()
	if alg == "" || !slices.Contains(p.Algorithms, alg) {
		return &ClaimError{Reason: ReasonUnsupportedAlgorithm, Detail: fmt.Sprintf("alg %q", alg)}
	}
	if p.Type != "" {
		typ, _ := tok.Header["typ"].(string)
		if !strings.EqualFold(typ, p.Type) {
			return &ClaimError{Reason: ReasonInvalidType, Detail: fmt.Sprintf("typ %q", typ)}
		}
	}

	iss, sub := tok.Issuer(), tok.Subject()
	if iss == "" {
		return &ClaimError{Reason: ReasonMissingIssuer}
	}
	if sub == "" {
		return &ClaimError{Reason: ReasonMissingSubject}
	}
	if iss != sub {
		return &ClaimError{Reason: ReasonIssuerSubjectMismatch}
	}

	nowSec := float64(now.Unix())
	if exp, ok, err := numericClaim(tok.Claims, "exp"); err != nil {
		return err
	} else if ok && exp < nowSec {
		return &ClaimError{Reason: ReasonTokenExpired}
	}
	if nbf, ok, err := numericClaim(tok.Claims, "nbf"); err != nil {
		return err
	} else if ok && nbf > nowSec {
		return &ClaimError{Reason: ReasonTokenNotYetValid}
	}
	if iat, ok, err := numericClaim(tok.Claims, "iat"); err != nil {
		return err
	} else if ok && iat > nowSec+p.IssuedAtSkew.Seconds() {
		return &ClaimError{Reason: ReasonIssuedInFuture}
	}
	return nil
}

func numericClaim(claims map[string]any, name string) (float64, bool, error) {
	raw, present := claims[name]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, &ClaimError{Reason: ReasonInvalidClaim, Detail: name + " is not numeric"}
		}
		return f, true, nil
	case float64:
		return v, true, nil
	default:
		return 0, false, &ClaimError{Reason: ReasonInvalidClaim, Detail: name + " is not numeric"}
	}
}
