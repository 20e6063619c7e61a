// Package auth authenticates DID-signed bearer tokens.
//
// A token is accepted only when its claims are valid at the request time, its
// issuer is a recognized DID that resolves to an Active document, and its
// signature verifies against that document's active key under the suite named
// by the header alg. Each failure carries its own Reason.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vcanchor/internal/did"
	"vcanchor/internal/signature"
	"vcanchor/pkg/platform/sentinel"
	platformstrings "vcanchor/pkg/platform/strings"
	"vcanchor/pkg/requestcontext"
)

// Reason is the machine-readable cause of a rejected token.
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
	ReasonUnrecognizedDID       Reason = "unrecognized_did"
	ReasonDIDNotFound           Reason = "did_not_found"
	ReasonDIDInactive           Reason = "did_inactive"
	ReasonUnsupportedKey        Reason = "unsupported_key"
	ReasonSignatureMismatch     Reason = "signature_mismatch"
	ReasonResolverUnavailable   Reason = "resolver_unavailable"
)

// Rejection is returned by Authenticate for every refused token.
type Rejection struct {
	Reason Reason
	Detail string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "token rejected: " + string(r.Reason)
	}
	return fmt.Sprintf("token rejected: %s: %s", r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// ReasonOf extracts the rejection reason from err, or "".
func ReasonOf(err error) Reason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// Subject is the authenticated caller attached to the request context.
type Subject struct {
	DID       string
	KeyID     string
	PublicKey []byte
	Role      string
	Claims    map[string]any
}

// DefaultDIDPrefixes are the DID methods accepted when none are configured.
var DefaultDIDPrefixes = []string{"did:dcert:", "did:example:"}

// Authenticator runs the bearer token pipeline.
type Authenticator struct {
	resolver did.Resolver
	policy   signature.ClaimPolicy
	prefixes []string
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Authenticator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

func WithClaimPolicy(p signature.ClaimPolicy) Option {
	return func(a *Authenticator) {
		a.policy = p
	}
}

func WithDIDPrefixes(prefixes []string) Option {
	return func(a *Authenticator) {
		if p := platformstrings.DedupeAndTrim(prefixes); len(p) > 0 {
			a.prefixes = p
		}
	}
}

func New(resolver did.Resolver, opts ...Option) (*Authenticator, error) {
	if resolver == nil {
		return nil, errors.New("did resolver is required")
	}
	a := &Authenticator{
		resolver: resolver,
		policy:   signature.DefaultClaimPolicy(),
		prefixes: DefaultDIDPrefixes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate validates bearer and returns the authenticated subject or a *Rejection.
// The request time from requestcontext is used for claim validation.
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (*Subject, error) {
	subject, err := a.authenticate(ctx, bearer)
	if err != nil {
		a.metrics.IncRejected(ReasonOf(err))
		return nil, err
	}
	a.metrics.IncAuthenticated()
	return subject, nil
}

func (a *Authenticator) authenticate(ctx context.Context, bearer string) (*Subject, error) {
	tok, err := signature.ParseToken(bearer)
	if err != nil {
		return nil, rejectionFromParse(err)
	}
	if err := a.policy.Validate(tok, requestcontext.Now(ctx)); err != nil {
		return nil, rejectionFromParse(err)
	}

	subjectDID := tok.Issuer()
	if !did.HasPrefix(subjectDID, a.prefixes) {
		return nil, &Rejection{Reason: ReasonUnrecognizedDID, Detail: subjectDID}
	}

	key, err := a.resolveActive(ctx, subjectDID)
	if err != nil {
		return nil, err
	}

	suite, ok := signature.SuiteForAlgorithm(tok.Algorithm())
	if !ok {
		return nil, &Rejection{Reason: ReasonUnsupportedAlgorithm, Detail: tok.Algorithm()}
	}
	err = verifyWithKey(tok, key, suite)
	if ReasonOf(err) == ReasonSignatureMismatch {
		// A cached key may predate a rotation; retry once against the ledger.
		if fresh, ok := a.refresh(ctx, subjectDID, key); ok {
			key = fresh
			err = verifyWithKey(tok, key, suite)
		}
	}
	if err != nil {
		return nil, err
	}

	return &Subject{
		DID:       subjectDID,
		KeyID:     key.KeyID,
		PublicKey: key.PublicKey,
		Role:      key.Role(),
		Claims:    tok.Claims,
	}, nil
}

func (a *Authenticator) resolveActive(ctx context.Context, subjectDID string) (*did.Key, error) {
	key, err := a.resolver.Resolve(ctx, subjectDID)
	if err != nil {
		return nil, a.rejectionFromResolve(ctx, subjectDID, err)
	}
	if !key.IsActive() {
		return nil, &Rejection{Reason: ReasonDIDInactive, Detail: subjectDID}
	}
	return key, nil
}

// refresh drops a cached key and resolves again. It reports false when the
// resolver does not cache or the ledger still holds the same key.
func (a *Authenticator) refresh(ctx context.Context, subjectDID string, stale *did.Key) (*did.Key, bool) {
	inv, ok := a.resolver.(did.Invalidator)
	if !ok {
		return nil, false
	}
	if err := inv.Invalidate(ctx, subjectDID); err != nil {
		a.logger.WarnContext(ctx, "did cache invalidation failed",
			"did", subjectDID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, false
	}
	fresh, err := a.resolver.Resolve(ctx, subjectDID)
	if err != nil || !fresh.IsActive() || bytes.Equal(fresh.PublicKey, stale.PublicKey) {
		return nil, false
	}
	return fresh, true
}

func verifyWithKey(tok *signature.Token, key *did.Key, suite signature.Suite) error {
	if !keyFitsSuite(key.PublicKey, suite) {
		return &Rejection{Reason: ReasonUnsupportedKey, Detail: fmt.Sprintf("%d-byte key for %s", len(key.PublicKey), suite)}
	}
	if !signature.Verify(tok.SigningInput, tok.Signature, key.PublicKey, suite) {
		return &Rejection{Reason: ReasonSignatureMismatch, Detail: key.DID}
	}
	return nil
}

func rejectionFromParse(err error) *Rejection {
	if errors.Is(err, signature.ErrMalformedToken) {
		return &Rejection{Reason: ReasonMalformedToken, Err: err}
	}
	var claimErr *signature.ClaimError
	if errors.As(err, &claimErr) {
		return &Rejection{Reason: Reason(claimErr.Reason), Detail: claimErr.Detail, Err: err}
	}
	return &Rejection{Reason: ReasonMalformedToken, Err: err}
}

func (a *Authenticator) rejectionFromResolve(ctx context.Context, subjectDID string, err error) *Rejection {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return &Rejection{Reason: ReasonDIDNotFound, Detail: subjectDID, Err: err}
	case errors.Is(err, did.ErrNoActiveKey), errors.Is(err, did.ErrInvalidDocument):
		return &Rejection{Reason: ReasonUnsupportedKey, Detail: subjectDID, Err: err}
	default:
		a.logger.ErrorContext(ctx, "did resolution failed",
			"did", subjectDID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return &Rejection{Reason: ReasonResolverUnavailable, Detail: subjectDID, Err: err}
	}
}

// keyFitsSuite rejects key encodings the suite cannot use before any curve math.
func keyFitsSuite(pub []byte, suite signature.Suite) bool {
	switch suite {
	case signature.SuiteES256:
		return len(pub) == 65 && pub[0] == 0x04
	case signature.SuiteES256K:
		return len(pub) == 65 || len(pub) == 33
	default:
		return false
	}
}
