package service

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"vcanchor/internal/did"
	"vcanchor/internal/presentation/models"
	"vcanchor/internal/signature"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/requestcontext"
)

// VerifyVP checks the holder's proof over a stored presentation and the issuer
// proof of every embedded credential, then consumes the share whatever the
// outcome. Verification failures are reported in the result. Only a failure to
// reach the DID registry is returned as an error, and the share is then left
// in place so the verifier can retry.
func (s *Service) VerifyVP(ctx context.Context, shareID id.VPShareID) (*models.VerificationResult, error) {
	share, err := s.store.FindShare(ctx, shareID)
	if err != nil {
		return nil, wrapShareErr(err)
	}

	result, err := s.verify(ctx, share)
	if err != nil {
		s.logger.WarnContext(ctx, "vp verification aborted",
			"share_id", shareID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "did registry unavailable")
	}

	if err := s.store.SoftDelete(ctx, share.ID, requestcontext.Now(ctx)); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapStoreErr(err, "failed to consume vp")
	}
	s.metrics.IncConsumed("verify")
	s.metrics.IncVerification(result.AllValid())

	attrs := map[string]string{
		"vp_valid":    strconv.FormatBool(result.VPValid),
		"all_valid":   strconv.FormatBool(result.AllValid()),
		"credentials": strconv.Itoa(len(result.Credentials)),
	}
	s.emit(ctx, audit.Event{
		Type:          audit.EventVPVerified,
		AggregateType: audit.AggregatePresentation,
		AggregateID:   share.ID.String(),
		SubjectDID:    share.HolderDID,
		ActorDID:      requestcontext.SubjectDID(ctx),
		Reason:        result.Reason,
		Attributes:    attrs,
	})
	return result, nil
}

func (s *Service) verify(ctx context.Context, share *models.VPShare) (*models.VerificationResult, error) {
	result := &models.VerificationResult{
		ShareID:     share.ID,
		HolderDID:   share.HolderDID,
		Credentials: []models.CredentialCheck{},
	}

	doc, err := signature.ParseDocument(share.VP)
	if err != nil {
		result.Reason = signature.ProofReasonInvalidDocument
		return result, nil
	}

	vpValid, reason, err := s.verifyHolder(ctx, share.HolderDID, doc)
	if err != nil {
		return nil, err
	}
	result.VPValid, result.Reason = vpValid, reason

	creds := embeddedCredentials(doc)
	checks := make([]models.CredentialCheck, len(creds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.verifyConcurrency)
	for i, cred := range creds {
		g.Go(func() error {
			check, err := s.verifyCredential(gctx, i, cred)
			if err != nil {
				return err
			}
			checks[i] = check
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Credentials = checks
	return result, nil
}

func (s *Service) verifyHolder(ctx context.Context, holderDID string, doc map[string]any) (bool, string, error) {
	if claimed := didOf(doc["holder"]); claimed != "" && claimed != holderDID {
		return false, models.ReasonHolderMismatch, nil
	}
	key, reason, err := s.resolveKey(ctx, holderDID, models.ReasonHolderNotFound, models.ReasonHolderInactive, models.ReasonHolderInvalid)
	if err != nil || reason != "" {
		return false, reason, err
	}
	proof := signature.VerifyDocumentProof(doc, key.PublicKey)
	return proof.Valid, proof.Reason, nil
}

func (s *Service) verifyCredential(ctx context.Context, index int, raw any) (models.CredentialCheck, error) {
	check := models.CredentialCheck{Index: index}
	cred, ok := raw.(map[string]any)
	if !ok {
		check.Reason = models.ReasonInvalidCredential
		return check, nil
	}
	check.ID, _ = cred["id"].(string)
	check.IssuerDID = didOf(cred["issuer"])
	if check.IssuerDID == "" {
		check.Reason = models.ReasonMissingIssuer
		return check, nil
	}

	key, reason, err := s.resolveKey(ctx, check.IssuerDID, models.ReasonIssuerNotFound, models.ReasonIssuerInactive, models.ReasonIssuerInvalid)
	if err != nil {
		return check, err
	}
	if reason != "" {
		check.Reason = reason
		return check, nil
	}
	proof := signature.VerifyDocumentProof(cred, key.PublicKey)
	check.Valid, check.Reason = proof.Valid, proof.Reason
	return check, nil
}

// resolveKey maps resolver outcomes onto verification reasons. Only transport
// failures are returned as errors.
func (s *Service) resolveKey(ctx context.Context, subject, notFound, inactive, invalid string) (*did.Key, string, error) {
	key, err := s.resolver.Resolve(ctx, subject)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, notFound, nil
	case errors.Is(err, did.ErrNoActiveKey):
		return nil, inactive, nil
	case errors.Is(err, did.ErrInvalidDocument):
		return nil, invalid, nil
	default:
		return nil, "", err
	}
	if !key.IsActive() {
		return nil, inactive, nil
	}
	return key, "", nil
}

// embeddedCredentials returns the verifiableCredential member as a list.
func embeddedCredentials(doc map[string]any) []any {
	switch v := doc["verifiableCredential"].(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return []any{v}
	}
}

// didOf reads a DID that is either a plain string or an object with an id.
func didOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["id"].(string)
		return s
	}
	return ""
}
