package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
)

// VPRequest is a verifier asking a holder for credentials matching SchemaIDs.
// It is immutable once created.
type VPRequest struct {
	ID          id.VPRequestID `json:"id"`
	HolderDID   string         `json:"holder_did"`
	VerifierDID string         `json:"verifier_did"`
	SchemaIDs   []string       `json:"schema_ids"`
	CreatedAt   time.Time      `json:"created_at"`
}

func NewVPRequest(reqID id.VPRequestID, holderDID, verifierDID string, schemaIDs []string, now time.Time) (*VPRequest, error) {
	if holderDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "holder_did is required")
	}
	if verifierDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "verifier_did is required")
	}
	ids := make([]string, 0, len(schemaIDs))
	seen := make(map[string]struct{}, len(schemaIDs))
	for _, s := range schemaIDs {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "schema ids must not be empty")
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		ids = append(ids, s)
	}
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one schema id is required")
	}
	return &VPRequest{
		ID:          reqID,
		HolderDID:   holderDID,
		VerifierDID: verifierDID,
		SchemaIDs:   ids,
		CreatedAt:   now,
	}, nil
}

// VPShare is a presentation left by a holder for one-time pickup.
type VPShare struct {
	ID        id.VPShareID    `json:"id"`
	HolderDID string          `json:"holder_did"`
	VP        json.RawMessage `json:"vp"`
	CreatedAt time.Time       `json:"created_at"`
	DeletedAt *time.Time      `json:"-"`
}

func NewVPShare(shareID id.VPShareID, holderDID string, vp []byte, now time.Time) (*VPShare, error) {
	if holderDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "holder_did is required")
	}
	compact, err := ParseVP(vp)
	if err != nil {
		return nil, err
	}
	return &VPShare{ID: shareID, HolderDID: holderDID, VP: compact, CreatedAt: now}, nil
}

func (s *VPShare) IsDeleted() bool {
	return s.DeletedAt != nil
}

// ParseVP checks that vp is a JSON object and returns it compacted.
func ParseVP(vp []byte) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(vp, &obj); err != nil || obj == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "vp must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, vp); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "vp must be a JSON object")
	}
	return buf.Bytes(), nil
}

// Verification reasons. An empty reason means the check passed.
const (
	ReasonHolderNotFound    = "holder_did_not_found"
	ReasonHolderInactive    = "holder_key_inactive"
	ReasonHolderInvalid     = "holder_document_invalid"
	ReasonHolderMismatch    = "holder_mismatch"
	ReasonMissingIssuer     = "missing_issuer"
	ReasonIssuerNotFound    = "issuer_did_not_found"
	ReasonIssuerInactive    = "issuer_key_inactive"
	ReasonIssuerInvalid     = "issuer_document_invalid"
	ReasonInvalidCredential = "invalid_credential"
)

// CredentialCheck is the verification outcome of one embedded credential.
type CredentialCheck struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	IssuerDID string `json:"issuer_did,omitempty"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

// VerificationResult is the outcome of verifying a stored presentation.
// VPValid covers the holder proof only; each credential carries its own result.
type VerificationResult struct {
	ShareID     id.VPShareID      `json:"share_id"`
	HolderDID   string            `json:"holder_did"`
	VPValid     bool              `json:"vp_valid"`
	Reason      string            `json:"reason,omitempty"`
	Credentials []CredentialCheck `json:"credentials"`
}

// AllValid reports whether the holder proof and every credential verified.
func (r *VerificationResult) AllValid() bool {
	if !r.VPValid {
		return false
	}
	for _, c := range r.Credentials {
		if !c.Valid {
			return false
		}
	}
	return true
}

// RequestVPBody is the verifier's HTTP body for a new VP request.
type RequestVPBody struct {
	HolderDID string   `json:"holder_did"`
	SchemaIDs []string `json:"schema_ids"`
}

func (r *RequestVPBody) Normalize() {
	r.HolderDID = strings.TrimSpace(r.HolderDID)
}

func (r *RequestVPBody) Validate() error {
	if r.HolderDID == "" {
		return dErrors.New(dErrors.CodeValidation, "holder_did is required")
	}
	if len(r.SchemaIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "schema_ids is required")
	}
	return nil
}

// StoreVPBody is the holder's HTTP body for sharing a presentation.
type StoreVPBody struct {
	VP json.RawMessage `json:"vp"`
}

func (r *StoreVPBody) Normalize() {}

func (r *StoreVPBody) Validate() error {
	if len(r.VP) == 0 {
		return dErrors.New(dErrors.CodeValidation, "vp is required")
	}
	return nil
}
