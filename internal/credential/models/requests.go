package models

import (
	"strconv"
	"strings"

	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
)

// CreateRequestBody is the holder's submission to an issuer.
type CreateRequestBody struct {
	IssuerDID     string `json:"issuer_did"`
	EncryptedBody string `json:"encrypted_body"`
}

func (r *CreateRequestBody) Normalize() {
	r.IssuerDID = strings.TrimSpace(r.IssuerDID)
}

func (r *CreateRequestBody) Validate() error {
	if r.IssuerDID == "" {
		return dErrors.New(dErrors.CodeValidation, "issuer_did is required")
	}
	if r.EncryptedBody == "" {
		return dErrors.New(dErrors.CodeValidation, "encrypted_body is required")
	}
	return nil
}

// ProcessRequestBody is the issuer's decision as received over HTTP.
type ProcessRequestBody struct {
	Type      string       `json:"type"`
	RequestID id.RequestID `json:"request_id"`
	HolderDID string       `json:"holder_did"`
	Action    string       `json:"action"`
	Approval  *Approval    `json:"approval,omitempty"`
}

func (r *ProcessRequestBody) Normalize() {
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if r.Type == "" {
		r.Type = string(RequestIssuance)
	}
	r.HolderDID = strings.TrimSpace(r.HolderDID)
	r.Action = strings.ToUpper(strings.TrimSpace(r.Action))
}

func (r *ProcessRequestBody) Validate() error {
	if !RequestType(r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown request type")
	}
	if r.RequestID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "request_id is required")
	}
	if r.HolderDID == "" {
		return dErrors.New(dErrors.CodeValidation, "holder_did is required")
	}
	switch Decision(r.Action) {
	case DecisionApproved, DecisionRejected:
	default:
		return dErrors.New(dErrors.CodeValidation, "action must be APPROVED or REJECTED")
	}
	return nil
}

// Command converts the body into a service command for the authenticated issuer.
func (r *ProcessRequestBody) Command(issuerDID string) ProcessCommand {
	return ProcessCommand{
		Type:      RequestType(r.Type),
		RequestID: r.RequestID,
		Decision:  Decision(r.Action),
		IssuerDID: issuerDID,
		HolderDID: r.HolderDID,
		Approval:  r.Approval,
	}
}

// ClaimRequestBody asks for up to Limit queued responses.
type ClaimRequestBody struct {
	Limit int `json:"limit"`
}

func (r *ClaimRequestBody) Normalize() {
	if r.Limit == 0 {
		r.Limit = DefaultClaimLimit
	}
}

func (r *ClaimRequestBody) Validate() error {
	if r.Limit < 0 || r.Limit > MaxClaimLimit {
		return dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
	}
	return nil
}

// Claim batch bounds.
const (
	DefaultClaimLimit = 10
	MaxClaimLimit     = 100
)

// ConfirmRequestBody lists response ids the holder has stored.
type ConfirmRequestBody struct {
	IDs []id.ResponseID `json:"ids"`
}

func (r *ConfirmRequestBody) Normalize() {
	seen := make(map[id.ResponseID]struct{}, len(r.IDs))
	out := r.IDs[:0]
	for _, v := range r.IDs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	r.IDs = out
}

func (r *ConfirmRequestBody) Validate() error {
	if len(r.IDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "ids must not be empty")
	}
	if len(r.IDs) > MaxClaimLimit {
		return dErrors.New(dErrors.CodeValidation, "too many ids")
	}
	return nil
}

// MaxResetTimeoutMinutes is one week.
const MaxResetTimeoutMinutes = 7 * 24 * 60

// ResetStuckBody sets the claim age after which PROCESSING rows return to PENDING.
type ResetStuckBody struct {
	TimeoutMinutes int `json:"timeout_minutes"`
}

func (r *ResetStuckBody) Normalize() {}

func (r *ResetStuckBody) Validate() error {
	if r.TimeoutMinutes <= 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout_minutes must be positive")
	}
	if r.TimeoutMinutes > MaxResetTimeoutMinutes {
		return dErrors.New(dErrors.CodeValidation, "timeout_minutes must not exceed "+strconv.Itoa(MaxResetTimeoutMinutes))
	}
	return nil
}
