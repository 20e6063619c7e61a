package models

import (
	"strings"
	"time"

	"vcanchor/internal/ledger"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
)

// RequestType selects which request table and ledger method a request uses.
type RequestType string

const (
	RequestIssuance   RequestType = "issuance"
	RequestRenewal    RequestType = "renewal"
	RequestUpdate     RequestType = "update"
	RequestRevocation RequestType = "revocation"
)

// RequestTypes lists every supported type in a stable order.
var RequestTypes = []RequestType{RequestIssuance, RequestRenewal, RequestUpdate, RequestRevocation}

var ledgerMethods = map[RequestType]string{
	RequestIssuance:   ledger.MethodIssueVC,
	RequestRenewal:    ledger.MethodRenewVC,
	RequestUpdate:     ledger.MethodUpdateVC,
	RequestRevocation: ledger.MethodRevokeVC,
}

// ParseRequestType accepts the canonical names case-insensitively.
func ParseRequestType(s string) (RequestType, error) {
	t := RequestType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown request type: "+s)
	}
	return t, nil
}

func (t RequestType) IsValid() bool {
	_, ok := ledgerMethods[t]
	return ok
}

// LedgerMethod is the contract method recording an approval of this type.
func (t RequestType) LedgerMethod() string {
	return ledgerMethods[t]
}

// DeliversResponse reports whether an approval queues a credential for the holder.
// Revocations deliver nothing.
func (t RequestType) DeliversResponse() bool {
	return t != RequestRevocation
}

// RequestStatus is the lifecycle state of a credential request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is a holder's ask for an issuer to act on a credential.
//
// Invariants:
//   - Status moves PENDING -> APPROVED or PENDING -> REJECTED exactly once
//   - Approval fields and TxHash are only set on APPROVED
//   - EncryptedBody is opaque and never interpreted
type Request struct {
	ID            id.RequestID  `json:"id"`
	Type          RequestType   `json:"type"`
	IssuerDID     string        `json:"issuer_did"`
	HolderDID     string        `json:"holder_did"`
	EncryptedBody string        `json:"encrypted_body"`
	Status        RequestStatus `json:"status"`
	VCID          string        `json:"vc_id,omitempty"`
	VCType        string        `json:"vc_type,omitempty"`
	SchemaID      string        `json:"schema_id,omitempty"`
	SchemaVersion int           `json:"schema_version,omitempty"`
	VCHash        string        `json:"vc_hash,omitempty"`
	ExpiredAt     *time.Time    `json:"expired_at,omitempty"`
	TxHash        string        `json:"tx_hash,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewRequest builds a PENDING request.
func NewRequest(reqID id.RequestID, typ RequestType, issuerDID, holderDID, body string, now time.Time) (*Request, error) {
	if !typ.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown request type")
	}
	if issuerDID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer_did is required")
	}
	if holderDID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "holder_did is required")
	}
	if body == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "encrypted_body is required")
	}
	return &Request{
		ID:            reqID,
		Type:          typ,
		IssuerDID:     issuerDID,
		HolderDID:     holderDID,
		EncryptedBody: body,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// CanDecide checks that the request has not been decided yet.
func (r *Request) CanDecide() error {
	if !r.IsPending() {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already "+string(r.Status))
	}
	return nil
}

// ApplyApproval moves the request to APPROVED with the ledger-identifying fields.
func (r *Request) ApplyApproval(a *Approval, txHash string, now time.Time) {
	r.Status = StatusApproved
	r.VCID = a.VCID
	r.VCType = a.VCType
	r.SchemaID = a.SchemaID
	r.SchemaVersion = a.SchemaVersion
	r.VCHash = a.VCHash
	r.ExpiredAt = a.ExpiredAt
	r.TxHash = txHash
	r.UpdatedAt = now
}

// ApplyRejection moves the request to REJECTED.
func (r *Request) ApplyRejection(now time.Time) {
	r.Status = StatusRejected
	r.UpdatedAt = now
}

// Decision is the issuer's verdict on a pending request.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Approval carries the fields the ledger records for an approved request and the
// encrypted credential delivered to the holder.
type Approval struct {
	VCID          string     `json:"vc_id"`
	VCType        string     `json:"vc_type,omitempty"`
	SchemaID      string     `json:"schema_id,omitempty"`
	SchemaVersion int        `json:"schema_version,omitempty"`
	VCHash        string     `json:"vc_hash,omitempty"`
	ExpiredAt     *time.Time `json:"expired_at,omitempty"`
	EncryptedVC   string     `json:"encrypted_vc,omitempty"`
}

// Validate checks the fields each request type records on the ledger.
//
//   - issuance:   vc_id, vc_type, schema_id, schema_version, vc_hash, expired_at, encrypted_vc
//   - renewal:    vc_id, vc_hash, expired_at, encrypted_vc
//   - update:     vc_id, schema_id, schema_version, vc_hash, encrypted_vc
//   - revocation: vc_id
func (a *Approval) Validate(typ RequestType, now time.Time) error {
	if a == nil {
		return dErrors.New(dErrors.CodeBadRequest, "approval fields are required")
	}
	var missing []string
	need := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	need(a.VCID != "", "vc_id")
	switch typ {
	case RequestIssuance:
		need(a.VCType != "", "vc_type")
		need(a.SchemaID != "", "schema_id")
		need(a.SchemaVersion > 0, "schema_version")
		need(a.VCHash != "", "vc_hash")
		need(a.ExpiredAt != nil, "expired_at")
	case RequestRenewal:
		need(a.VCHash != "", "vc_hash")
		need(a.ExpiredAt != nil, "expired_at")
	case RequestUpdate:
		need(a.SchemaID != "", "schema_id")
		need(a.SchemaVersion > 0, "schema_version")
		need(a.VCHash != "", "vc_hash")
	}
	if typ.DeliversResponse() {
		need(a.EncryptedVC != "", "encrypted_vc")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeBadRequest, "missing approval fields: "+strings.Join(missing, ", "))
	}
	if a.ExpiredAt != nil && !a.ExpiredAt.After(now) {
		return dErrors.New(dErrors.CodeBadRequest, "expired_at must be in the future")
	}
	return nil
}

// LedgerArgs returns the contract arguments for recording the approval.
func (a *Approval) LedgerArgs(req *Request) []any {
	switch req.Type {
	case RequestIssuance:
		return []any{a.VCID, req.IssuerDID, req.HolderDID, a.VCType, a.SchemaID, a.SchemaVersion, a.VCHash, a.ExpiredAt.Unix()}
	case RequestRenewal:
		return []any{a.VCID, a.VCHash, a.ExpiredAt.Unix()}
	case RequestUpdate:
		return []any{a.VCID, a.SchemaID, a.SchemaVersion, a.VCHash}
	default:
		return []any{a.VCID}
	}
}

// ProcessCommand is an issuer's decision on one request. IssuerDID and HolderDID
// must match the stored request.
type ProcessCommand struct {
	Type      RequestType
	RequestID id.RequestID
	Decision  Decision
	IssuerDID string
	HolderDID string
	Approval  *Approval
}

// ProcessResult reports the outcome of a decision. Degraded is set when the
// ledger write succeeded but the store write did not; ResponseID is nil then.
type ProcessResult struct {
	Request    *Request        `json:"request"`
	Degraded   bool            `json:"degraded"`
	Receipt    *ledger.Receipt `json:"receipt,omitempty"`
	ResponseID *id.ResponseID  `json:"response_id,omitempty"`
}
