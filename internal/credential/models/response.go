package models

import (
	"time"

	id "vcanchor/pkg/domain"
)

// ResponseStatus is the leasing state of a queued credential response.
type ResponseStatus string

const (
	ResponsePending    ResponseStatus = "PENDING"
	ResponseProcessing ResponseStatus = "PROCESSING"
)

// Response is an approved credential waiting for holder pickup.
//
// Invariants:
//   - PENDING -> PROCESSING on claim, PROCESSING -> soft-deleted on confirm
//   - PROCESSING -> PENDING only through the stuck-claim sweep
//   - at most one response per (request type, request id)
type Response struct {
	ID            id.ResponseID  `json:"id"`
	RequestID     id.RequestID   `json:"request_id"`
	RequestType   RequestType    `json:"request_type"`
	IssuerDID     string         `json:"issuer_did"`
	HolderDID     string         `json:"holder_did"`
	EncryptedBody string         `json:"encrypted_body"`
	Status        ResponseStatus `json:"status"`
	ClaimedAt     *time.Time     `json:"claimed_at,omitempty"`
	DeletedAt     *time.Time     `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewResponse queues the encrypted credential for an approved request.
func NewResponse(respID id.ResponseID, req *Request, encryptedVC string, now time.Time) *Response {
	return &Response{
		ID:            respID,
		RequestID:     req.ID,
		RequestType:   req.Type,
		IssuerDID:     req.IssuerDID,
		HolderDID:     req.HolderDID,
		EncryptedBody: encryptedVC,
		Status:        ResponsePending,
		CreatedAt:     now,
	}
}

// IsDeleted reports whether the holder already confirmed receipt.
func (r *Response) IsDeleted() bool {
	return r.DeletedAt != nil
}

// ClaimResult is one claim batch for a holder.
type ClaimResult struct {
	Responses      []*Response `json:"responses"`
	ClaimedCount   int         `json:"claimed_count"`
	HasMore        bool        `json:"has_more"`
	RemainingCount int         `json:"remaining_count"`
}

// ConfirmOutcome is the per-id result of a confirm batch.
type ConfirmOutcome string

const (
	OutcomeConfirmed     ConfirmOutcome = "confirmed"
	OutcomeNotFound      ConfirmOutcome = "not_found"
	OutcomeNotOwner      ConfirmOutcome = "not_owner"
	OutcomeNotProcessing ConfirmOutcome = "not_processing"
)

// ConfirmItem reports what happened to one id.
type ConfirmItem struct {
	ID      id.ResponseID  `json:"id"`
	Outcome ConfirmOutcome `json:"outcome"`
}

// ConfirmResult lists outcomes in request order.
type ConfirmResult struct {
	Results        []ConfirmItem `json:"results"`
	ConfirmedCount int           `json:"confirmed_count"`
	SkippedCount   int           `json:"skipped_count"`
}
