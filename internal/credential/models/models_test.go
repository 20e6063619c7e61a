package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
)

func TestParseRequestType(t *testing.T) {
	typ, err := ParseRequestType(" Renewal ")
	require.NoError(t, err)
	assert.Equal(t, RequestRenewal, typ)

	_, err = ParseRequestType("transfer")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestRequestTypeLedgerMethods(t *testing.T) {
	assert.Equal(t, "issueVC", RequestIssuance.LedgerMethod())
	assert.Equal(t, "renewVC", RequestRenewal.LedgerMethod())
	assert.Equal(t, "updateVC", RequestUpdate.LedgerMethod())
	assert.Equal(t, "revokeVC", RequestRevocation.LedgerMethod())
	assert.False(t, RequestRevocation.DeliversResponse())
	assert.True(t, RequestIssuance.DeliversResponse())
}

func TestNewRequest(t *testing.T) {
	now := time.Now()
	reqID := id.RequestID(uuid.New())

	req, err := NewRequest(reqID, RequestIssuance, "did:example:issuer", "did:example:holder", "ct", now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.NoError(t, req.CanDecide())

	_, err = NewRequest(reqID, RequestIssuance, "", "did:example:holder", "ct", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewRequest(reqID, RequestIssuance, "did:example:issuer", "did:example:holder", "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRequestDecidedOnce(t *testing.T) {
	now := time.Now()
	req, err := NewRequest(id.RequestID(uuid.New()), RequestRevocation, "did:example:i", "did:example:h", "ct", now)
	require.NoError(t, err)

	req.ApplyRejection(now)
	assert.Equal(t, StatusRejected, req.Status)
	assert.True(t, req.Status.IsTerminal())
	assert.Error(t, req.CanDecide())
}

func TestApprovalValidate(t *testing.T) {
	now := time.Now()
	later := now.Add(24 * time.Hour)
	earlier := now.Add(-time.Minute)

	full := &Approval{
		VCID: "vc1", VCType: "Degree", SchemaID: "s1", SchemaVersion: 1,
		VCHash: "0xhash", ExpiredAt: &later, EncryptedVC: "enc",
	}

	tests := []struct {
		name     string
		typ      RequestType
		approval *Approval
		wantErr  string
	}{
		{"nil approval", RequestIssuance, nil, "approval fields are required"},
		{"complete issuance", RequestIssuance, full, ""},
		{"issuance missing schema", RequestIssuance, &Approval{VCID: "vc1", VCType: "Degree", VCHash: "h", ExpiredAt: &later, EncryptedVC: "e"}, "schema_id, schema_version"},
		{"renewal needs expiry", RequestRenewal, &Approval{VCID: "vc1", VCHash: "h", EncryptedVC: "e"}, "expired_at"},
		{"renewal in the past", RequestRenewal, &Approval{VCID: "vc1", VCHash: "h", ExpiredAt: &earlier, EncryptedVC: "e"}, "must be in the future"},
		{"update needs encrypted vc", RequestUpdate, &Approval{VCID: "vc1", SchemaID: "s", SchemaVersion: 2, VCHash: "h"}, "encrypted_vc"},
		{"revocation only needs vc id", RequestRevocation, &Approval{VCID: "vc1"}, ""},
		{"revocation without vc id", RequestRevocation, &Approval{}, "vc_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.approval.Validate(tt.typ, now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApprovalLedgerArgs(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	req := &Request{Type: RequestIssuance, IssuerDID: "did:example:i", HolderDID: "did:example:h"}
	a := &Approval{VCID: "vc1", VCType: "Degree", SchemaID: "s1", SchemaVersion: 3, VCHash: "0xh", ExpiredAt: &exp}

	assert.Equal(t,
		[]any{"vc1", "did:example:i", "did:example:h", "Degree", "s1", 3, "0xh", int64(1_900_000_000)},
		a.LedgerArgs(req))

	req.Type = RequestRevocation
	assert.Equal(t, []any{"vc1"}, a.LedgerArgs(req))
}

func TestConfirmRequestBodyDeduplicates(t *testing.T) {
	a, b := id.ResponseID(uuid.New()), id.ResponseID(uuid.New())
	body := &ConfirmRequestBody{IDs: []id.ResponseID{a, b, a}}
	body.Normalize()
	assert.Equal(t, []id.ResponseID{a, b}, body.IDs)
	assert.NoError(t, body.Validate())

	empty := &ConfirmRequestBody{}
	empty.Normalize()
	assert.Error(t, empty.Validate())
}

func TestProcessRequestBodyDefaults(t *testing.T) {
	body := &ProcessRequestBody{RequestID: id.RequestID(uuid.New()), HolderDID: " did:example:h ", Action: "approved"}
	body.Normalize()
	require.NoError(t, body.Validate())

	cmd := body.Command("did:example:i")
	assert.Equal(t, RequestIssuance, cmd.Type)
	assert.Equal(t, DecisionApproved, cmd.Decision)
	assert.Equal(t, "did:example:h", cmd.HolderDID)
	assert.Equal(t, "did:example:i", cmd.IssuerDID)
}

func TestResetStuckBodyValidate(t *testing.T) {
	assert.NoError(t, (&ResetStuckBody{TimeoutMinutes: MaxResetTimeoutMinutes}).Validate())

	err := (&ResetStuckBody{TimeoutMinutes: MaxResetTimeoutMinutes + 1}).Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	// Large enough to wrap a time.Duration once multiplied by a minute.
	err = (&ResetStuckBody{TimeoutMinutes: 1 << 40}).Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
