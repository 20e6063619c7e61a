package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"vcanchor/internal/credential/models"
	"vcanchor/internal/ledger"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/requestcontext"
)

const (
	outcomeApproved    = "approved"
	outcomeRejected    = "rejected"
	outcomeDegraded    = "degraded"
	outcomeLedgerError = "ledger_error"
)

// Process applies an issuer's decision to a PENDING request.
//
// Rejections only touch the store. Approvals record the credential on the ledger
// first, then in one store transaction mark the request APPROVED and queue the
// encrypted credential for the holder (revocations queue nothing).
func (s *Service) Process(ctx context.Context, cmd models.ProcessCommand) (*models.ProcessResult, error) {
	start := time.Now()
	defer s.metrics.ObserveProcess(string(cmd.Type), start)

	if !cmd.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown request type")
	}
	req, err := s.requests.FindByID(ctx, cmd.Type, cmd.RequestID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if err := req.CanDecide(); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "credential request is already "+string(req.Status))
	}
	if req.IssuerDID != cmd.IssuerDID || req.HolderDID != cmd.HolderDID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer or holder does not match the request")
	}

	now := requestcontext.Now(ctx)
	switch cmd.Decision {
	case models.DecisionRejected:
		return s.reject(ctx, req, now)
	case models.DecisionApproved:
		if err := cmd.Approval.Validate(req.Type, now); err != nil {
			return nil, err
		}
		return s.approve(ctx, req, cmd.Approval, now)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "action must be APPROVED or REJECTED")
	}
}

func (s *Service) reject(ctx context.Context, req *models.Request, now time.Time) (*models.ProcessResult, error) {
	req.ApplyRejection(now)
	if err := s.requests.UpdateDecision(ctx, req); err != nil {
		return nil, wrapDecisionErr(err)
	}

	s.metrics.IncDecided(string(req.Type), outcomeRejected)
	s.emit(ctx, audit.Event{
		Type:          audit.EventCredentialRequestRejected,
		AggregateType: audit.AggregateCredentialRequest,
		AggregateID:   req.ID.String(),
		SubjectDID:    req.HolderDID,
		ActorDID:      req.IssuerDID,
		Attributes:    map[string]string{"type": string(req.Type)},
	})
	return &models.ProcessResult{Request: req}, nil
}

func (s *Service) approve(ctx context.Context, req *models.Request, approval *models.Approval, now time.Time) (*models.ProcessResult, error) {
	method := req.Type.LedgerMethod()
	receipt, err := s.ledger.SubmitAndWait(ctx, method, approval.LedgerArgs(req)...)
	if err != nil {
		s.metrics.IncDecided(string(req.Type), outcomeLedgerError)
		s.logger.ErrorContext(ctx, "ledger rejected credential approval",
			"request_id", requestcontext.RequestID(ctx),
			"credential_request_id", req.ID.String(),
			"method", method,
			"tx_hash", ledger.TxHashOf(err),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeLedger, "ledger "+method+" failed")
	}

	req.ApplyApproval(approval, receipt.TxHash, now)
	var resp *models.Response
	if req.Type.DeliversResponse() {
		resp = models.NewResponse(id.ResponseID(uuid.New()), req, approval.EncryptedVC, now)
	}

	// The ledger write cannot be undone, so the caller going away must not
	// abort the matching store write.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
	defer cancel()
	err = s.tx.RunInTx(rctx, func(ctx context.Context) error {
		if err := s.requests.UpdateDecision(ctx, req); err != nil {
			return err
		}
		if resp != nil {
			return s.responses.Create(ctx, resp)
		}
		return nil
	})
	if err != nil {
		// The ledger already holds the credential; surface the split instead of failing.
		s.metrics.IncDecided(string(req.Type), outcomeDegraded)
		s.logger.ErrorContext(ctx, "store write failed after ledger approval",
			"request_id", requestcontext.RequestID(ctx),
			"credential_request_id", req.ID.String(),
			"method", method,
			"tx_hash", receipt.TxHash,
			"error", err,
		)
		s.emit(ctx, audit.Event{
			Type:          audit.EventCredentialApprovalDegraded,
			AggregateType: audit.AggregateCredentialRequest,
			AggregateID:   req.ID.String(),
			SubjectDID:    req.HolderDID,
			ActorDID:      req.IssuerDID,
			TxHash:        receipt.TxHash,
			Reason:        err.Error(),
			Attributes:    map[string]string{"type": string(req.Type), "vc_id": approval.VCID},
		})
		return &models.ProcessResult{Request: req, Degraded: true, Receipt: receipt}, nil
	}

	s.metrics.IncDecided(string(req.Type), outcomeApproved)
	s.emit(ctx, audit.Event{
		Type:          audit.EventCredentialRequestApproved,
		AggregateType: audit.AggregateCredentialRequest,
		AggregateID:   req.ID.String(),
		SubjectDID:    req.HolderDID,
		ActorDID:      req.IssuerDID,
		TxHash:        receipt.TxHash,
		Attributes:    map[string]string{"type": string(req.Type), "vc_id": approval.VCID},
	})
	result := &models.ProcessResult{Request: req, Receipt: receipt}
	if resp != nil {
		result.ResponseID = &resp.ID
	}
	return result, nil
}

func wrapDecisionErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "credential request is no longer pending")
	default:
		return dErrors.Wrap(err, dErrors.CodeStore, "failed to store decision")
	}
}
