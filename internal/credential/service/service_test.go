package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks RequestStore,ResponseStore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vcanchor/internal/credential/models"
	"vcanchor/internal/credential/service/mocks"
	"vcanchor/internal/credential/store/request"
	"vcanchor/internal/credential/store/response"
	"vcanchor/internal/ledger"
	ledgermocks "vcanchor/internal/ledger/mocks"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/audit/publisher"
	auditmemory "vcanchor/pkg/platform/audit/store/memory"
	"vcanchor/pkg/requestcontext"
)

const (
	issuerDID = "did:example:issuer"
	holderDID = "did:example:holder"
	otherDID  = "did:example:other"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	ledger    *ledgermocks.MockGateway
	requests  *request.InMemoryStore
	responses *response.InMemoryStore
	events    *auditmemory.InMemoryStore
	service   *Service
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = ledgermocks.NewMockGateway(s.ctrl)
	s.requests = request.NewInMemoryStore()
	s.responses = response.NewInMemoryStore()
	s.events = auditmemory.NewInMemoryStore()

	var err error
	s.service, err = New(s.requests, s.responses, s.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	)
	s.Require().NoError(err)

	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) approval() *models.Approval {
	exp := s.now.Add(365 * 24 * time.Hour)
	return &models.Approval{
		VCID:          "vc1",
		VCType:        "UniversityDegree",
		SchemaID:      "schema-1",
		SchemaVersion: 1,
		VCHash:        "0xhash",
		ExpiredAt:     &exp,
		EncryptedVC:   "encrypted-vc",
	}
}

func (s *ServiceSuite) createRequest(typ models.RequestType) *models.Request {
	req, err := s.service.Create(s.ctx, typ, issuerDID, holderDID, "ct")
	s.Require().NoError(err)
	return req
}

func (s *ServiceSuite) approve(req *models.Request) models.ProcessCommand {
	return models.ProcessCommand{
		Type:      req.Type,
		RequestID: req.ID,
		Decision:  models.DecisionApproved,
		IssuerDID: issuerDID,
		HolderDID: holderDID,
		Approval:  s.approval(),
	}
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil request store returns error", func() {
		_, err := New(nil, s.responses, s.ledger)
		s.ErrorContains(err, "request store is required")
	})
	s.Run("nil response store returns error", func() {
		_, err := New(s.requests, nil, s.ledger)
		s.ErrorContains(err, "response store is required")
	})
	s.Run("nil gateway returns error", func() {
		_, err := New(s.requests, s.responses, nil)
		s.ErrorContains(err, "ledger gateway is required")
	})
}

func (s *ServiceSuite) TestCreate() {
	s.Run("creates a pending request", func() {
		req := s.createRequest(models.RequestIssuance)
		s.Equal(models.StatusPending, req.Status)
		s.Equal(s.now, req.CreatedAt)

		stored, err := s.service.Get(s.ctx, models.RequestIssuance, req.ID)
		s.Require().NoError(err)
		s.Equal("ct", stored.EncryptedBody)
		s.Contains(s.events.Types(), audit.EventCredentialRequestCreated)
	})

	s.Run("missing body is a bad request", func() {
		_, err := s.service.Create(s.ctx, models.RequestIssuance, issuerDID, holderDID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("requests are scoped to their type", func() {
		req := s.createRequest(models.RequestRenewal)
		_, err := s.service.Get(s.ctx, models.RequestIssuance, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// Issuance approval records on the ledger and queues a response for the holder.
func (s *ServiceSuite) TestProcessApproveIssuance() {
	req := s.createRequest(models.RequestIssuance)
	exp := s.approval().ExpiredAt.Unix()

	s.ledger.EXPECT().
		SubmitAndWait(gomock.Any(), ledger.MethodIssueVC,
			"vc1", issuerDID, holderDID, "UniversityDegree", "schema-1", 1, "0xhash", exp).
		Return(&ledger.Receipt{Status: 1, TxHash: "0xabc", BlockNumber: 7}, nil)

	result, err := s.service.Process(s.ctx, s.approve(req))
	s.Require().NoError(err)
	s.False(result.Degraded)
	s.Equal("0xabc", result.Receipt.TxHash)
	s.Require().NotNil(result.ResponseID)

	stored, err := s.service.Get(s.ctx, models.RequestIssuance, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal("vc1", stored.VCID)
	s.Equal("0xabc", stored.TxHash)

	claim, err := s.service.Claim(s.ctx, holderDID, 10)
	s.Require().NoError(err)
	s.Require().Len(claim.Responses, 1)
	s.Equal(req.ID, claim.Responses[0].RequestID)
	s.Equal(*result.ResponseID, claim.Responses[0].ID)
	s.Equal("encrypted-vc", claim.Responses[0].EncryptedBody)
	s.Contains(s.events.Types(), audit.EventCredentialRequestApproved)
}

// A caller that goes away after the ledger confirmed must not cost the store write.
func (s *ServiceSuite) TestProcessRecordsApprovalAfterCallerCancels() {
	req := s.createRequest(models.RequestIssuance)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.ledger.EXPECT().SubmitAndWait(gomock.Any(), ledger.MethodIssueVC, gomock.Any()).
		DoAndReturn(func(context.Context, string, ...any) (*ledger.Receipt, error) {
			cancel()
			return &ledger.Receipt{Status: 1, TxHash: "0xabc"}, nil
		})

	result, err := s.service.Process(ctx, s.approve(req))
	s.Require().NoError(err)
	s.False(result.Degraded)
	s.Require().NotNil(result.ResponseID)

	stored, err := s.service.Get(s.ctx, models.RequestIssuance, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal("0xabc", stored.TxHash)
}

func (s *ServiceSuite) TestProcessApproveRevocationQueuesNothing() {
	req := s.createRequest(models.RequestRevocation)
	s.ledger.EXPECT().
		SubmitAndWait(gomock.Any(), ledger.MethodRevokeVC, "vc1").
		Return(&ledger.Receipt{Status: 1, TxHash: "0xdef"}, nil)

	result, err := s.service.Process(s.ctx, s.approve(req))
	s.Require().NoError(err)
	s.Nil(result.ResponseID)
	s.Equal(models.StatusApproved, result.Request.Status)

	remaining, err := s.responses.CountPending(s.ctx, holderDID)
	s.Require().NoError(err)
	s.Zero(remaining)
}

func (s *ServiceSuite) TestProcessReject() {
	req := s.createRequest(models.RequestUpdate)
	cmd := s.approve(req)
	cmd.Decision = models.DecisionRejected
	cmd.Approval = nil

	result, err := s.service.Process(s.ctx, cmd)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, result.Request.Status)
	s.Nil(result.Receipt)
	s.Contains(s.events.Types(), audit.EventCredentialRequestRejected)
}

// A decided request never transitions again.
func (s *ServiceSuite) TestProcessIsMonotonic() {
	for _, first := range []models.Decision{models.DecisionApproved, models.DecisionRejected} {
		s.Run(string(first), func() {
			req := s.createRequest(models.RequestIssuance)
			cmd := s.approve(req)
			cmd.Decision = first
			s.ledger.EXPECT().SubmitAndWait(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&ledger.Receipt{Status: 1, TxHash: "0x1"}, nil).MaxTimes(1)

			_, err := s.service.Process(s.ctx, cmd)
			s.Require().NoError(err)

			for _, again := range []models.Decision{models.DecisionApproved, models.DecisionRejected} {
				cmd.Decision = again
				_, err := s.service.Process(s.ctx, cmd)
				s.True(dErrors.HasCode(err, dErrors.CodeConflict), "expected conflict, got %v", err)
			}
		})
	}
}

func (s *ServiceSuite) TestProcessValidation() {
	s.Run("unknown request is not found", func() {
		cmd := models.ProcessCommand{
			Type:      models.RequestIssuance,
			RequestID: id.RequestID(uuid.New()),
			Decision:  models.DecisionRejected,
			IssuerDID: issuerDID,
			HolderDID: holderDID,
		}
		_, err := s.service.Process(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("caller DIDs must match the request", func() {
		req := s.createRequest(models.RequestIssuance)
		cmd := s.approve(req)
		cmd.IssuerDID = otherDID
		_, err := s.service.Process(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		cmd = s.approve(req)
		cmd.HolderDID = otherDID
		_, err = s.service.Process(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing approval fields never reach the ledger", func() {
		req := s.createRequest(models.RequestIssuance)
		cmd := s.approve(req)
		cmd.Approval.SchemaID = ""
		_, err := s.service.Process(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.ErrorContains(err, "schema_id")
	})
}

// A ledger failure leaves the store untouched and surfaces a ledger error.
func (s *ServiceSuite) TestProcessLedgerFailure() {
	req := s.createRequest(models.RequestIssuance)
	ledgerErr := &ledger.Error{Method: ledger.MethodIssueVC, TxHash: "0xbad", Err: ledger.ErrReverted}
	s.ledger.EXPECT().SubmitAndWait(gomock.Any(), ledger.MethodIssueVC, gomock.Any()).Return(nil, ledgerErr)

	_, err := s.service.Process(s.ctx, s.approve(req))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLedger))
	s.Equal("0xbad", ledger.TxHashOf(err))

	stored, err := s.service.Get(s.ctx, models.RequestIssuance, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
	s.Empty(stored.TxHash)
}

// A store failure after the ledger accepted the approval is a degraded success.
func (s *ServiceSuite) TestProcessDegradedAfterLedgerSuccess() {
	failing := mocks.NewMockResponseStore(s.ctrl)
	svc, err := New(s.requests, failing, s.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	)
	s.Require().NoError(err)

	req, err := svc.Create(s.ctx, models.RequestIssuance, issuerDID, holderDID, "ct")
	s.Require().NoError(err)

	s.ledger.EXPECT().SubmitAndWait(gomock.Any(), ledger.MethodIssueVC, gomock.Any()).
		Return(&ledger.Receipt{Status: 1, TxHash: "0xabc"}, nil)
	failing.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	result, err := svc.Process(s.ctx, s.approve(req))
	s.Require().NoError(err)
	s.True(result.Degraded)
	s.Nil(result.ResponseID)
	s.Equal("0xabc", result.Receipt.TxHash)
	s.Contains(s.events.Types(), audit.EventCredentialApprovalDegraded)
}

// Claim returns the holder's rows once; another holder never sees them.
func (s *ServiceSuite) TestClaim() {
	s.seedResponses(holderDID, 3)

	result, err := s.service.Claim(s.ctx, holderDID, 10)
	s.Require().NoError(err)
	s.Equal(3, result.ClaimedCount)
	s.False(result.HasMore)
	s.Zero(result.RemainingCount)
	for _, r := range result.Responses {
		s.Equal(models.ResponseProcessing, r.Status)
		s.Equal(s.now, *r.ClaimedAt)
	}

	other, err := s.service.Claim(s.ctx, otherDID, 10)
	s.Require().NoError(err)
	s.Zero(other.ClaimedCount)

	again, err := s.service.Claim(s.ctx, holderDID, 10)
	s.Require().NoError(err)
	s.Zero(again.ClaimedCount)
}

func (s *ServiceSuite) TestClaimReportsRemaining() {
	s.seedResponses(holderDID, 5)

	result, err := s.service.Claim(s.ctx, holderDID, 2)
	s.Require().NoError(err)
	s.Equal(2, result.ClaimedCount)
	s.True(result.HasMore)
	s.Equal(3, result.RemainingCount)

	_, err = s.service.Claim(s.ctx, holderDID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

// Concurrent claimers never receive the same row twice.
func (s *ServiceSuite) TestConcurrentClaimExclusivity() {
	const rows, workers = 50, 20
	s.seedResponses(holderDID, rows)

	var (
		wg    sync.WaitGroup
		seen  sync.Map
		total atomic.Int32
		dupes atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.service.Claim(s.ctx, holderDID, 5)
			if err != nil {
				return
			}
			for _, r := range result.Responses {
				if _, loaded := seen.LoadOrStore(r.ID, true); loaded {
					dupes.Add(1)
				}
				total.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Zero(dupes.Load())
	s.Equal(int32(rows), total.Load())
}

func (s *ServiceSuite) TestConfirm() {
	mine := s.seedResponses(holderDID, 2)
	theirs := s.seedResponses(otherDID, 1)
	_, err := s.service.Claim(s.ctx, holderDID, 1)
	s.Require().NoError(err)
	_, err = s.service.Claim(s.ctx, otherDID, 1)
	s.Require().NoError(err)

	unknown := id.ResponseID(uuid.New())
	ids := []id.ResponseID{mine[0].ID, mine[1].ID, theirs[0].ID, unknown}

	result, err := s.service.Confirm(s.ctx, holderDID, ids)
	s.Require().NoError(err)
	s.Equal(1, result.ConfirmedCount)
	s.Equal(3, result.SkippedCount)
	s.Equal([]models.ConfirmItem{
		{ID: mine[0].ID, Outcome: models.OutcomeConfirmed},
		{ID: mine[1].ID, Outcome: models.OutcomeNotProcessing},
		{ID: theirs[0].ID, Outcome: models.OutcomeNotOwner},
		{ID: unknown, Outcome: models.OutcomeNotFound},
	}, result.Results)

	again, err := s.service.Confirm(s.ctx, holderDID, ids[:1])
	s.Require().NoError(err)
	s.Equal(models.OutcomeNotFound, again.Results[0].Outcome)
}

// Only claims older than the timeout return to PENDING.
func (s *ServiceSuite) TestResetStuck() {
	s.seedResponses(holderDID, 1)
	old := requestcontext.WithTime(context.Background(), s.now.Add(-20*time.Minute))
	_, err := s.service.Claim(old, holderDID, 1)
	s.Require().NoError(err)

	s.seedResponses(holderDID, 1)
	recent := requestcontext.WithTime(context.Background(), s.now.Add(-5*time.Minute))
	_, err = s.service.Claim(recent, holderDID, 1)
	s.Require().NoError(err)

	n, err := s.service.ResetStuck(s.ctx, 15*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := s.responses.CountPending(s.ctx, holderDID)
	s.Require().NoError(err)
	s.Equal(1, pending)
	s.Contains(s.events.Types(), audit.EventResponsesReset)

	_, err = s.service.ResetStuck(s.ctx, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestNextPendingAndLists() {
	first := s.createRequest(models.RequestIssuance)
	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	_, err := s.service.Create(later, models.RequestIssuance, issuerDID, holderDID, "ct2")
	s.Require().NoError(err)

	next, err := s.service.NextPending(s.ctx, models.RequestIssuance, issuerDID)
	s.Require().NoError(err)
	s.Equal(first.ID, next.ID)

	_, err = s.service.NextPending(s.ctx, models.RequestIssuance, otherDID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	byHolder, err := s.service.ListByHolder(s.ctx, models.RequestIssuance, holderDID, models.StatusPending)
	s.Require().NoError(err)
	s.Len(byHolder, 2)

	byIssuer, err := s.service.ListByIssuer(s.ctx, models.RequestIssuance, issuerDID, models.StatusApproved)
	s.Require().NoError(err)
	s.Empty(byIssuer)

	_, err = s.service.ListByIssuer(s.ctx, models.RequestIssuance, issuerDID, "DONE")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) seedResponses(holder string, n int) []*models.Response {
	out := make([]*models.Response, 0, n)
	for i := range n {
		req := &models.Request{
			ID:        id.RequestID(uuid.New()),
			Type:      models.RequestIssuance,
			IssuerDID: issuerDID,
			HolderDID: holder,
		}
		resp := models.NewResponse(id.ResponseID(uuid.New()), req, "vc", s.now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.responses.Create(s.ctx, resp))
		out = append(out, resp)
	}
	return out
}
