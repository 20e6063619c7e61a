// Package service implements the credential request state machine and the
// claim/confirm leasing of approved credentials.
//
// Approvals are written to the ledger first and to the store second. The two
// writes are not transactional: when the store write fails after the ledger
// accepted the transaction, Process reports a degraded success carrying the
// receipt instead of an error, because the ledger effect cannot be undone.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	credmetrics "vcanchor/internal/credential/metrics"
	"vcanchor/internal/credential/models"
	"vcanchor/internal/ledger"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/requestcontext"
)

// RequestStore persists credential requests of every type.
type RequestStore interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, typ models.RequestType, reqID id.RequestID) (*models.Request, error)
	ListByIssuer(ctx context.Context, typ models.RequestType, issuerDID string, status models.RequestStatus) ([]*models.Request, error)
	ListByHolder(ctx context.Context, typ models.RequestType, holderDID string, status models.RequestStatus) ([]*models.Request, error)
	NextPending(ctx context.Context, typ models.RequestType, issuerDID string) (*models.Request, error)
	// UpdateDecision must only succeed while the stored request is PENDING and
	// return sentinel.ErrInvalidState otherwise.
	UpdateDecision(ctx context.Context, req *models.Request) error
}

// ResponseStore persists the holder pickup queue.
type ResponseStore interface {
	Create(ctx context.Context, resp *models.Response) error
	// Claim must move each returned row from PENDING to PROCESSING atomically.
	Claim(ctx context.Context, holderDID string, limit int, now time.Time) ([]*models.Response, error)
	CountPending(ctx context.Context, holderDID string) (int, error)
	Confirm(ctx context.Context, holderDID string, ids []id.ResponseID, now time.Time) (map[id.ResponseID]models.ConfirmOutcome, error)
	ResetStuck(ctx context.Context, cutoff time.Time) (int, error)
}

// Service runs the credential request lifecycle.
type Service struct {
	requests       RequestStore
	responses      ResponseStore
	ledger         ledger.Gateway
	tx             StoreTx
	recordTimeout  time.Duration
	logger         *slog.Logger
	metrics        *credmetrics.Metrics
	auditPublisher audit.Publisher
}

const defaultRecordTimeout = 10 * time.Second

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *credmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithStoreTx sets the transaction boundary for the approval store write.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithRecordTimeout bounds the store write that follows a confirmed ledger
// approval. It runs detached from the caller's cancellation.
func WithRecordTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recordTimeout = d
		}
	}
}

func New(requests RequestStore, responses ResponseStore, gateway ledger.Gateway, opts ...Option) (*Service, error) {
	if requests == nil {
		return nil, errors.New("request store is required")
	}
	if responses == nil {
		return nil, errors.New("response store is required")
	}
	if gateway == nil {
		return nil, errors.New("ledger gateway is required")
	}
	s := &Service{
		requests:      requests,
		responses:     responses,
		ledger:        gateway,
		recordTimeout: defaultRecordTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	return s, nil
}

// Create records a PENDING request.
func (s *Service) Create(ctx context.Context, typ models.RequestType, issuerDID, holderDID, encryptedBody string) (*models.Request, error) {
	req, err := models.NewRequest(id.RequestID(uuid.New()), typ, issuerDID, holderDID, encryptedBody, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeBadRequest, err.Error())
		}
		return nil, err
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, wrapStoreErr(err, "failed to create credential request")
	}

	s.metrics.IncCreated(string(typ))
	s.emit(ctx, audit.Event{
		Type:          audit.EventCredentialRequestCreated,
		AggregateType: audit.AggregateCredentialRequest,
		AggregateID:   req.ID.String(),
		SubjectDID:    req.HolderDID,
		ActorDID:      req.HolderDID,
		Attributes:    map[string]string{"type": string(typ), "issuer_did": issuerDID},
	})
	return req, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, typ models.RequestType, reqID id.RequestID) (*models.Request, error) {
	req, err := s.requests.FindByID(ctx, typ, reqID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return req, nil
}

// ListByIssuer lists an issuer's requests, optionally filtered by status.
func (s *Service) ListByIssuer(ctx context.Context, typ models.RequestType, issuerDID string, status models.RequestStatus) ([]*models.Request, error) {
	if err := validateListFilter(issuerDID, status); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByIssuer(ctx, typ, issuerDID, status)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list credential requests")
	}
	return reqs, nil
}

// ListByHolder lists a holder's requests, optionally filtered by status.
func (s *Service) ListByHolder(ctx context.Context, typ models.RequestType, holderDID string, status models.RequestStatus) ([]*models.Request, error) {
	if err := validateListFilter(holderDID, status); err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByHolder(ctx, typ, holderDID, status)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list credential requests")
	}
	return reqs, nil
}

// NextPending returns the oldest PENDING request addressed to the issuer.
func (s *Service) NextPending(ctx context.Context, typ models.RequestType, issuerDID string) (*models.Request, error) {
	if issuerDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer_did is required")
	}
	req, err := s.requests.NextPending(ctx, typ, issuerDID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no pending request")
		}
		return nil, wrapStoreErr(err, "failed to load pending request")
	}
	return req, nil
}

func validateListFilter(did string, status models.RequestStatus) error {
	if did == "" {
		return dErrors.New(dErrors.CodeBadRequest, "did is required")
	}
	if status != "" && !status.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "unknown status: "+string(status))
	}
	return nil
}

func wrapRequestErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "credential request not found")
	}
	return wrapStoreErr(err, "failed to load credential request")
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeStore, msg)
}

// emit logs the event and forwards it to the audit publisher. Publishing
// failures are logged; the lifecycle transition already happened.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	s.logger.InfoContext(ctx, string(event.Type),
		"log_type", "audit",
		"aggregate_id", event.AggregateID,
		"subject_did", event.SubjectDID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"type", event.Type,
			"aggregate_id", event.AggregateID,
			"error", err,
		)
	}
}
