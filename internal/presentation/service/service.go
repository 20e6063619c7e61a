// Package service implements the presentation exchange between holders and
// verifiers: VP requests, one-time VP shares and their verification.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vcanchor/internal/did"
	vpmetrics "vcanchor/internal/presentation/metrics"
	"vcanchor/internal/presentation/models"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/requestcontext"
)

const defaultVerifyConcurrency = 4

// Store persists VP requests and shares.
type Store interface {
	CreateRequest(ctx context.Context, req *models.VPRequest) error
	FindRequest(ctx context.Context, reqID id.VPRequestID) (*models.VPRequest, error)
	ListRequestsByHolder(ctx context.Context, holderDID string) ([]*models.VPRequest, error)
	CreateShare(ctx context.Context, share *models.VPShare) error
	// FindShare must not return soft-deleted shares.
	FindShare(ctx context.Context, shareID id.VPShareID) (*models.VPShare, error)
	// ConsumeShare must read and soft-delete in one atomic step.
	ConsumeShare(ctx context.Context, shareID id.VPShareID, now time.Time) (*models.VPShare, error)
	// SoftDelete must succeed when the share is already deleted.
	SoftDelete(ctx context.Context, shareID id.VPShareID, now time.Time) error
}

// Service runs the presentation exchange.
type Service struct {
	store             Store
	resolver          did.Resolver
	logger            *slog.Logger
	metrics           *vpmetrics.Metrics
	auditPublisher    audit.Publisher
	verifyConcurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *vpmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithVerifyConcurrency bounds how many embedded credentials are checked at once.
func WithVerifyConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.verifyConcurrency = n
		}
	}
}

func New(store Store, resolver did.Resolver, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("presentation store is required")
	}
	if resolver == nil {
		return nil, errors.New("did resolver is required")
	}
	s := &Service{
		store:             store,
		resolver:          resolver,
		logger:            slog.Default(),
		verifyConcurrency: defaultVerifyConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestVP records a verifier's request for the holder's credentials.
func (s *Service) RequestVP(ctx context.Context, holderDID, verifierDID string, schemaIDs []string) (*models.VPRequest, error) {
	req, err := models.NewVPRequest(id.VPRequestID(uuid.New()), holderDID, verifierDID, schemaIDs, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, wrapStoreErr(err, "failed to store vp request")
	}
	s.emit(ctx, audit.Event{
		Type:          audit.EventVPRequested,
		AggregateType: audit.AggregatePresentation,
		AggregateID:   req.ID.String(),
		SubjectDID:    req.HolderDID,
		ActorDID:      req.VerifierDID,
	})
	return req, nil
}

func (s *Service) GetVPRequest(ctx context.Context, reqID id.VPRequestID) (*models.VPRequest, error) {
	req, err := s.store.FindRequest(ctx, reqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "vp request not found")
		}
		return nil, wrapStoreErr(err, "failed to load vp request")
	}
	return req, nil
}

// ListVPRequests returns the requests addressed to holderDID, newest first.
func (s *Service) ListVPRequests(ctx context.Context, holderDID string) ([]*models.VPRequest, error) {
	if holderDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "holder_did is required")
	}
	reqs, err := s.store.ListRequestsByHolder(ctx, holderDID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list vp requests")
	}
	return reqs, nil
}

// StoreVP keeps a holder's presentation for one-time pickup.
func (s *Service) StoreVP(ctx context.Context, holderDID string, vp []byte) (*models.VPShare, error) {
	share, err := models.NewVPShare(id.VPShareID(uuid.New()), holderDID, vp, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateShare(ctx, share); err != nil {
		return nil, wrapStoreErr(err, "failed to store vp")
	}
	s.metrics.IncStored()
	s.emit(ctx, audit.Event{
		Type:          audit.EventVPShared,
		AggregateType: audit.AggregatePresentation,
		AggregateID:   share.ID.String(),
		SubjectDID:    share.HolderDID,
		ActorDID:      share.HolderDID,
	})
	return share, nil
}

// GetVP hands the presentation out once; later calls report NotFound.
func (s *Service) GetVP(ctx context.Context, shareID id.VPShareID) (*models.VPShare, error) {
	share, err := s.store.ConsumeShare(ctx, shareID, requestcontext.Now(ctx))
	if err != nil {
		return nil, wrapShareErr(err)
	}
	s.metrics.IncConsumed("get")
	s.emit(ctx, audit.Event{
		Type:          audit.EventVPRetrieved,
		AggregateType: audit.AggregatePresentation,
		AggregateID:   share.ID.String(),
		SubjectDID:    share.HolderDID,
		ActorDID:      requestcontext.SubjectDID(ctx),
	})
	return share, nil
}

func wrapShareErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vp not found")
	}
	return wrapStoreErr(err, "failed to load vp")
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeStore, msg)
}

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
