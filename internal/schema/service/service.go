// Package service implements the versioned credential schema registry.
//
// Schema writes go to the store first and to the ledger second. When the
// ledger rejects the write, the store change is compensated once (the new
// row is deleted or the active flag reverted) and the ledger error is
// returned. A failed compensation is logged and audited; it is not retried.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vcanchor/internal/ledger"
	schemametrics "vcanchor/internal/schema/metrics"
	"vcanchor/internal/schema/models"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/platform/sentinel"
	"vcanchor/pkg/requestcontext"
)

const defaultCompensationTimeout = 10 * time.Second

// Store persists schema versions keyed by (id, version).
type Store interface {
	Insert(ctx context.Context, schema *models.Schema) error
	Delete(ctx context.Context, schemaID id.SchemaID, version int) error
	Find(ctx context.Context, schemaID id.SchemaID, version int) (*models.Schema, error)
	FindLatest(ctx context.Context, schemaID id.SchemaID) (*models.Schema, error)
	ListVersions(ctx context.Context, schemaID id.SchemaID) ([]*models.Schema, error)
	ListByIssuer(ctx context.Context, issuerDID string) ([]*models.Schema, error)
	// SetActive must only succeed when the stored flag differs from active and
	// return sentinel.ErrInvalidState otherwise.
	SetActive(ctx context.Context, schemaID id.SchemaID, version int, active bool, now time.Time) error
}

// Service runs the schema registry.
type Service struct {
	store               Store
	ledger              ledger.Gateway
	logger              *slog.Logger
	metrics             *schemametrics.Metrics
	auditPublisher      audit.Publisher
	compensationTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *schemametrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithCompensationTimeout bounds the compensating store write. It runs on a
// context detached from the caller's cancellation.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.compensationTimeout = d
		}
	}
}

func New(store Store, gateway ledger.Gateway, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("schema store is required")
	}
	if gateway == nil {
		return nil, errors.New("ledger gateway is required")
	}
	s := &Service{
		store:               store,
		ledger:              gateway,
		logger:              slog.Default(),
		compensationTimeout: defaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create stores version 1 of a new schema and anchors it on the ledger.
func (s *Service) Create(ctx context.Context, name string, body []byte, issuerDID, issuerName string) (*models.Result, error) {
	schema, err := models.NewSchema(id.SchemaID(uuid.New()), name, body, issuerDID, issuerName, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, schema); err != nil {
		return nil, wrapStoreErr(err, "failed to store schema")
	}

	receipt, err := s.ledger.SubmitAndWait(ctx, ledger.MethodCreateSchema,
		schema.ID.String(), schema.Name, schema.Version, schema.IssuerDID, string(schema.Body))
	if err != nil {
		s.compensate(ctx, "create", schema, err, func(ctx context.Context) error {
			return s.store.Delete(ctx, schema.ID, schema.Version)
		})
		return nil, ledgerErr(err, "failed to anchor schema on ledger")
	}

	s.metrics.IncWrite("create", "ok")
	s.emit(ctx, audit.EventSchemaCreated, schema, receipt.TxHash)
	return &models.Result{Schema: schema, Receipt: receipt}, nil
}

// Update stores the next version of an existing schema and anchors it.
func (s *Service) Update(ctx context.Context, schemaID id.SchemaID, body []byte, callerDID string) (*models.Result, error) {
	current, err := s.store.FindLatest(ctx, schemaID)
	if err != nil {
		return nil, wrapFindErr(err)
	}
	if !current.OwnedBy(callerDID) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "only the issuing DID may update this schema")
	}
	next, err := current.NextVersion(body, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, next); err != nil {
		return nil, wrapStoreErr(err, "failed to store schema version")
	}

	receipt, err := s.ledger.SubmitAndWait(ctx, ledger.MethodUpdateSchema,
		next.ID.String(), next.Version, string(next.Body))
	if err != nil {
		s.compensate(ctx, "update", next, err, func(ctx context.Context) error {
			return s.store.Delete(ctx, next.ID, next.Version)
		})
		return nil, ledgerErr(err, "failed to anchor schema version on ledger")
	}

	s.metrics.IncWrite("update", "ok")
	s.emit(ctx, audit.EventSchemaUpdated, next, receipt.TxHash)
	return &models.Result{Schema: next, Receipt: receipt}, nil
}

// Deactivate clears the active flag. A nil version targets the latest one.
func (s *Service) Deactivate(ctx context.Context, schemaID id.SchemaID, version *int, callerDID string) (*models.Result, error) {
	return s.setActive(ctx, schemaID, version, callerDID, false)
}

// Reactivate sets the active flag. A nil version targets the latest one.
func (s *Service) Reactivate(ctx context.Context, schemaID id.SchemaID, version *int, callerDID string) (*models.Result, error) {
	return s.setActive(ctx, schemaID, version, callerDID, true)
}

func (s *Service) setActive(ctx context.Context, schemaID id.SchemaID, version *int, callerDID string, active bool) (*models.Result, error) {
	op, method, event := "deactivate", ledger.MethodDeactivateSchema, audit.EventSchemaDeactivated
	if active {
		op, method, event = "reactivate", ledger.MethodReactivateSchema, audit.EventSchemaReactivated
	}

	schema, err := s.Get(ctx, schemaID, version)
	if err != nil {
		return nil, err
	}
	if !schema.OwnedBy(callerDID) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "only the issuing DID may "+op+" this schema")
	}
	if schema.IsActive == active {
		return nil, dErrors.New(dErrors.CodeConflict, "schema is already in the requested state")
	}

	now := requestcontext.Now(ctx)
	if err := s.store.SetActive(ctx, schema.ID, schema.Version, active, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeConflict, "schema is already in the requested state")
		}
		return nil, wrapFindErr(err)
	}
	schema.IsActive = active
	schema.UpdatedAt = now

	receipt, err := s.ledger.SubmitAndWait(ctx, method, schema.ID.String(), schema.Version)
	if err != nil {
		s.compensate(ctx, op, schema, err, func(ctx context.Context) error {
			return s.store.SetActive(ctx, schema.ID, schema.Version, !active, now)
		})
		return nil, ledgerErr(err, "failed to "+op+" schema on ledger")
	}

	s.metrics.IncWrite(op, "ok")
	s.emit(ctx, event, schema, receipt.TxHash)
	return &models.Result{Schema: schema, Receipt: receipt}, nil
}

// Get returns one version of a schema. A nil version returns the latest.
func (s *Service) Get(ctx context.Context, schemaID id.SchemaID, version *int) (*models.Schema, error) {
	var (
		schema *models.Schema
		err    error
	)
	if version == nil {
		schema, err = s.store.FindLatest(ctx, schemaID)
	} else {
		if *version < 1 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "version must be at least 1")
		}
		schema, err = s.store.Find(ctx, schemaID, *version)
	}
	if err != nil {
		return nil, wrapFindErr(err)
	}
	return schema, nil
}

// ListVersions returns every version of a schema, oldest first.
func (s *Service) ListVersions(ctx context.Context, schemaID id.SchemaID) ([]*models.Schema, error) {
	versions, err := s.store.ListVersions(ctx, schemaID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list schema versions")
	}
	if len(versions) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "schema not found")
	}
	return versions, nil
}

// ListByIssuer returns the latest version of each schema owned by issuerDID.
func (s *Service) ListByIssuer(ctx context.Context, issuerDID string) ([]*models.Schema, error) {
	if issuerDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer_did is required")
	}
	schemas, err := s.store.ListByIssuer(ctx, issuerDID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list schemas")
	}
	return schemas, nil
}

// compensate undoes a store write after the ledger rejected the matching
// transaction. It runs once.
func (s *Service) compensate(ctx context.Context, op string, schema *models.Schema, ledgerErr error, undo func(context.Context) error) {
	s.metrics.IncWrite(op, "ledger_error")

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()
	err := undo(cctx)
	s.metrics.IncCompensation(op, err)

	attrs := map[string]string{"operation": op, "version": strconv.Itoa(schema.Version), "ledger_error": ledgerErr.Error()}
	if err != nil {
		attrs["compensation_error"] = err.Error()
		s.logger.ErrorContext(ctx, "schema compensation failed; store and ledger disagree",
			"schema_id", schema.ID.String(),
			"version", schema.Version,
			"operation", op,
			"ledger_error", ledgerErr,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		s.logger.WarnContext(ctx, "schema write compensated after ledger failure",
			"schema_id", schema.ID.String(),
			"version", schema.Version,
			"operation", op,
			"ledger_error", ledgerErr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.publish(ctx, audit.Event{
		Type:          audit.EventSchemaCompensated,
		AggregateType: audit.AggregateSchema,
		AggregateID:   schema.ID.String(),
		SubjectDID:    schema.IssuerDID,
		ActorDID:      schema.IssuerDID,
		TxHash:        ledger.TxHashOf(ledgerErr),
		Attributes:    attrs,
	})
}

func (s *Service) emit(ctx context.Context, typ audit.EventType, schema *models.Schema, txHash string) {
	s.logger.InfoContext(ctx, string(typ),
		"log_type", "audit",
		"schema_id", schema.ID.String(),
		"version", schema.Version,
		"issuer_did", schema.IssuerDID,
		"tx_hash", txHash,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publish(ctx, audit.Event{
		Type:          typ,
		AggregateType: audit.AggregateSchema,
		AggregateID:   schema.ID.String(),
		SubjectDID:    schema.IssuerDID,
		ActorDID:      requestcontext.SubjectDID(ctx),
		TxHash:        txHash,
		Attributes:    map[string]string{"version": strconv.Itoa(schema.Version), "name": schema.Name},
	})
}

func (s *Service) publish(ctx context.Context, event audit.Event) {
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

func wrapFindErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "schema not found")
	}
	return wrapStoreErr(err, "failed to load schema")
}

func wrapStoreErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeStore, msg)
}

func ledgerErr(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeLedger, msg)
}
