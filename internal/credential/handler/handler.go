package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vcanchor/internal/credential/models"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/httputil"
	"vcanchor/pkg/requestcontext"
)

// Service is the credential lifecycle as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, typ models.RequestType, issuerDID, holderDID, encryptedBody string) (*models.Request, error)
	Get(ctx context.Context, typ models.RequestType, reqID id.RequestID) (*models.Request, error)
	ListByIssuer(ctx context.Context, typ models.RequestType, issuerDID string, status models.RequestStatus) ([]*models.Request, error)
	ListByHolder(ctx context.Context, typ models.RequestType, holderDID string, status models.RequestStatus) ([]*models.Request, error)
	NextPending(ctx context.Context, typ models.RequestType, issuerDID string) (*models.Request, error)
	Process(ctx context.Context, cmd models.ProcessCommand) (*models.ProcessResult, error)
	Claim(ctx context.Context, holderDID string, limit int) (*models.ClaimResult, error)
	Confirm(ctx context.Context, holderDID string, ids []id.ResponseID) (*models.ConfirmResult, error)
	ResetStuck(ctx context.Context, timeout time.Duration) (int, error)
}

// Handler serves the credential request and response routes. It expects the
// DID authentication middleware to run first.
type Handler struct {
	service   Service
	logger    *slog.Logger
	operators map[string]struct{}
}

type Option func(*Handler)

// WithOperatorDIDs lists the DIDs allowed to reset stuck responses over HTTP.
// Without any, the route answers 403 and only vcctl reset-stuck can sweep.
func WithOperatorDIDs(dids []string) Option {
	return func(h *Handler) {
		for _, d := range dids {
			h.operators[d] = struct{}{}
		}
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger, operators: map[string]struct{}{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/vc-issuance", h.handleCreate(models.RequestIssuance))
	r.Post("/vc-renewal", h.handleCreate(models.RequestRenewal))
	r.Post("/vc-update", h.handleCreate(models.RequestUpdate))
	r.Post("/vc-revocation", h.handleCreate(models.RequestRevocation))

	r.Get("/manual-worker/next-request", h.handleNextRequest)
	r.Post("/manual-worker/issue-vc", h.handleProcess)
	r.Post("/manual-worker/process-request", h.handleProcess)

	r.Get("/credential-requests/{type}", h.handleList)
	r.Get("/credential-requests/{type}/{id}", h.handleGet)

	r.Post("/credential-responses/claim", h.handleClaim)
	r.Post("/credential-responses/confirm", h.handleConfirm)
	r.Post("/credential-responses/reset-stuck", h.handleResetStuck)
}

type createResponse struct {
	RequestID id.RequestID         `json:"request_id"`
	Status    models.RequestStatus `json:"status"`
}

// handleCreate records a request from the authenticated holder.
func (h *Handler) handleCreate(typ models.RequestType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)
		holderDID, ok := h.subject(w, r)
		if !ok {
			return
		}
		body, ok := httputil.DecodeAndPrepare[models.CreateRequestBody](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}

		req, err := h.service.Create(ctx, typ, body.IssuerDID, holderDID, body.EncryptedBody)
		if err != nil {
			h.fail(ctx, w, "failed to create credential request", err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, createResponse{RequestID: req.ID, Status: req.Status})
	}
}

// handleNextRequest hands the oldest pending request to the issuer's manual worker.
func (h *Handler) handleNextRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	if q := r.URL.Query().Get("issuer_did"); q != "" && q != issuerDID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "issuer_did does not match the authenticated DID"))
		return
	}
	typ, ok := h.requestType(w, r.URL.Query().Get("type"))
	if !ok {
		return
	}

	req, err := h.service.NextPending(ctx, typ, issuerDID)
	if err != nil {
		h.fail(ctx, w, "failed to load next request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	issuerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.ProcessRequestBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Process(ctx, body.Command(issuerDID))
	if err != nil {
		h.fail(ctx, w, "failed to process credential request", err)
		return
	}
	status := http.StatusOK
	if result.Degraded {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, result)
}

// handleGet returns a request to its issuer or holder.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	typ, ok := h.requestType(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.service.Get(ctx, typ, reqID)
	if err != nil {
		h.fail(ctx, w, "failed to load credential request", err)
		return
	}
	if req.IssuerDID != callerDID && req.HolderDID != callerDID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not a party to this request"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

type listResponse struct {
	Requests []*models.Request `json:"requests"`
}

// handleList lists the caller's requests; ?role=issuer lists those addressed to
// the caller, anything else those the caller submitted.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	typ, ok := h.requestType(w, chi.URLParam(r, "type"))
	if !ok {
		return
	}
	status := models.RequestStatus(r.URL.Query().Get("status"))

	var (
		reqs []*models.Request
		err  error
	)
	if r.URL.Query().Get("role") == "issuer" {
		reqs, err = h.service.ListByIssuer(ctx, typ, callerDID, status)
	} else {
		reqs, err = h.service.ListByHolder(ctx, typ, callerDID, status)
	}
	if err != nil {
		h.fail(ctx, w, "failed to list credential requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Requests: reqs})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	holderDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.ClaimRequestBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Claim(ctx, holderDID, body.Limit)
	if err != nil {
		h.fail(ctx, w, "failed to claim credential responses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	holderDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.ConfirmRequestBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Confirm(ctx, holderDID, body.IDs)
	if err != nil {
		h.fail(ctx, w, "failed to confirm credential responses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type resetResponse struct {
	ResetCount int `json:"reset_count"`
}

func (h *Handler) handleResetStuck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	callerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	if _, isOperator := h.operators[callerDID]; !isOperator {
		h.logger.WarnContext(ctx, "reset-stuck refused for non-operator",
			"caller_did", callerDID,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "caller is not an operator"))
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.ResetStuckBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	n, err := h.service.ResetStuck(ctx, time.Duration(body.TimeoutMinutes)*time.Minute)
	if err != nil {
		h.fail(ctx, w, "failed to reset stuck credential responses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resetResponse{ResetCount: n})
}

func (h *Handler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	subjectDID := requestcontext.SubjectDID(r.Context())
	if subjectDID == "" {
		h.logger.ErrorContext(r.Context(), "subject DID missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return subjectDID, true
}

func (h *Handler) requestType(w http.ResponseWriter, raw string) (models.RequestType, bool) {
	if raw == "" {
		return models.RequestIssuance, true
	}
	typ, err := models.ParseRequestType(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return typ, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.IsInternal(dErrors.CodeOf(err)) || dErrors.HasCode(err, dErrors.CodeLedger) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
