package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcanchor/internal/presentation/models"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/httputil"
	"vcanchor/pkg/requestcontext"
)

// Service is the presentation exchange as seen by the HTTP layer.
type Service interface {
	RequestVP(ctx context.Context, holderDID, verifierDID string, schemaIDs []string) (*models.VPRequest, error)
	GetVPRequest(ctx context.Context, reqID id.VPRequestID) (*models.VPRequest, error)
	ListVPRequests(ctx context.Context, holderDID string) ([]*models.VPRequest, error)
	StoreVP(ctx context.Context, holderDID string, vp []byte) (*models.VPShare, error)
	GetVP(ctx context.Context, shareID id.VPShareID) (*models.VPShare, error)
	VerifyVP(ctx context.Context, shareID id.VPShareID) (*models.VerificationResult, error)
}

// Handler serves the presentation exchange routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/vp-requests", h.handleRequestVP)
	r.Get("/vp-requests", h.handleListRequests)
	r.Get("/vp-requests/{id}", h.handleGetRequest)
	r.Post("/vp-shares", h.handleStoreVP)
	r.Get("/vp-shares/{id}", h.handleGetVP)
	r.Post("/vp-shares/{id}/verify", h.handleVerifyVP)
}

// handleRequestVP records a request from the authenticated verifier.
func (h *Handler) handleRequestVP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	verifierDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.RequestVPBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	req, err := h.service.RequestVP(ctx, body.HolderDID, verifierDID, body.SchemaIDs)
	if err != nil {
		h.fail(ctx, w, "failed to create vp request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

type listResponse struct {
	Requests []*models.VPRequest `json:"requests"`
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holderDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	reqs, err := h.service.ListVPRequests(ctx, holderDID)
	if err != nil {
		h.fail(ctx, w, "failed to list vp requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Requests: reqs})
}

// handleGetRequest returns a request to its holder or verifier.
func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	reqID, err := id.ParseVPRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.service.GetVPRequest(ctx, reqID)
	if err != nil {
		h.fail(ctx, w, "failed to load vp request", err)
		return
	}
	if req.HolderDID != callerDID && req.VerifierDID != callerDID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not a party to this request"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

type storeResponse struct {
	ID id.VPShareID `json:"id"`
}

func (h *Handler) handleStoreVP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	holderDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.StoreVPBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	share, err := h.service.StoreVP(ctx, holderDID, body.VP)
	if err != nil {
		h.fail(ctx, w, "failed to store vp", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, storeResponse{ID: share.ID})
}

func (h *Handler) handleGetVP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shareID, err := id.ParseVPShareID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	share, err := h.service.GetVP(ctx, shareID)
	if err != nil {
		h.fail(ctx, w, "failed to load vp", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, share)
}

func (h *Handler) handleVerifyVP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shareID, err := id.ParseVPShareID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.VerifyVP(ctx, shareID)
	if err != nil {
		h.fail(ctx, w, "failed to verify vp", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	subjectDID := requestcontext.SubjectDID(r.Context())
	if subjectDID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return subjectDID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.IsInternal(dErrors.CodeOf(err)) || dErrors.HasCode(err, dErrors.CodeUnavailable) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
