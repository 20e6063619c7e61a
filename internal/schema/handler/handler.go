package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vcanchor/internal/schema/models"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/httputil"
	"vcanchor/pkg/requestcontext"
)

// Service is the schema registry as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, name string, body []byte, issuerDID, issuerName string) (*models.Result, error)
	Update(ctx context.Context, schemaID id.SchemaID, body []byte, callerDID string) (*models.Result, error)
	Deactivate(ctx context.Context, schemaID id.SchemaID, version *int, callerDID string) (*models.Result, error)
	Reactivate(ctx context.Context, schemaID id.SchemaID, version *int, callerDID string) (*models.Result, error)
	Get(ctx context.Context, schemaID id.SchemaID, version *int) (*models.Schema, error)
	ListVersions(ctx context.Context, schemaID id.SchemaID) ([]*models.Schema, error)
	ListByIssuer(ctx context.Context, issuerDID string) ([]*models.Schema, error)
}

// Handler serves the schema registry routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/schemas", h.handleCreate)
	r.Get("/schemas", h.handleList)
	r.Get("/schemas/{id}", h.handleGet)
	r.Put("/schemas/{id}", h.handleUpdate)
	r.Get("/schemas/{id}/versions", h.handleVersions)
	r.Post("/schemas/{id}/deactivate", h.handleToggle(false))
	r.Post("/schemas/{id}/reactivate", h.handleToggle(true))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	issuerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Create(ctx, body.Name, body.Schema, issuerDID, body.IssuerName)
	if err != nil {
		h.fail(ctx, w, "failed to create schema", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	callerDID, ok := h.subject(w, r)
	if !ok {
		return
	}
	schemaID, ok := h.schemaID(w, r)
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Update(ctx, schemaID, body.Schema, callerDID)
	if err != nil {
		h.fail(ctx, w, "failed to update schema", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleToggle(active bool) http.HandlerFunc {
	op := h.service.Deactivate
	if active {
		op = h.service.Reactivate
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		callerDID, ok := h.subject(w, r)
		if !ok {
			return
		}
		schemaID, ok := h.schemaID(w, r)
		if !ok {
			return
		}
		version, ok := h.version(w, r)
		if !ok {
			return
		}

		res, err := op(ctx, schemaID, version, callerDID)
		if err != nil {
			h.fail(ctx, w, "failed to change schema state", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schemaID, ok := h.schemaID(w, r)
	if !ok {
		return
	}
	version, ok := h.version(w, r)
	if !ok {
		return
	}

	schema, err := h.service.Get(ctx, schemaID, version)
	if err != nil {
		h.fail(ctx, w, "failed to load schema", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, schema)
}

type listResponse struct {
	Schemas []*models.Schema `json:"schemas"`
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schemaID, ok := h.schemaID(w, r)
	if !ok {
		return
	}

	versions, err := h.service.ListVersions(ctx, schemaID)
	if err != nil {
		h.fail(ctx, w, "failed to list schema versions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Schemas: versions})
}

// handleList lists schemas by ?issuer_did=, defaulting to the caller.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID := r.URL.Query().Get("issuer_did")
	if issuerDID == "" {
		var ok bool
		if issuerDID, ok = h.subject(w, r); !ok {
			return
		}
	}

	schemas, err := h.service.ListByIssuer(ctx, issuerDID)
	if err != nil {
		h.fail(ctx, w, "failed to list schemas", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Schemas: schemas})
}

func (h *Handler) schemaID(w http.ResponseWriter, r *http.Request) (id.SchemaID, bool) {
	schemaID, err := id.ParseSchemaID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SchemaID{}, false
	}
	return schemaID, true
}

// version parses the optional ?version= query parameter.
func (h *Handler) version(w http.ResponseWriter, r *http.Request) (*int, bool) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "version must be a positive integer"))
		return nil, false
	}
	return &v, true
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
	if dErrors.IsInternal(dErrors.CodeOf(err)) || dErrors.HasCode(err, dErrors.CodeLedger) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
