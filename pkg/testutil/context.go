package testutil

import (
	"net/http"

	"vcanchor/internal/auth"
	"vcanchor/internal/did"
	"vcanchor/pkg/requestcontext"
)

// WithSubjectDID marks the request as authenticated by did, the way the DID
// auth middleware would after a successful token check.
func WithSubjectDID(req *http.Request, subjectDID string) *http.Request {
	if subjectDID == "" {
		return req
	}
	ctx := auth.WithSubject(req.Context(), &auth.Subject{DID: subjectDID, Role: did.RoleIndividual})
	return req.WithContext(ctx)
}

// WithRequestID adds a correlation id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
