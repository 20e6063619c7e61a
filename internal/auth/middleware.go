package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/httputil"
	"vcanchor/pkg/requestcontext"
)

type contextKeySubject struct{}

// SubjectFrom returns the authenticated subject, or nil on unauthenticated routes.
func SubjectFrom(ctx context.Context) *Subject {
	s, _ := ctx.Value(contextKeySubject{}).(*Subject)
	return s
}

// WithSubject attaches an authenticated subject and its DID to ctx.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject{}, s)
	return requestcontext.WithSubjectDID(ctx, s.DID)
}

type rejectionResponse struct {
	Error            string `json:"error"`
	Reason           Reason `json:"reason"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// RequireDID rejects requests without a valid DID-signed bearer token. Resolver
// outages answer 503; every other rejection answers 401 with its reason.
func RequireDID(authn *Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteJSON(w, http.StatusUnauthorized, rejectionResponse{
					Error:            string(dErrors.CodeUnauthorized),
					Reason:           ReasonMalformedToken,
					ErrorDescription: "Missing or invalid Authorization header",
				})
				return
			}

			subject, err := authn.Authenticate(ctx, strings.TrimSpace(token))
			if err != nil {
				reason := ReasonOf(err)
				if reason == ReasonResolverUnavailable {
					httputil.WriteJSON(w, http.StatusServiceUnavailable, rejectionResponse{
						Error:  string(dErrors.CodeUnavailable),
						Reason: reason,
					})
					return
				}
				logger.WarnContext(ctx, "unauthorized access - token rejected",
					"reason", reason,
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, rejectionResponse{
					Error:  string(dErrors.CodeUnauthorized),
					Reason: reason,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(ctx, subject)))
		})
	}
}
