// Package metadata records where a request came from: the client IP and a
// short client label parsed from the User-Agent.
package metadata

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyClient struct{}

// Client describes the caller of a request.
type Client struct {
	IP        string
	UserAgent string
	// Name is "<product>/<version>" for browsers and CLI tools, "bot" for
	// crawlers and empty when the header is missing.
	Name string
}

// ClientMetadata stores the caller's Client in the request context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := Client{
			IP:        ClientIPFromRequest(r),
			UserAgent: r.Header.Get("User-Agent"),
		}
		client.Name = clientName(client.UserAgent)
		next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), client)))
	})
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKeyClient{}, c)
}

// ClientFrom returns the request's Client, or the zero value outside a request.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(contextKeyClient{}).(Client)
	return c
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientName(header string) string {
	if header == "" {
		return ""
	}
	ua := useragent.New(header)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	if name == "" {
		// Non-browser clients such as vcctl/1.0 or curl/8.5.0.
		product, _ := ua.Engine()
		if product == "" {
			return header
		}
		name = product
	}
	if version == "" {
		return name
	}
	return name + "/" + version
}
