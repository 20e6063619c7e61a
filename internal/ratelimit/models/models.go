// Package models holds the rate limiting vocabulary shared by the stores and
// the HTTP middleware.
package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a budget.
type EndpointClass string

const (
	// ClassRead covers lookups and listings.
	ClassRead EndpointClass = "read"
	// ClassWrite covers mutations. Most of them wait on a ledger receipt.
	ClassWrite EndpointClass = "write"
)

func (c EndpointClass) IsValid() bool {
	return c == ClassRead || c == ClassWrite
}

// Limit is a sliding window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Key builds the bucket key for a caller. The caller is a DID for
// authenticated requests and an IP otherwise.
func Key(class EndpointClass, kind, caller string) string {
	return "rl:" + string(class) + ":" + kind + ":" + SanitizeKeySegment(caller)
}

// SanitizeKeySegment escapes ':' so a caller-controlled segment cannot spill
// into a neighbouring bucket. DIDs contain colons, so they always go through here.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, minimum one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
