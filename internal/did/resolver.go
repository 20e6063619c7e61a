package did

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"vcanchor/internal/ledger"
	"vcanchor/pkg/platform/sentinel"
)

// Resolver returns the active key of a DID. A DID without a ledger record
// yields sentinel.ErrNotFound; transport failures wrap sentinel.ErrUnavailable.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*Key, error)
}

// Invalidator is implemented by caching resolvers that can drop a stale entry.
type Invalidator interface {
	Invalidate(ctx context.Context, did string) error
}

// LedgerResolver reads DID documents from the ledger.
type LedgerResolver struct {
	gateway ledger.Gateway
	logger  *slog.Logger
}

type LedgerResolverOption func(*LedgerResolver)

func WithResolverLogger(logger *slog.Logger) LedgerResolverOption {
	return func(r *LedgerResolver) {
		r.logger = logger
	}
}

func NewLedgerResolver(gateway ledger.Gateway, opts ...LedgerResolverOption) *LedgerResolver {
	r := &LedgerResolver{gateway: gateway, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *LedgerResolver) Resolve(ctx context.Context, did string) (*Key, error) {
	raw, err := r.gateway.Call(ctx, ledger.MethodGetDID, did)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("resolve %s: %w", did, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("resolve %s: %w", did, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("resolve %s: %w", did, sentinel.ErrNotFound)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %v", did, ErrInvalidDocument, err)
	}
	if doc.DID == "" {
		// An unregistered DID reads back as the zero-value struct.
		return nil, fmt.Errorf("resolve %s: %w", did, sentinel.ErrNotFound)
	}
	if doc.Status == StatusDeactivated {
		// Deactivated documents may no longer carry an active key.
		return &Key{DID: doc.DID, Status: doc.Status, Details: doc.Details}, nil
	}
	key, err := KeyFromDocument(&doc)
	if err != nil {
		r.logger.WarnContext(ctx, "unusable did document", "did", did, "error", err)
		return nil, fmt.Errorf("resolve %s: %w", did, err)
	}
	return key, nil
}
