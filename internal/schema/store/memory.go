package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vcanchor/internal/schema/models"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
)

type versionKey struct {
	id      id.SchemaID
	version int
}

// InMemoryStore keeps schema versions keyed by (id, version).
type InMemoryStore struct {
	mu      sync.RWMutex
	schemas map[versionKey]*models.Schema
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{schemas: make(map[versionKey]*models.Schema)}
}

func (s *InMemoryStore) Insert(_ context.Context, schema *models.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := versionKey{schema.ID, schema.Version}
	if _, ok := s.schemas[k]; ok {
		return fmt.Errorf("schema %s v%d: %w", schema.ID, schema.Version, sentinel.ErrConflict)
	}
	clone := *schema
	s.schemas[k] = &clone
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, schemaID id.SchemaID, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := versionKey{schemaID, version}
	if _, ok := s.schemas[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.schemas, k)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, schemaID id.SchemaID, version int) (*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[versionKey{schemaID, version}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *schema
	return &clone, nil
}

func (s *InMemoryStore) FindLatest(ctx context.Context, schemaID id.SchemaID) (*models.Schema, error) {
	versions, _ := s.ListVersions(ctx, schemaID)
	if len(versions) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

// ListVersions returns every version of schemaID in ascending order.
func (s *InMemoryStore) ListVersions(_ context.Context, schemaID id.SchemaID) ([]*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Schema, 0)
	for k, schema := range s.schemas {
		if k.id == schemaID {
			clone := *schema
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ListByIssuer returns the latest version of each schema owned by issuerDID.
func (s *InMemoryStore) ListByIssuer(_ context.Context, issuerDID string) ([]*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := make(map[id.SchemaID]*models.Schema)
	for _, schema := range s.schemas {
		if schema.IssuerDID != issuerDID {
			continue
		}
		if cur, ok := latest[schema.ID]; !ok || schema.Version > cur.Version {
			latest[schema.ID] = schema
		}
	}
	out := make([]*models.Schema, 0, len(latest))
	for _, schema := range latest {
		clone := *schema
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetActive flips is_active only when the row is in the opposite state.
func (s *InMemoryStore) SetActive(_ context.Context, schemaID id.SchemaID, version int, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schema, ok := s.schemas[versionKey{schemaID, version}]
	if !ok {
		return sentinel.ErrNotFound
	}
	if schema.IsActive == active {
		return fmt.Errorf("schema %s v%d already active=%t: %w", schemaID, version, active, sentinel.ErrInvalidState)
	}
	schema.IsActive = active
	schema.UpdatedAt = now
	return nil
}
