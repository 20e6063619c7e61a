package request

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vcanchor/internal/credential/models"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
)

type key struct {
	typ models.RequestType
	id  id.RequestID
}

// InMemoryStore keeps requests of every type in one map.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[key]*models.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[key]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{req.Type, req.ID}
	if _, ok := s.requests[k]; ok {
		return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
	}
	clone := *req
	s.requests[k] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, typ models.RequestType, reqID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[key{typ, reqID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *InMemoryStore) ListByIssuer(_ context.Context, typ models.RequestType, issuerDID string, status models.RequestStatus) ([]*models.Request, error) {
	return s.list(typ, status, func(r *models.Request) bool { return r.IssuerDID == issuerDID }), nil
}

func (s *InMemoryStore) ListByHolder(_ context.Context, typ models.RequestType, holderDID string, status models.RequestStatus) ([]*models.Request, error) {
	return s.list(typ, status, func(r *models.Request) bool { return r.HolderDID == holderDID }), nil
}

func (s *InMemoryStore) list(typ models.RequestType, status models.RequestStatus, match func(*models.Request) bool) []*models.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Request, 0)
	for k, r := range s.requests {
		if k.typ != typ || !match(r) {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *InMemoryStore) NextPending(ctx context.Context, typ models.RequestType, issuerDID string) (*models.Request, error) {
	pending, _ := s.ListByIssuer(ctx, typ, issuerDID, models.StatusPending)
	if len(pending) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return pending[0], nil
}

// UpdateDecision stores a decision only while the request is still PENDING.
func (s *InMemoryStore) UpdateDecision(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[key{req.Type, req.ID}]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != models.StatusPending {
		return fmt.Errorf("request %s is %s: %w", req.ID, current.Status, sentinel.ErrInvalidState)
	}
	clone := *req
	s.requests[key{req.Type, req.ID}] = &clone
	return nil
}
