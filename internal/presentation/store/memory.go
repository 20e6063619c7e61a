package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vcanchor/internal/presentation/models"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
)

// InMemoryStore keeps VP requests and shares in maps guarded by one mutex.
type InMemoryStore struct {
	mu       sync.Mutex
	requests map[id.VPRequestID]*models.VPRequest
	shares   map[id.VPShareID]*models.VPShare
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.VPRequestID]*models.VPRequest),
		shares:   make(map[id.VPShareID]*models.VPShare),
	}
}

func (s *InMemoryStore) CreateRequest(_ context.Context, req *models.VPRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("vp request %s: %w", req.ID, sentinel.ErrConflict)
	}
	clone := *req
	clone.SchemaIDs = append([]string(nil), req.SchemaIDs...)
	s.requests[req.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, reqID id.VPRequestID) (*models.VPRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *req
	clone.SchemaIDs = append([]string(nil), req.SchemaIDs...)
	return &clone, nil
}

// ListRequestsByHolder returns the holder's requests, newest first.
func (s *InMemoryStore) ListRequestsByHolder(_ context.Context, holderDID string) ([]*models.VPRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.VPRequest, 0)
	for _, req := range s.requests {
		if req.HolderDID == holderDID {
			clone := *req
			clone.SchemaIDs = append([]string(nil), req.SchemaIDs...)
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CreateShare(_ context.Context, share *models.VPShare) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[share.ID]; ok {
		return fmt.Errorf("vp share %s: %w", share.ID, sentinel.ErrConflict)
	}
	clone := *share
	s.shares[share.ID] = &clone
	return nil
}

// FindShare returns an undeleted share.
func (s *InMemoryStore) FindShare(_ context.Context, shareID id.VPShareID) (*models.VPShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[shareID]
	if !ok || share.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	clone := *share
	return &clone, nil
}

// ConsumeShare soft-deletes an undeleted share and returns it. Only one caller
// can consume a given share.
func (s *InMemoryStore) ConsumeShare(_ context.Context, shareID id.VPShareID, now time.Time) (*models.VPShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[shareID]
	if !ok || share.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	deletedAt := now
	share.DeletedAt = &deletedAt
	clone := *share
	return &clone, nil
}

// SoftDelete marks a share deleted. Deleting an already deleted share is a no-op.
func (s *InMemoryStore) SoftDelete(_ context.Context, shareID id.VPShareID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[shareID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !share.IsDeleted() {
		deletedAt := now
		share.DeletedAt = &deletedAt
	}
	return nil
}
