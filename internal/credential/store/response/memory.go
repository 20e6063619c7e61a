package response

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vcanchor/internal/credential/models"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
)

// InMemoryStore guards every transition with one mutex, which makes the
// status check and the update a single compare-and-swap.
type InMemoryStore struct {
	mu        sync.Mutex
	responses map[id.ResponseID]*models.Response
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{responses: make(map[id.ResponseID]*models.Response)}
}

func (s *InMemoryStore) Create(_ context.Context, resp *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.responses {
		if existing.RequestType == resp.RequestType && existing.RequestID == resp.RequestID {
			return fmt.Errorf("response for request %s: %w", resp.RequestID, sentinel.ErrConflict)
		}
	}
	clone := *resp
	s.responses[resp.ID] = &clone
	return nil
}

func (s *InMemoryStore) Claim(_ context.Context, holderDID string, limit int, now time.Time) ([]*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := s.pendingFor(holderDID)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*models.Response, 0, len(candidates))
	for _, resp := range candidates {
		claimedAt := now
		resp.Status = models.ResponseProcessing
		resp.ClaimedAt = &claimedAt
		clone := *resp
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemoryStore) CountPending(_ context.Context, holderDID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingFor(holderDID)), nil
}

func (s *InMemoryStore) pendingFor(holderDID string) []*models.Response {
	var out []*models.Response
	for _, resp := range s.responses {
		if resp.HolderDID == holderDID && resp.Status == models.ResponsePending && !resp.IsDeleted() {
			out = append(out, resp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *InMemoryStore) Confirm(_ context.Context, holderDID string, ids []id.ResponseID, now time.Time) (map[id.ResponseID]models.ConfirmOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcomes := make(map[id.ResponseID]models.ConfirmOutcome, len(ids))
	for _, respID := range ids {
		resp, ok := s.responses[respID]
		switch {
		case !ok || resp.IsDeleted():
			outcomes[respID] = models.OutcomeNotFound
		case resp.HolderDID != holderDID:
			outcomes[respID] = models.OutcomeNotOwner
		case resp.Status != models.ResponseProcessing:
			outcomes[respID] = models.OutcomeNotProcessing
		default:
			deletedAt := now
			resp.DeletedAt = &deletedAt
			outcomes[respID] = models.OutcomeConfirmed
		}
	}
	return outcomes, nil
}

func (s *InMemoryStore) ResetStuck(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, resp := range s.responses {
		if resp.Status != models.ResponseProcessing || resp.IsDeleted() || resp.ClaimedAt == nil {
			continue
		}
		if resp.ClaimedAt.Before(cutoff) {
			resp.Status = models.ResponsePending
			resp.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}
