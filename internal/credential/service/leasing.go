package service

import (
	"context"
	"strconv"
	"time"

	"vcanchor/internal/credential/models"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
	"vcanchor/pkg/platform/audit"
	"vcanchor/pkg/requestcontext"
)

// Claim leases up to limit queued responses to the holder.
func (s *Service) Claim(ctx context.Context, holderDID string, limit int) (*models.ClaimResult, error) {
	if holderDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "holder_did is required")
	}
	if limit <= 0 || limit > models.MaxClaimLimit {
		return nil, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 100")
	}

	claimed, err := s.responses.Claim(ctx, holderDID, limit, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStore, "failed to claim credential responses")
	}
	remaining, err := s.responses.CountPending(ctx, holderDID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStore, "failed to count credential responses")
	}

	if len(claimed) > 0 {
		s.metrics.AddClaimed(len(claimed))
		s.emit(ctx, audit.Event{
			Type:          audit.EventResponsesClaimed,
			AggregateType: audit.AggregateCredentialResponse,
			AggregateID:   holderDID,
			SubjectDID:    holderDID,
			ActorDID:      holderDID,
			Attributes:    map[string]string{"count": strconv.Itoa(len(claimed))},
		})
	}
	return &models.ClaimResult{
		Responses:      claimed,
		ClaimedCount:   len(claimed),
		HasMore:        remaining > 0,
		RemainingCount: remaining,
	}, nil
}

// Confirm soft-deletes responses the holder has stored. Ids the holder does not
// own or that are not PROCESSING are reported per id and do not fail the batch.
func (s *Service) Confirm(ctx context.Context, holderDID string, ids []id.ResponseID) (*models.ConfirmResult, error) {
	if holderDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "holder_did is required")
	}
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "ids must not be empty")
	}

	outcomes, err := s.responses.Confirm(ctx, holderDID, ids, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStore, "failed to confirm credential responses")
	}

	result := &models.ConfirmResult{Results: make([]models.ConfirmItem, 0, len(ids))}
	for _, respID := range ids {
		outcome, ok := outcomes[respID]
		if !ok {
			outcome = models.OutcomeNotFound
		}
		if outcome == models.OutcomeConfirmed {
			result.ConfirmedCount++
		} else {
			result.SkippedCount++
		}
		result.Results = append(result.Results, models.ConfirmItem{ID: respID, Outcome: outcome})
	}

	if result.ConfirmedCount > 0 {
		s.metrics.AddConfirmed(result.ConfirmedCount)
		s.emit(ctx, audit.Event{
			Type:          audit.EventResponsesConfirmed,
			AggregateType: audit.AggregateCredentialResponse,
			AggregateID:   holderDID,
			SubjectDID:    holderDID,
			ActorDID:      holderDID,
			Attributes: map[string]string{
				"confirmed": strconv.Itoa(result.ConfirmedCount),
				"skipped":   strconv.Itoa(result.SkippedCount),
			},
		})
	}
	return result, nil
}

// ResetStuck returns PROCESSING responses claimed longer than timeout ago to
// PENDING and reports how many moved.
func (s *Service) ResetStuck(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "timeout must be positive")
	}
	cutoff := requestcontext.Now(ctx).Add(-timeout)
	n, err := s.responses.ResetStuck(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStore, "failed to reset stuck credential responses")
	}
	if n > 0 {
		s.metrics.AddReset(n)
		s.emit(ctx, audit.Event{
			Type:          audit.EventResponsesReset,
			AggregateType: audit.AggregateCredentialResponse,
			AggregateID:   "sweep",
			Attributes: map[string]string{
				"count":   strconv.Itoa(n),
				"timeout": timeout.String(),
			},
		})
	}
	return n, nil
}
