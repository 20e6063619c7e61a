package response

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vcanchor/internal/credential/models"
	"vcanchor/internal/platform/postgres"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
	txcontext "vcanchor/pkg/platform/tx"
)

const responseColumns = `id, request_id, request_type, issuer_did, holder_did, encrypted_body,
	status, claimed_at, deleted_at, created_at`

// PostgresStore persists credential responses.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, resp *models.Response) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO credential_responses (id, request_id, request_type, issuer_did, holder_did, encrypted_body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(resp.ID), uuid.UUID(resp.RequestID), string(resp.RequestType), resp.IssuerDID, resp.HolderDID,
		resp.EncryptedBody, string(resp.Status), resp.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("response for request %s: %w", resp.RequestID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert credential response: %w", err)
	}
	return nil
}

// Claim locks up to limit PENDING rows with SKIP LOCKED so concurrent claimers
// partition the queue, then flips them with a status-guarded update.
func (s *PostgresStore) Claim(ctx context.Context, holderDID string, limit int, now time.Time) ([]*models.Response, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		WITH candidates AS (
			SELECT id FROM credential_responses
			WHERE holder_did = $1 AND status = 'PENDING' AND deleted_at IS NULL
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE credential_responses r
		SET status = 'PROCESSING', claimed_at = $3
		FROM candidates c
		WHERE r.id = c.id AND r.status = 'PENDING'
		RETURNING r.id, r.request_id, r.request_type, r.issuer_did, r.holder_did, r.encrypted_body,
			r.status, r.claimed_at, r.deleted_at, r.created_at
	`, holderDID, limit, now)
	if err != nil {
		return nil, fmt.Errorf("claim credential responses: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Response, 0, limit)
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed response: %w", err)
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed responses: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PostgresStore) CountPending(ctx context.Context, holderDID string) (int, error) {
	var n int
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM credential_responses
		WHERE holder_did = $1 AND status = 'PENDING' AND deleted_at IS NULL
	`, holderDID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending responses: %w", err)
	}
	return n, nil
}

// Confirm soft-deletes the caller's PROCESSING rows, then classifies the rest.
func (s *PostgresStore) Confirm(ctx context.Context, holderDID string, ids []id.ResponseID, now time.Time) (map[id.ResponseID]models.ConfirmOutcome, error) {
	outcomes := make(map[id.ResponseID]models.ConfirmOutcome, len(ids))
	if len(ids) == 0 {
		return outcomes, nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	exec := txcontext.Exec(ctx, s.db)

	rows, err := exec.QueryContext(ctx, `
		UPDATE credential_responses
		SET deleted_at = $3
		WHERE id = ANY($1::uuid[]) AND holder_did = $2 AND status = 'PROCESSING' AND deleted_at IS NULL
		RETURNING id
	`, pq.Array(raw), holderDID, now)
	if err != nil {
		return nil, fmt.Errorf("confirm credential responses: %w", err)
	}
	if err := collectIDs(rows, func(v uuid.UUID) { outcomes[id.ResponseID(v)] = models.OutcomeConfirmed }); err != nil {
		return nil, err
	}

	var rest []string
	for _, v := range ids {
		if _, ok := outcomes[v]; !ok {
			rest = append(rest, v.String())
		}
	}
	if len(rest) > 0 {
		if err := s.classify(ctx, exec, holderDID, rest, outcomes); err != nil {
			return nil, err
		}
	}
	for _, v := range ids {
		if _, ok := outcomes[v]; !ok {
			outcomes[v] = models.OutcomeNotFound
		}
	}
	return outcomes, nil
}

func (s *PostgresStore) classify(ctx context.Context, exec txcontext.Executor, holderDID string, ids []string, outcomes map[id.ResponseID]models.ConfirmOutcome) error {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, holder_did, status FROM credential_responses
		WHERE id = ANY($1::uuid[]) AND deleted_at IS NULL
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("classify credential responses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v      uuid.UUID
			holder string
			status string
		)
		if err := rows.Scan(&v, &holder, &status); err != nil {
			return fmt.Errorf("scan credential response: %w", err)
		}
		switch {
		case holder != holderDID:
			outcomes[id.ResponseID(v)] = models.OutcomeNotOwner
		case status != string(models.ResponseProcessing):
			outcomes[id.ResponseID(v)] = models.OutcomeNotProcessing
		}
	}
	return rows.Err()
}

func (s *PostgresStore) ResetStuck(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE credential_responses
		SET status = 'PENDING', claimed_at = NULL
		WHERE status = 'PROCESSING' AND deleted_at IS NULL AND claimed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stuck responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stuck responses: %w", err)
	}
	return int(n), nil
}

func collectIDs(rows *sql.Rows, fn func(uuid.UUID)) error {
	defer rows.Close()
	for rows.Next() {
		var v uuid.UUID
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		fn(v)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResponse(row scanner) (*models.Response, error) {
	var (
		respID, reqID        uuid.UUID
		reqType, status      string
		claimedAt, deletedAt sql.NullTime
		resp                 = &models.Response{}
	)
	if err := row.Scan(&respID, &reqID, &reqType, &resp.IssuerDID, &resp.HolderDID, &resp.EncryptedBody,
		&status, &claimedAt, &deletedAt, &resp.CreatedAt); err != nil {
		return nil, err
	}
	resp.ID = id.ResponseID(respID)
	resp.RequestID = id.RequestID(reqID)
	resp.RequestType = models.RequestType(reqType)
	resp.Status = models.ResponseStatus(status)
	if claimedAt.Valid {
		t := claimedAt.Time
		resp.ClaimedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		resp.DeletedAt = &t
	}
	return resp, nil
}
