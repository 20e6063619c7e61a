package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vcanchor/internal/platform/postgres"
	"vcanchor/internal/presentation/models"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
	txcontext "vcanchor/pkg/platform/tx"
)

// PostgresStore persists VP requests and shares.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *models.VPRequest) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO vp_requests (id, holder_did, verifier_did, schema_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(req.ID), req.HolderDID, req.VerifierDID, pq.Array(req.SchemaIDs), req.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("vp request %s: %w", req.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert vp request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, reqID id.VPRequestID) (*models.VPRequest, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, holder_did, verifier_did, schema_ids, created_at
		FROM vp_requests WHERE id = $1
	`, uuid.UUID(reqID))
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find vp request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListRequestsByHolder(ctx context.Context, holderDID string) ([]*models.VPRequest, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, holder_did, verifier_did, schema_ids, created_at
		FROM vp_requests WHERE holder_did = $1
		ORDER BY created_at DESC
	`, holderDID)
	if err != nil {
		return nil, fmt.Errorf("list vp requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.VPRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vp request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vp requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateShare(ctx context.Context, share *models.VPShare) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO vp_shares (id, holder_did, vp, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(share.ID), share.HolderDID, string(share.VP), share.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("vp share %s: %w", share.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert vp share: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindShare(ctx context.Context, shareID id.VPShareID) (*models.VPShare, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, holder_did, vp, created_at, deleted_at
		FROM vp_shares WHERE id = $1 AND deleted_at IS NULL
	`, uuid.UUID(shareID))
	return scanShareRow(row, "find vp share")
}

// ConsumeShare soft-deletes the share in the same statement that reads it, so
// concurrent callers cannot both receive it.
func (s *PostgresStore) ConsumeShare(ctx context.Context, shareID id.VPShareID, now time.Time) (*models.VPShare, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		UPDATE vp_shares SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, holder_did, vp, created_at, deleted_at
	`, uuid.UUID(shareID), now)
	return scanShareRow(row, "consume vp share")
}

func (s *PostgresStore) SoftDelete(ctx context.Context, shareID id.VPShareID, now time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE vp_shares SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, uuid.UUID(shareID), now)
	if err != nil {
		return fmt.Errorf("soft delete vp share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete vp share: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	err = txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vp_shares WHERE id = $1)`, uuid.UUID(shareID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("soft delete vp share: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.VPRequest, error) {
	var (
		reqID     uuid.UUID
		schemaIDs []string
		req       = &models.VPRequest{}
	)
	if err := row.Scan(&reqID, &req.HolderDID, &req.VerifierDID, pq.Array(&schemaIDs), &req.CreatedAt); err != nil {
		return nil, err
	}
	req.ID = id.VPRequestID(reqID)
	req.SchemaIDs = schemaIDs
	return req, nil
}

func scanShareRow(row *sql.Row, op string) (*models.VPShare, error) {
	var (
		shareID   uuid.UUID
		vp        string
		deletedAt sql.NullTime
		share     = &models.VPShare{}
	)
	if err := row.Scan(&shareID, &share.HolderDID, &vp, &share.CreatedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	share.ID = id.VPShareID(shareID)
	share.VP = []byte(vp)
	if deletedAt.Valid {
		t := deletedAt.Time
		share.DeletedAt = &t
	}
	return share, nil
}
