package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"vcanchor/internal/credential/models"
	"vcanchor/internal/platform/postgres"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
	txcontext "vcanchor/pkg/platform/tx"
)

var tables = map[models.RequestType]string{
	models.RequestIssuance:   "issuance_requests",
	models.RequestRenewal:    "renewal_requests",
	models.RequestUpdate:     "update_requests",
	models.RequestRevocation: "revocation_requests",
}

const requestColumns = `id, issuer_did, holder_did, encrypted_body, status, vc_id, vc_type, schema_id,
	schema_version, vc_hash, expired_at, tx_hash, created_at, updated_at`

// PostgresStore persists requests in one table per request type.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func tableFor(typ models.RequestType) (string, error) {
	table, ok := tables[typ]
	if !ok {
		return "", fmt.Errorf("unknown request type %q", typ)
	}
	return table, nil
}

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	table, err := tableFor(req.Type)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, issuer_did, holder_did, encrypted_body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, table)
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(req.ID), req.IssuerDID, req.HolderDID, req.EncryptedBody, string(req.Status),
		req.CreatedAt, req.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, typ models.RequestType, reqID id.RequestID) (*models.Request, error) {
	table, err := tableFor(typ)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, requestColumns, table)
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(reqID))
	req, err := scanRequest(row, typ)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, typ models.RequestType, issuerDID string, status models.RequestStatus) ([]*models.Request, error) {
	return s.list(ctx, typ, "issuer_did", issuerDID, status, 0)
}

func (s *PostgresStore) ListByHolder(ctx context.Context, typ models.RequestType, holderDID string, status models.RequestStatus) ([]*models.Request, error) {
	return s.list(ctx, typ, "holder_did", holderDID, status, 0)
}

func (s *PostgresStore) NextPending(ctx context.Context, typ models.RequestType, issuerDID string) (*models.Request, error) {
	reqs, err := s.list(ctx, typ, "issuer_did", issuerDID, models.StatusPending, 1)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return reqs[0], nil
}

// list filters on a fixed column name; column is never caller input.
func (s *PostgresStore) list(ctx context.Context, typ models.RequestType, column, did string, status models.RequestStatus, limit int) ([]*models.Request, error) {
	table, err := tableFor(typ)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at, id
	`, requestColumns, table, column)
	args := []any{did, string(status)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows, typ)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

// UpdateDecision writes the decision with a compare-and-swap on PENDING.
func (s *PostgresStore) UpdateDecision(ctx context.Context, req *models.Request) error {
	table, err := tableFor(req.Type)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, vc_id = $3, vc_type = $4, schema_id = $5, schema_version = $6,
			vc_hash = $7, expired_at = $8, tx_hash = $9, updated_at = $10
		WHERE id = $1 AND status = 'PENDING'
	`, table)
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(req.ID), string(req.Status),
		nullString(req.VCID), nullString(req.VCType), nullString(req.SchemaID), nullInt(req.SchemaVersion),
		nullString(req.VCHash), req.ExpiredAt, nullString(req.TxHash), req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update request decision: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request decision: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, req.Type, req.ID); err != nil {
		return err
	}
	return fmt.Errorf("request %s is not pending: %w", req.ID, sentinel.ErrInvalidState)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner, typ models.RequestType) (*models.Request, error) {
	var (
		reqID                                uuid.UUID
		status                               string
		vcID, vcType, schemaID, vcHash, txID sql.NullString
		schemaVersion                        sql.NullInt64
		expiredAt                            sql.NullTime
		req                                  = &models.Request{Type: typ}
	)
	if err := row.Scan(&reqID, &req.IssuerDID, &req.HolderDID, &req.EncryptedBody, &status,
		&vcID, &vcType, &schemaID, &schemaVersion, &vcHash, &expiredAt, &txID,
		&req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.ID = id.RequestID(reqID)
	req.Status = models.RequestStatus(status)
	req.VCID = vcID.String
	req.VCType = vcType.String
	req.SchemaID = schemaID.String
	req.SchemaVersion = int(schemaVersion.Int64)
	req.VCHash = vcHash.String
	req.TxHash = txID.String
	if expiredAt.Valid {
		t := expiredAt.Time
		req.ExpiredAt = &t
	}
	return req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
