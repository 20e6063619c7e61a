package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vcanchor/internal/platform/postgres"
	"vcanchor/internal/schema/models"
	id "vcanchor/pkg/domain"
	"vcanchor/pkg/platform/sentinel"
	txcontext "vcanchor/pkg/platform/tx"
)

const schemaColumns = `id, version, name, schema, issuer_did, issuer_name, is_active, created_at, updated_at`

// PostgresStore persists schema versions in vc_schemas.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, schema *models.Schema) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO vc_schemas (`+schemaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(schema.ID), schema.Version, schema.Name, []byte(schema.Body), schema.IssuerDID,
		schema.IssuerName, schema.IsActive, schema.CreatedAt, schema.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("schema %s v%d: %w", schema.ID, schema.Version, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, schemaID id.SchemaID, version int) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM vc_schemas WHERE id = $1 AND version = $2`, uuid.UUID(schemaID), version)
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, schemaID id.SchemaID, version int) (*models.Schema, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+schemaColumns+` FROM vc_schemas WHERE id = $1 AND version = $2`,
		uuid.UUID(schemaID), version)
	return scanOne(row)
}

func (s *PostgresStore) FindLatest(ctx context.Context, schemaID id.SchemaID) (*models.Schema, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+schemaColumns+` FROM vc_schemas WHERE id = $1 ORDER BY version DESC LIMIT 1`,
		uuid.UUID(schemaID))
	return scanOne(row)
}

func (s *PostgresStore) ListVersions(ctx context.Context, schemaID id.SchemaID) ([]*models.Schema, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+schemaColumns+` FROM vc_schemas WHERE id = $1 ORDER BY version`,
		uuid.UUID(schemaID))
	if err != nil {
		return nil, fmt.Errorf("list schema versions: %w", err)
	}
	return scanAll(rows)
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuerDID string) ([]*models.Schema, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT `+schemaColumns+` FROM (
			SELECT DISTINCT ON (id) `+schemaColumns+`
			FROM vc_schemas
			WHERE issuer_did = $1
			ORDER BY id, version DESC
		) latest
		ORDER BY created_at
	`, issuerDID)
	if err != nil {
		return nil, fmt.Errorf("list schemas by issuer: %w", err)
	}
	return scanAll(rows)
}

// SetActive flips is_active with a compare-and-swap on the current flag.
func (s *PostgresStore) SetActive(ctx context.Context, schemaID id.SchemaID, version int, active bool, now time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE vc_schemas SET is_active = $3, updated_at = $4
		WHERE id = $1 AND version = $2 AND is_active = NOT $3
	`, uuid.UUID(schemaID), version, active, now)
	if err != nil {
		return fmt.Errorf("set schema active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set schema active: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Find(ctx, schemaID, version); err != nil {
		return err
	}
	return fmt.Errorf("schema %s v%d already active=%t: %w", schemaID, version, active, sentinel.ErrInvalidState)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchema(row scanner) (*models.Schema, error) {
	var (
		schemaID uuid.UUID
		body     []byte
		schema   = &models.Schema{}
	)
	if err := row.Scan(&schemaID, &schema.Version, &schema.Name, &body, &schema.IssuerDID,
		&schema.IssuerName, &schema.IsActive, &schema.CreatedAt, &schema.UpdatedAt); err != nil {
		return nil, err
	}
	schema.ID = id.SchemaID(schemaID)
	schema.Body = body
	return schema, nil
}

func scanOne(row *sql.Row) (*models.Schema, error) {
	schema, err := scanSchema(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find schema: %w", err)
	}
	return schema, nil
}

func scanAll(rows *sql.Rows) ([]*models.Schema, error) {
	defer rows.Close()
	out := make([]*models.Schema, 0)
	for rows.Next() {
		schema, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		out = append(out, schema)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return out, nil
}
