package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"vcanchor/internal/ledger"
	id "vcanchor/pkg/domain"
	dErrors "vcanchor/pkg/domain-errors"
)

// Schema is one version of a credential schema. The current schema for an id
// is the one with the highest version.
//
// Invariants:
//   - versions for an id start at 1 and increase by exactly 1 per update
//   - IssuerDID and Name are carried unchanged from version 1
//   - Body is a JSON object and is otherwise opaque
type Schema struct {
	ID         id.SchemaID     `json:"id"`
	Version    int             `json:"version"`
	Name       string          `json:"name"`
	Body       json.RawMessage `json:"schema"`
	IssuerDID  string          `json:"issuer_did"`
	IssuerName string          `json:"issuer_name"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewSchema builds version 1 of a schema.
func NewSchema(schemaID id.SchemaID, name string, body []byte, issuerDID, issuerName string, now time.Time) (*Schema, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if issuerDID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "issuer_did is required")
	}
	compact, err := ParseBody(body)
	if err != nil {
		return nil, err
	}
	return &Schema{
		ID:         schemaID,
		Version:    1,
		Name:       name,
		Body:       compact,
		IssuerDID:  issuerDID,
		IssuerName: strings.TrimSpace(issuerName),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NextVersion derives version v+1 with a new body.
func (s *Schema) NextVersion(body []byte, now time.Time) (*Schema, error) {
	compact, err := ParseBody(body)
	if err != nil {
		return nil, err
	}
	return &Schema{
		ID:         s.ID,
		Version:    s.Version + 1,
		Name:       s.Name,
		Body:       compact,
		IssuerDID:  s.IssuerDID,
		IssuerName: s.IssuerName,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OwnedBy reports whether did may modify this schema.
func (s *Schema) OwnedBy(did string) bool {
	return did != "" && s.IssuerDID == did
}

// ParseBody checks that body is a JSON object and returns it compacted.
func ParseBody(body []byte) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "schema must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "schema must be a JSON object")
	}
	return buf.Bytes(), nil
}

// Result is a schema write together with its ledger receipt.
type Result struct {
	Schema  *Schema         `json:"schema"`
	Receipt *ledger.Receipt `json:"receipt"`
}

// CreateRequest is the HTTP body for a new schema.
type CreateRequest struct {
	Name       string          `json:"name"`
	Schema     json.RawMessage `json:"schema"`
	IssuerName string          `json:"issuer_name"`
}

func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.IssuerName = strings.TrimSpace(r.IssuerName)
}

func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Schema) == 0 {
		return dErrors.New(dErrors.CodeValidation, "schema is required")
	}
	return nil
}

// UpdateRequest is the HTTP body for a new schema version.
type UpdateRequest struct {
	Schema json.RawMessage `json:"schema"`
}

func (r *UpdateRequest) Normalize() {}

func (r *UpdateRequest) Validate() error {
	if len(r.Schema) == 0 {
		return dErrors.New(dErrors.CodeValidation, "schema is required")
	}
	return nil
}
