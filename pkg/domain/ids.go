// Package domain holds identifier primitives shared by the credential, schema
// and presentation modules. IDs are parsed once at the trust boundary; past it
// they are distinct types so a schema id cannot be passed where a request id
// is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "vcanchor/pkg/domain-errors"
)

type (
	RequestID   uuid.UUID
	ResponseID  uuid.UUID
	SchemaID    uuid.UUID
	VPRequestID uuid.UUID
	VPShareID   uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID("request id", s)
	return RequestID(u), err
}

func ParseResponseID(s string) (ResponseID, error) {
	u, err := parseUUID("response id", s)
	return ResponseID(u), err
}

func ParseSchemaID(s string) (SchemaID, error) {
	u, err := parseUUID("schema id", s)
	return SchemaID(u), err
}

func ParseVPRequestID(s string) (VPRequestID, error) {
	u, err := parseUUID("vp request id", s)
	return VPRequestID(u), err
}

func ParseVPShareID(s string) (VPShareID, error) {
	u, err := parseUUID("vp share id", s)
	return VPShareID(u), err
}

func (id RequestID) String() string   { return uuid.UUID(id).String() }
func (id ResponseID) String() string  { return uuid.UUID(id).String() }
func (id SchemaID) String() string    { return uuid.UUID(id).String() }
func (id VPRequestID) String() string { return uuid.UUID(id).String() }
func (id VPShareID) String() string   { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ResponseID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SchemaID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VPRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VPShareID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id RequestID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ResponseID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id SchemaID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id VPRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id VPShareID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *RequestID) UnmarshalText(b []byte) error   { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *ResponseID) UnmarshalText(b []byte) error  { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *SchemaID) UnmarshalText(b []byte) error    { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *VPRequestID) UnmarshalText(b []byte) error { return unmarshalID(b, (*uuid.UUID)(id)) }
func (id *VPShareID) UnmarshalText(b []byte) error   { return unmarshalID(b, (*uuid.UUID)(id)) }

func unmarshalID(b []byte, dst *uuid.UUID) error {
	u, err := parseUUID("id", string(b))
	if err != nil {
		return err
	}
	*dst = u
	return nil
}
