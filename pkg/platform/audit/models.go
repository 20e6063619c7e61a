// Package audit carries credential, schema and presentation lifecycle events
// from the services to their sinks (outbox table, Kafka, memory).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies lifecycle events by their primary purpose.
// This drives routing and retention downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: a credential
	// or schema changed state on the ledger.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events that need operator attention, such as a
	// ledger write whose store write failed or was compensated.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// EventType names a lifecycle transition.
type EventType string

const (
	// Credential requests
	EventCredentialRequestCreated   EventType = "credential_request_created"
	EventCredentialRequestApproved  EventType = "credential_request_approved"
	EventCredentialRequestRejected  EventType = "credential_request_rejected"
	EventCredentialApprovalDegraded EventType = "credential_approval_degraded"

	// Credential responses
	EventResponsesClaimed   EventType = "credential_responses_claimed"
	EventResponsesConfirmed EventType = "credential_responses_confirmed"
	EventResponsesReset     EventType = "credential_responses_reset"

	// Schemas
	EventSchemaCreated     EventType = "schema_created"
	EventSchemaUpdated     EventType = "schema_updated"
	EventSchemaDeactivated EventType = "schema_deactivated"
	EventSchemaReactivated EventType = "schema_reactivated"
	EventSchemaCompensated EventType = "schema_compensated"

	// Presentations
	EventVPRequested EventType = "vp_requested"
	EventVPShared    EventType = "vp_shared"
	EventVPRetrieved EventType = "vp_retrieved"
	EventVPVerified  EventType = "vp_verified"
)

var eventCategories = map[EventType]EventCategory{
	EventCredentialRequestApproved: CategoryCompliance,
	EventCredentialRequestRejected: CategoryCompliance,
	EventSchemaCreated:             CategoryCompliance,
	EventSchemaUpdated:             CategoryCompliance,
	EventSchemaDeactivated:         CategoryCompliance,
	EventSchemaReactivated:         CategoryCompliance,
	EventVPVerified:                CategoryCompliance,

	EventCredentialApprovalDegraded: CategorySecurity,
	EventSchemaCompensated:          CategorySecurity,
	EventResponsesReset:             CategorySecurity,
}

// Category returns the EventCategory for this event type.
// Unknown events default to CategoryOperations.
func (t EventType) Category() EventCategory {
	if cat, ok := eventCategories[t]; ok {
		return cat
	}
	return CategoryOperations
}

// Aggregate types used as outbox partition keys.
const (
	AggregateCredentialRequest  = "credential_request"
	AggregateCredentialResponse = "credential_response"
	AggregateSchema             = "vc_schema"
	AggregatePresentation       = "presentation"
)

// Event is emitted from domain logic to capture a lifecycle transition.
// It stays transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	Type          EventType         `json:"type"`
	Category      EventCategory     `json:"category"`
	Timestamp     time.Time         `json:"timestamp"`
	AggregateType string            `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	SubjectDID    string            `json:"subject_did,omitempty"`
	ActorDID      string            `json:"actor_did,omitempty"`
	TxHash        string            `json:"tx_hash,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what services depend on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
