// Package did resolves ledger-resident DID documents to their active key.
package did

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Status of a DID document on the ledger.
type Status string

const (
	StatusActive      Status = "Active"
	StatusDeactivated Status = "Deactivated"
)

// Roles derived from a DID document.
const (
	RoleIndividual  = "individual"
	RoleInstitution = "institution"
)

var (
	ErrNoActiveKey     = errors.New("did document has no active key")
	ErrInvalidDocument = errors.New("invalid did document")
)

// VerificationKey is one key registered for a DID. PublicKey is hex encoded,
// optionally 0x-prefixed.
type VerificationKey struct {
	KeyID     string `json:"keyId"`
	PublicKey string `json:"publicKey"`
	Active    bool   `json:"active"`
}

// Details are the optional institutional attributes of a DID.
type Details struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Country string `json:"country,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
}

// Document is the ledger record for a DID.
type Document struct {
	DID        string            `json:"did"`
	Controller string            `json:"controller"`
	Keys       []VerificationKey `json:"keys"`
	Status     Status            `json:"status"`
	Details    *Details          `json:"details,omitempty"`
}

// ActiveKey returns the single active key. Zero or several active keys make
// the document unusable.
func (d *Document) ActiveKey() (*VerificationKey, error) {
	var active *VerificationKey
	for i := range d.Keys {
		if !d.Keys[i].Active {
			continue
		}
		if active != nil {
			return nil, fmt.Errorf("%w: %s has more than one active key", ErrInvalidDocument, d.DID)
		}
		active = &d.Keys[i]
	}
	if active == nil {
		return nil, ErrNoActiveKey
	}
	return active, nil
}

// Key is the resolved view of a DID used for verification.
type Key struct {
	DID       string   `json:"did"`
	KeyID     string   `json:"keyId"`
	PublicKey []byte   `json:"publicKey"`
	Status    Status   `json:"status"`
	Details   *Details `json:"details,omitempty"`
}

func (k *Key) IsActive() bool {
	return k.Status == StatusActive
}

// Role is "institution" for DIDs that registered institutional details.
func (k *Key) Role() string {
	if k.Details != nil && k.Details.Name != "" {
		return RoleInstitution
	}
	return RoleIndividual
}

// KeyFromDocument extracts the active key of a document.
func KeyFromDocument(doc *Document) (*Key, error) {
	if doc.DID == "" {
		return nil, fmt.Errorf("%w: missing did", ErrInvalidDocument)
	}
	active, err := doc.ActiveKey()
	if err != nil {
		return nil, err
	}
	pub, err := decodeHexKey(active.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key %s: %v", ErrInvalidDocument, active.KeyID, err)
	}
	return &Key{
		DID:       doc.DID,
		KeyID:     active.KeyID,
		PublicKey: pub,
		Status:    doc.Status,
		Details:   doc.Details,
	}, nil
}

func decodeHexKey(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, errors.New("empty public key")
	}
	return hex.DecodeString(s)
}

// HasPrefix reports whether did starts with one of the recognized method prefixes.
func HasPrefix(did string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(did, p) && len(did) > len(p) {
			return true
		}
	}
	return false
}
