package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: row or ledger record does not exist
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: a conditional update found the row in another state
//   - ErrAlreadyUsed: a one-time resource (VP share) was already consumed
//   - ErrUnavailable: a dependency is temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrAlreadyUsed  = errors.New("already used")
	ErrUnavailable  = errors.New("unavailable")
)
