// Package ledger is the gateway to the identity/credential ledger. Writes block
// until the transaction receipt is available; nothing in the service acts on an
// unconfirmed transaction.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Contract methods invoked by the service.
const (
	MethodGetDID           = "getDID"
	MethodIssueVC          = "issueVC"
	MethodRenewVC          = "renewVC"
	MethodUpdateVC         = "updateVC"
	MethodRevokeVC         = "revokeVC"
	MethodGetVC            = "getVC"
	MethodCreateSchema     = "createVCSchema"
	MethodUpdateSchema     = "updateVCSchema"
	MethodDeactivateSchema = "deactivateVCSchema"
	MethodReactivateSchema = "reactivateVCSchema"
)

// StatusSuccess is the receipt status of a mined, non-reverted transaction.
const StatusSuccess uint64 = 1

// Receipt is a confirmed transaction.
type Receipt struct {
	Status      uint64 `json:"status"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Gateway sends state-changing transactions and read-only calls to the ledger.
type Gateway interface {
	// SubmitAndWait submits a transaction and returns once it is confirmed.
	SubmitAndWait(ctx context.Context, method string, args ...any) (*Receipt, error)
	// Call performs a read-only query and returns the raw JSON result.
	Call(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

var (
	// ErrReverted is wrapped when a confirmed transaction has a failure status.
	ErrReverted = errors.New("transaction reverted")
	// ErrReceiptTimeout is wrapped when no receipt arrived before the deadline.
	ErrReceiptTimeout = errors.New("receipt not available before deadline")
)

// Error wraps every ledger transport or transaction failure. TxHash is set when
// the transaction reached the ledger.
type Error struct {
	Method string
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger %s (tx %s): %v", e.Method, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger %s: %v", e.Method, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TxHashOf returns the transaction hash carried by a ledger error, if any.
func TxHashOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.TxHash
	}
	return ""
}
