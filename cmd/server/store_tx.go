package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "vcanchor/pkg/domain-errors"
	txcontext "vcanchor/pkg/platform/tx"
)

const defaultStoreTxTimeout = 5 * time.Second

// postgresStoreTx bounds the approval transaction so a stuck database cannot
// pin a connection for the lifetime of the request.
type postgresStoreTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresStoreTx(db *sql.DB) *postgresStoreTx {
	return &postgresStoreTx{db: db}
}

func (t *postgresStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultStoreTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return txcontext.RunInTx(ctx, t.db, fn)
}
