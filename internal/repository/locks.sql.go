package repository

import (
	"context"
)

const acquireCustomerLock = `-- name: AcquireCustomerLock :exec
SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))
`

// AcquireCustomerLock serializes writers for one canonical customer key until
// the surrounding transaction ends. Outside a transaction it is released at
// statement end and protects nothing.
func (q *Queries) AcquireCustomerLock(ctx context.Context, customerKey string) error {
	_, err := q.db.Exec(ctx, acquireCustomerLock, customerKey)
	return err
}
