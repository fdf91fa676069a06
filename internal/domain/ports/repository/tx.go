package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. The concrete type is infra-defined
// (pgx.Tx for Postgres); repositories must gracefully accept NoTX and run
// against the pool instead.
type Tx interface{}

// NoTX marks the non-transactional path.
var NoTX Tx

// TransactionManager executes fn inside one database transaction, passing the
// handle through so repositories called within fn share it. If fn returns an
// error the transaction is rolled back, otherwise committed. Every financial
// state transition in this system goes through it.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error

	// WithUserTx additionally takes a per-user advisory xact lock before
	// running fn, so all financial mutations for one user serialize across
	// process instances. This is the hard requirement for horizontal scaling;
	// the in-process keyed lock alone does not coordinate across processes.
	WithUserTx(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error
}
