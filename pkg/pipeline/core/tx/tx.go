// Package tx provides the transaction abstraction used by the ingestion and
// cascade layers. It exposes nested checkpoints (savepoints) so a batch can be
// rolled back as a unit without discarding the enclosing transaction.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines the write operations executable within a transaction.
type TxExecutor interface {
	// ExecuteInsert inserts the given model (a struct pointer or slice) into
	// tableName and returns the number of affected rows.
	ExecuteInsert(ctx context.Context, model interface{}, tableName string) (rowsAffected int64, err error)

	// ExecuteUpsert performs an INSERT ... ON CONFLICT on the given model.
	// conflictColumns detect the conflict; updateColumns are assigned on
	// conflict. An empty updateColumns list means DO NOTHING, which is how
	// first-write-wins master upserts are expressed.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction with savepoint support.
type Tx interface {
	TxExecutor

	// Savepoint creates a named savepoint within the current transaction.
	Savepoint(name string) error

	// RollbackToSavepoint rolls the transaction back to the named savepoint,
	// undoing changes made after it while preserving earlier ones.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	// Begin starts a new transaction. Optional sql.TxOptions control the
	// isolation level and read-only flag.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits the transaction, persisting all changes made within it.
	Commit(tx Tx) error
	// Rollback discards all changes made within the transaction.
	Rollback(tx Tx) error
}
