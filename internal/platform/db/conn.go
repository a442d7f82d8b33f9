package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pools, pooled conns and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// TxStarter begins a transaction.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBConnKey   contextKey = "db_conn"
	txKey       contextKey = "db_tx"
)

// ConnFromContext returns the active transaction, else the clinic-scoped
// connection, else nil.
func ConnFromContext(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	if conn, ok := ctx.Value(DBConnKey).(Querier); ok {
		return conn
	}
	return nil
}

// WithConn stores a clinic-scoped connection on the context.
func WithConn(ctx context.Context, conn Querier) context.Context {
	return context.WithValue(ctx, DBConnKey, conn)
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txRunner struct {
	fallback TxStarter
}

// NewTxRunner returns a TxRunner that begins on the clinic connection found in
// the context, or on fallback when there is none.
func NewTxRunner(fallback TxStarter) TxRunner {
	return &txRunner{fallback: fallback}
}

func (r *txRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction.
	if _, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return fn(ctx)
	}

	starter := r.fallback
	if conn, ok := ctx.Value(DBConnKey).(TxStarter); ok {
		starter = conn
	}
	if starter == nil {
		return errors.New("no database handle for transaction")
	}

	tx, err := starter.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UniqueViolationCode is the SQLSTATE Postgres reports for unique_violation.
const UniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique violation, optionally
// restricted to one constraint or index name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != UniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
