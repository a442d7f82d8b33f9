package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

func TestWithTx_CommitsAndExposesTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointment").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	runner := NewTxRunner(mock)
	err = runner.WithTx(context.Background(), func(ctx context.Context) error {
		q := ConnFromContext(ctx)
		if q == nil {
			t.Fatal("expected transaction on context")
		}
		_, err := q.Exec(ctx, "UPDATE appointment SET status = 'completed'")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTxRunner(mock).WithTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	runner := NewTxRunner(mock)
	err = runner.WithTx(context.Background(), func(ctx context.Context) error {
		return runner.WithTx(ctx, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConnFromContext_Empty(t *testing.T) {
	if ConnFromContext(context.Background()) != nil {
		t.Error("expected nil without a connection")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "appointment_active_slot_idx"}
	wrapped := fmt.Errorf("insert appointment: %w", pgErr)

	if !IsUniqueViolation(wrapped, "appointment_active_slot_idx") {
		t.Error("expected match on constraint name")
	}
	if !IsUniqueViolation(wrapped, "") {
		t.Error("expected match without constraint filter")
	}
	if IsUniqueViolation(wrapped, "lab_request_appointment_id_key") {
		t.Error("expected no match on a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Error("plain error is not a unique violation")
	}
}
