package lab

import (
	"context"

	"github.com/google/uuid"
)

type RequestRepository interface {
	// UpsertFromPlan inserts r with its pending defaults, or, when the
	// appointment already has a request, replaces only its test names. r is
	// refreshed from the stored row.
	UpsertFromPlan(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, u PaymentUpdate) error
	UpdateTestStatus(ctx context.Context, id uuid.UUID, status string) error
	// AttachReport records the report only while the request is paid and
	// returns ErrPaymentRequired otherwise.
	AttachReport(ctx context.Context, id uuid.UUID, ref FileRef) (*Request, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Request, int, error)
}
