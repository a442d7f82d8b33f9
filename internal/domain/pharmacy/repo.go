package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type OrderRepository interface {
	// UpsertFromPlan inserts o with its defaults, or replaces only the items
	// of the appointment's existing order. o is refreshed from the stored row.
	UpsertFromPlan(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Complete(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f OrderFilter, limit, offset int) ([]*Order, int, error)
}

type InventoryRepository interface {
	Create(ctx context.Context, it *InventoryItem) error
	Update(ctx context.Context, it *InventoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID, limit, offset int) ([]*InventoryItem, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
