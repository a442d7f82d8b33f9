package pharmacy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/treatment"
	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

var (
	ErrOrderNotFound = apperr.New(apperr.ErrNotFound, "pharmacy order not found")
	ErrItemNotFound  = apperr.New(apperr.ErrNotFound, "inventory item not found")
)

type Service struct {
	orders    OrderRepository
	inventory InventoryRepository
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

func NewService(orders OrderRepository, inventory InventoryRepository, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		orders:    orders,
		inventory: inventory,
		metrics:   metrics,
		logger:    logger.With().Str("component", "pharmacy").Logger(),
	}
}

// UpsertFromPlan creates the appointment's order, or replaces the items of
// the existing one, leaving payment and order status alone.
func (s *Service) UpsertFromPlan(ctx context.Context, po treatment.PharmacyOrder) error {
	items := make([]Item, 0, len(po.Items))
	for _, m := range po.Items {
		items = append(items, Item{MedicineName: m.Name, Frequency: m.Frequency, Duration: m.Duration})
	}
	o := &Order{
		AppointmentID: po.AppointmentID,
		PatientID:     po.PatientID,
		DoctorID:      po.DoctorID,
		Items:         items,
		PaymentStatus: PaymentPending,
		OrderStatus:   OrderUpcoming,
	}
	if err := s.orders.UpsertFromPlan(ctx, o); err != nil {
		return fmt.Errorf("upsert pharmacy order: %w", err)
	}
	s.logger.Debug().Str("order_id", o.ID.String()).Int("items", len(o.Items)).Msg("pharmacy order synced from plan")
	return nil
}

// CompleteOrder marks an order paid and completed. There is no payment
// precondition.
func (s *Service) CompleteOrder(ctx context.Context, p auth.Principal, id uuid.UUID) (*Order, error) {
	if !p.Is(auth.RolePharmacy) {
		return nil, apperr.Forbidden("only the pharmacy can complete orders")
	}
	o, err := s.orders.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveFulfillment("pharmacy", "completed")
	s.logger.Info().Str("order_id", id.String()).Str("appointment_id", o.AppointmentID.String()).Msg("pharmacy order completed")
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, p auth.Principal, id uuid.UUID) (*Order, error) {
	if !p.Is(auth.RolePharmacy, auth.RoleReception) {
		return nil, apperr.Forbidden("you cannot view pharmacy orders")
	}
	return s.orders.GetByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, p auth.Principal, f OrderFilter, limit, offset int) ([]*Order, int, error) {
	if !p.Is(auth.RolePharmacy, auth.RoleReception) {
		return nil, 0, apperr.Forbidden("you cannot list pharmacy orders")
	}
	if f.OrderStatus != "" && !validOrderStatuses[f.OrderStatus] {
		return nil, 0, apperr.Newf(apperr.ErrValidation, "invalid order status %q", f.OrderStatus)
	}
	return s.orders.List(ctx, f, limit, offset)
}

// AddInventoryItem creates an item for the calling pharmacy, or updates one it
// owns when in.ID is set. Status is always recomputed from stock.
func (s *Service) AddInventoryItem(ctx context.Context, p auth.Principal, in ItemInput) (*InventoryItem, error) {
	if p.Role != auth.RolePharmacy {
		return nil, apperr.Forbidden("only pharmacies keep inventory")
	}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, apperr.Invalid("name is required")
	case in.Stock < 0:
		return nil, apperr.Invalid("stock must not be negative")
	case in.CostPrice < 0 || in.SellingPrice < 0:
		return nil, apperr.Invalid("prices must not be negative")
	}

	it := &InventoryItem{
		PharmacyID:   p.UserID,
		Name:         name,
		Category:     strings.TrimSpace(in.Category),
		Stock:        int(in.Stock),
		CostPrice:    float64(in.CostPrice),
		SellingPrice: float64(in.SellingPrice),
		ExpiryDate:   in.ExpiryDate.Ptr(),
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Status:       StockStatus(int(in.Stock)),
	}

	if in.ID == nil {
		if err := s.inventory.Create(ctx, it); err != nil {
			return nil, fmt.Errorf("create inventory item: %w", err)
		}
		return it, nil
	}

	existing, err := s.ownedItem(ctx, p, *in.ID)
	if err != nil {
		return nil, err
	}
	it.ID = existing.ID
	it.CreatedAt = existing.CreatedAt
	if err := s.inventory.Update(ctx, it); err != nil {
		return nil, fmt.Errorf("update inventory item: %w", err)
	}
	if it.Status != existing.Status {
		s.logger.Info().Str("item_id", it.ID.String()).Str("from", existing.Status).Str("to", it.Status).Msg("inventory status changed")
	}
	return it, nil
}

func (s *Service) ownedItem(ctx context.Context, p auth.Principal, id uuid.UUID) (*InventoryItem, error) {
	it, err := s.inventory.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.PharmacyID != p.UserID {
		return nil, apperr.Forbidden("this item belongs to another pharmacy")
	}
	return it, nil
}

func (s *Service) ListInventory(ctx context.Context, p auth.Principal, limit, offset int) ([]*InventoryItem, int, error) {
	if p.Role != auth.RolePharmacy {
		return nil, 0, apperr.Forbidden("only pharmacies keep inventory")
	}
	return s.inventory.ListByPharmacy(ctx, p.UserID, limit, offset)
}

func (s *Service) DeleteInventoryItem(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if _, err := s.ownedItem(ctx, p, id); err != nil {
		return err
	}
	return s.inventory.Delete(ctx, id)
}
