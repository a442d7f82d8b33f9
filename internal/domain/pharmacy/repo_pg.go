package pharmacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

// -- Orders --

type orderRepoPG struct{ fallback db.Querier }

func NewOrderRepoPG(q db.Querier) OrderRepository { return &orderRepoPG{fallback: q} }

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

const orderCols = `id, appointment_id, patient_id, doctor_id, items, payment_status, order_status,
	completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.AppointmentID, &o.PatientID, &o.DoctorID, &o.Items, &o.PaymentStatus,
		&o.OrderStatus, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Items == nil {
		o.Items = []Item{}
	}
	return &o, nil
}

func (r *orderRepoPG) UpsertFromPlan(ctx context.Context, o *Order) error {
	saved, err := scanOrder(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO pharmacy_order (id, appointment_id, patient_id, doctor_id, items, payment_status, order_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (appointment_id) DO UPDATE SET
			items = EXCLUDED.items,
			updated_at = NOW()
		RETURNING `+orderCols,
		uuid.New(), o.AppointmentID, o.PatientID, o.DoctorID, o.Items, o.PaymentStatus, o.OrderStatus))
	if err != nil {
		return err
	}
	*o = *saved
	return nil
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM pharmacy_order WHERE id = $1`, id))
}

func (r *orderRepoPG) Complete(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `
		UPDATE pharmacy_order SET payment_status = 'Paid', order_status = 'Completed',
			completed_at = COALESCE(completed_at, NOW()), updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderCols, id))
}

func (r *orderRepoPG) List(ctx context.Context, f OrderFilter, limit, offset int) ([]*Order, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.OrderStatus != "" {
		where += fmt.Sprintf(` AND order_status = $%d`, idx)
		args = append(args, f.OrderStatus)
		idx++
	}
	if f.PaymentStatus != "" {
		where += fmt.Sprintf(` AND payment_status = $%d`, idx)
		args = append(args, f.PaymentStatus)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM pharmacy_order`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderCols + ` FROM pharmacy_order` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

// -- Inventory --

type inventoryRepoPG struct{ fallback db.Querier }

func NewInventoryRepoPG(q db.Querier) InventoryRepository { return &inventoryRepoPG{fallback: q} }

func (r *inventoryRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

const inventoryCols = `id, pharmacy_id, name, category, stock, cost_price, selling_price, expiry_date,
	manufacturer, status, created_at, updated_at`

func scanInventory(row pgx.Row) (*InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(&it.ID, &it.PharmacyID, &it.Name, &it.Category, &it.Stock, &it.CostPrice,
		&it.SellingPrice, &it.ExpiryDate, &it.Manufacturer, &it.Status, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *inventoryRepoPG) Create(ctx context.Context, it *InventoryItem) error {
	it.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_item (id, pharmacy_id, name, category, stock, cost_price, selling_price,
			expiry_date, manufacturer, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		it.ID, it.PharmacyID, it.Name, it.Category, it.Stock, it.CostPrice, it.SellingPrice,
		it.ExpiryDate, it.Manufacturer, it.Status,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
}

func (r *inventoryRepoPG) Update(ctx context.Context, it *InventoryItem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE inventory_item SET name = $2, category = $3, stock = $4, cost_price = $5,
			selling_price = $6, expiry_date = $7, manufacturer = $8, status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		it.ID, it.Name, it.Category, it.Stock, it.CostPrice, it.SellingPrice, it.ExpiryDate,
		it.Manufacturer, it.Status,
	).Scan(&it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	return err
}

func (r *inventoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return scanInventory(r.conn(ctx).QueryRow(ctx, `SELECT `+inventoryCols+` FROM inventory_item WHERE id = $1`, id))
}

func (r *inventoryRepoPG) ListByPharmacy(ctx context.Context, pharmacyID uuid.UUID, limit, offset int) ([]*InventoryItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM inventory_item WHERE pharmacy_id = $1`, pharmacyID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+inventoryCols+` FROM inventory_item
		WHERE pharmacy_id = $1 ORDER BY name LIMIT $2 OFFSET $3`, pharmacyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*InventoryItem
	for rows.Next() {
		it, err := scanInventory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *inventoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM inventory_item WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
