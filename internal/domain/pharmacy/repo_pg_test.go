package pharmacy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{"id", "appointment_id", "patient_id", "doctor_id", "items", "payment_status",
	"order_status", "completed_at", "created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestOrderRepoPG_UpsertFromPlan(t *testing.T) {
	mock := newMockPool(t)
	id, apptID := uuid.New(), uuid.New()
	items := []Item{{MedicineName: "Paracetamol"}}
	now := time.Now()

	o := &Order{AppointmentID: apptID, Items: items, PaymentStatus: PaymentPending, OrderStatus: OrderUpcoming}
	mock.ExpectQuery(`ON CONFLICT \(appointment_id\) DO UPDATE SET\s+items = EXCLUDED.items`).
		WithArgs(pgxmock.AnyArg(), apptID, o.PatientID, o.DoctorID, items, PaymentPending, OrderUpcoming).
		WillReturnRows(pgxmock.NewRows(orderColumns).AddRow(id, apptID, uuid.New(), uuid.New(), items,
			PaymentPaid, OrderCompleted, &now, now, now))

	require.NoError(t, NewOrderRepoPG(mock).UpsertFromPlan(context.Background(), o))
	assert.Equal(t, id, o.ID)
	assert.Equal(t, OrderCompleted, o.OrderStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoPG_Complete_NotFound(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectQuery(`UPDATE pharmacy_order SET payment_status = 'Paid', order_status = 'Completed'`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewOrderRepoPG(mock).Complete(context.Background(), id)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderRepoPG_List(t *testing.T) {
	mock := newMockPool(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pharmacy_order WHERE 1=1 AND order_status = \$1`).
		WithArgs(OrderUpcoming).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`LIMIT \$2 OFFSET \$3`).
		WithArgs(OrderUpcoming, 10, 0).
		WillReturnRows(pgxmock.NewRows(orderColumns).AddRow(uuid.New(), uuid.New(), uuid.New(), uuid.New(),
			[]Item(nil), PaymentPending, OrderUpcoming, (*time.Time)(nil), now, now))

	items, total, err := NewOrderRepoPG(mock).List(context.Background(), OrderFilter{OrderStatus: OrderUpcoming}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.NotNil(t, items[0].Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepoPG_Create(t *testing.T) {
	mock := newMockPool(t)
	pharmacyID := uuid.New()
	now := time.Now()
	it := &InventoryItem{PharmacyID: pharmacyID, Name: "Amoxicillin", Stock: 49, Status: LowStock}

	mock.ExpectQuery("INSERT INTO inventory_item").
		WithArgs(pgxmock.AnyArg(), pharmacyID, "Amoxicillin", "", 49, 0.0, 0.0, (*time.Time)(nil), "", LowStock).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, NewInventoryRepoPG(mock).Create(context.Background(), it))
	assert.NotEqual(t, uuid.Nil, it.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepoPG_Update_NotFound(t *testing.T) {
	mock := newMockPool(t)
	it := &InventoryItem{ID: uuid.New(), Name: "x"}
	mock.ExpectQuery("UPDATE inventory_item SET").
		WithArgs(it.ID, "x", "", 0, 0.0, 0.0, (*time.Time)(nil), "", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	err := NewInventoryRepoPG(mock).Update(context.Background(), it)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepoPG_Delete_NotFound(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectExec("DELETE FROM inventory_item").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewInventoryRepoPG(mock).Delete(context.Background(), id)
	assert.ErrorIs(t, err, ErrItemNotFound)
}
