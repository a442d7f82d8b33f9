package pharmacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PaymentPending = "Pending"
	PaymentPaid    = "Paid"

	OrderUpcoming  = "Upcoming"
	OrderCompleted = "Completed"
	OrderCancelled = "Cancelled"
)

var validOrderStatuses = map[string]bool{OrderUpcoming: true, OrderCompleted: true, OrderCancelled: true}

// Item is one medication line of an order.
type Item struct {
	MedicineName string `json:"medicine_name"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
}

// Order is the dispensing work derived from one appointment's plan.
type Order struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Items         []Item     `db:"items" json:"items"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	OrderStatus   string     `db:"order_status" json:"order_status"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type OrderFilter struct {
	OrderStatus   string
	PaymentStatus string
}

// Stock statuses.
const (
	InStock    = "In Stock"
	LowStock   = "Low Stock"
	OutOfStock = "Out of Stock"
)

// LowStockThreshold is the first stock level considered healthy.
const LowStockThreshold = 50

// StockStatus derives an item's status from its stock level.
func StockStatus(stock int) string {
	switch {
	case stock <= 0:
		return OutOfStock
	case stock < LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}

// InventoryItem is a stock record owned by one pharmacy account.
type InventoryItem struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PharmacyID   uuid.UUID  `db:"pharmacy_id" json:"pharmacy_id"`
	Name         string     `db:"name" json:"name"`
	Category     string     `db:"category" json:"category"`
	Stock        int        `db:"stock" json:"stock"`
	CostPrice    float64    `db:"cost_price" json:"cost_price"`
	SellingPrice float64    `db:"selling_price" json:"selling_price"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	Manufacturer string     `db:"manufacturer" json:"manufacturer"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ItemInput is an inventory save as submitted. Numbers and dates may arrive
// as strings from form posts.
type ItemInput struct {
	ID           *uuid.UUID `json:"id,omitempty" form:"id"`
	Name         string     `json:"name" form:"name" validate:"required"`
	Category     string     `json:"category" form:"category"`
	Stock        FlexInt    `json:"stock" form:"stock"`
	CostPrice    FlexFloat  `json:"cost_price" form:"cost_price"`
	SellingPrice FlexFloat  `json:"selling_price" form:"selling_price"`
	ExpiryDate   FlexDate   `json:"expiry_date" form:"expiry_date"`
	Manufacturer string     `json:"manufacturer" form:"manufacturer"`
}

// trimJSONString returns the contents of a JSON string literal, or the raw
// text for any other token.
func trimJSONString(b []byte) (string, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	if string(b) == "null" {
		return "", nil
	}
	return string(b), nil
}

// FlexInt accepts 12, 12.0, "12" or "" (zero).
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s, err := trimJSONString(b)
	if err != nil {
		return err
	}
	return n.UnmarshalParam(s)
}

func (n *FlexInt) UnmarshalParam(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		*n = FlexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return fmt.Errorf("%q is not a whole number", s)
	}
	*n = FlexInt(int(f))
	return nil
}

// FlexFloat accepts 9.5, "9.5" or "" (zero).
type FlexFloat float64

func (n *FlexFloat) UnmarshalJSON(b []byte) error {
	s, err := trimJSONString(b)
	if err != nil {
		return err
	}
	return n.UnmarshalParam(s)
}

func (n *FlexFloat) UnmarshalParam(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	*n = FlexFloat(f)
	return nil
}

// FlexDate accepts "2006-01-02", an RFC 3339 timestamp or "" (unset).
type FlexDate struct {
	Time  time.Time
	Valid bool
}

func (d *FlexDate) UnmarshalJSON(b []byte) error {
	s, err := trimJSONString(b)
	if err != nil {
		return err
	}
	return d.UnmarshalParam(s)
}

func (d *FlexDate) UnmarshalParam(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = FlexDate{}
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = FlexDate{Time: t.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("%q is not a date", s)
}

// Ptr returns the date, or nil when unset.
func (d FlexDate) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}
