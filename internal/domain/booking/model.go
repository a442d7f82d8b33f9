package booking

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true,
}

// ValidStatus reports whether s is an appointment status.
func ValidStatus(s string) bool { return validStatuses[s] }

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

var validPaymentStatuses = map[string]bool{
	PaymentPending: true, PaymentPaid: true, PaymentRefunded: true,
}

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time of day. Two appointments are on the
// same day when their Dates are equal.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return NewDate(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

type Medication struct {
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Document is a file reference shown on the appointment.
type Document struct {
	URL        string    `json:"url"`
	StorageID  string    `json:"storage_id"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
	Type       string    `json:"type,omitempty"`
}

const DocumentTypeLabReport = "lab_report"

type Appointment struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	PatientID     uuid.UUID    `db:"patient_id" json:"patient_id"`
	PatientName   string       `db:"patient_name" json:"patient_name"`
	DoctorID      uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	DoctorUserID  uuid.UUID    `db:"doctor_user_id" json:"doctor_user_id"`
	DoctorName    string       `db:"doctor_name" json:"doctor_name"`
	ServiceID     *uuid.UUID   `db:"service_id" json:"service_id,omitempty"`
	ServiceName   string       `db:"service_name" json:"service_name"`
	Amount        float64      `db:"amount" json:"amount"`
	Date          Date         `db:"appointment_date" json:"date"`
	Time          string       `db:"time_slot" json:"time"`
	Status        string       `db:"status" json:"status"`
	PaymentStatus string       `db:"payment_status" json:"payment_status"`
	Notes         string       `db:"notes" json:"notes"`
	Diagnosis     string       `db:"diagnosis" json:"diagnosis"`
	Prescription  string       `db:"prescription" json:"prescription"`
	LabTests      []string     `db:"lab_tests" json:"lab_tests"`
	DietPlan      []string     `db:"diet_plan" json:"diet_plan"`
	Medications   []Medication `db:"medications" json:"medications"`
	Documents     []Document   `db:"documents" json:"documents"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Active reports whether the appointment still holds its slot.
func (a *Appointment) Active() bool { return a.Status != StatusCancelled }

// BookRequest is the input to BookSlot. DoctorIdentifier may be a doctor
// record id, the doctor's user id, or a legacy id.
type BookRequest struct {
	DoctorIdentifier string     `json:"doctor_id" validate:"required"`
	Date             string     `json:"date" validate:"required"`
	Time             string     `json:"time" validate:"required"`
	ServiceID        *uuid.UUID `json:"service_id,omitempty"`
	ServiceName      string     `json:"service_name,omitempty"`
	Amount           *float64   `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Notes            string     `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

type PaymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid refunded"`
}

// ClinicalMirror is the copy of a treatment plan kept on the appointment.
// A non-empty Status also moves the appointment to that status.
type ClinicalMirror struct {
	Diagnosis    string
	Prescription string
	LabTests     []string
	DietPlan     []string
	Medications  []Medication
	Status       string
}

type ListFilter struct {
	PatientID    *uuid.UUID
	DoctorUserID *uuid.UUID
	Status       string
	Date         *Date
}
