package lab

import (
	"io"
	"time"

	"github.com/google/uuid"
)

const (
	TestPending    = "PENDING"
	TestInProgress = "IN_PROGRESS"
	TestDone       = "DONE"

	ReportPending  = "PENDING"
	ReportUploaded = "UPLOADED"

	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"

	ModeCash   = "CASH"
	ModeOnline = "ONLINE"
	ModeUPI    = "UPI"
	ModeCard   = "CARD"
	ModeNone   = "NONE"
)

var (
	validPaymentStatuses = map[string]bool{PaymentPending: true, PaymentPaid: true}
	validPaymentModes    = map[string]bool{ModeCash: true, ModeOnline: true, ModeUPI: true, ModeCard: true, ModeNone: true}
)

// FileRef points at a stored report.
type FileRef struct {
	URL        string    `json:"url"`
	StorageID  string    `json:"storage_id"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Request is the lab work derived from one appointment's plan.
type Request struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	LabID         *uuid.UUID `db:"lab_id" json:"lab_id,omitempty"`
	TestNames     []string   `db:"test_names" json:"test_names"`
	TestStatus    string     `db:"test_status" json:"test_status"`
	ReportStatus  string     `db:"report_status" json:"report_status"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	PaymentMode   string     `db:"payment_mode" json:"payment_mode"`
	Amount        float64    `db:"amount" json:"amount"`
	ReportFile    *FileRef   `db:"report_file" json:"report_file,omitempty"`
	Notes         string     `db:"notes" json:"notes"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type PaymentUpdate struct {
	PaymentStatus string  `json:"payment_status" validate:"required,oneof=PENDING PAID"`
	PaymentMode   string  `json:"payment_mode" validate:"required,oneof=CASH ONLINE UPI CARD NONE"`
	Amount        float64 `json:"amount" validate:"gte=0"`
}

type StatusUpdate struct {
	TestStatus string `json:"test_status" validate:"required,oneof=PENDING IN_PROGRESS"`
}

// Upload is a report file on its way in.
type Upload struct {
	FileName string
	Content  io.Reader
}

type ListFilter struct {
	// LabID limits results to requests assigned to this lab or to none.
	LabID         *uuid.UUID
	TestStatus    string
	PaymentStatus string
}
