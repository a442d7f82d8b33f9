package treatment

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/domain/booking"
)

// Attachment is a file stored against a plan. Attachments only accumulate;
// they leave the list through an explicit delete by ID.
type Attachment struct {
	ID         uuid.UUID `json:"id"`
	URL        string    `json:"url"`
	StorageID  string    `json:"storage_id"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Plan is the authoritative clinical record for one appointment.
type Plan struct {
	ID            uuid.UUID            `db:"id" json:"id"`
	AppointmentID uuid.UUID            `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID            `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID            `db:"doctor_id" json:"doctor_id"`
	Diagnosis     string               `db:"diagnosis" json:"diagnosis"`
	Prescription  string               `db:"prescription" json:"prescription"`
	LabTests      []string             `db:"lab_tests" json:"lab_tests"`
	DietPlan      []string             `db:"diet_plan" json:"diet_plan"`
	Medications   []booking.Medication `db:"medications" json:"medications"`
	Attachments   []Attachment         `db:"attachments" json:"attachments"`
	Version       int                  `db:"version" json:"version"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// Upload is a file arriving with a plan save.
type Upload struct {
	FileName string
	Content  io.Reader
}

// SaveRequest carries a plan save. The list fields hold their transport
// encoding (a JSON array, possibly itself JSON-quoted) and are parsed by
// SavePlan.
type SaveRequest struct {
	AppointmentID  uuid.UUID
	Diagnosis      string
	Prescription   string
	LabTestsRaw    string
	DietPlanRaw    string
	MedicationsRaw string
	LabID          *uuid.UUID
	Attachment     *Upload
	Status         string
}

// LabOrder is what a plan save asks the lab side to hold for an appointment.
type LabOrder struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	LabID         *uuid.UUID
	TestNames     []string
}

// PharmacyOrder is what a plan save asks the pharmacy side to dispense.
type PharmacyOrder struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	Items         []booking.Medication
}

// unquote unwraps a list that was JSON-encoded twice, as multipart clients
// tend to send it.
func unquote(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(raw), &inner); err == nil {
			return strings.TrimSpace(inner)
		}
	}
	return raw
}

// ParseStringList decodes a JSON array of strings, dropping blank entries.
// An empty input is an empty list.
func ParseStringList(raw string) ([]string, error) {
	raw = unquote(raw)
	if raw == "" || raw == "null" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []string{}, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

type medicationWire struct {
	Name          string `json:"name"`
	MedicineName  string `json:"medicineName"`
	MedicineName2 string `json:"medicine_name"`
	Frequency     string `json:"frequency"`
	Duration      string `json:"duration"`
}

// ParseMedications decodes a JSON array of medications. Each entry may name
// the drug as name, medicineName or medicine_name; entries with no name are
// dropped.
func ParseMedications(raw string) ([]booking.Medication, error) {
	raw = unquote(raw)
	if raw == "" || raw == "null" {
		return []booking.Medication{}, nil
	}
	var wire []medicationWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return []booking.Medication{}, err
	}
	out := make([]booking.Medication, 0, len(wire))
	for _, w := range wire {
		name := firstNonEmpty(w.Name, w.MedicineName, w.MedicineName2)
		if name == "" {
			continue
		}
		out = append(out, booking.Medication{
			Name:      name,
			Frequency: strings.TrimSpace(w.Frequency),
			Duration:  strings.TrimSpace(w.Duration),
		})
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
