package treatment

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/domain/booking"
)

type PlanRepository interface {
	// Save creates the plan for p.AppointmentID or overwrites its clinical
	// fields, appending added to the stored attachments. It fills in the
	// stored ID, attachment list, version and timestamps.
	Save(ctx context.Context, p *Plan, added []Attachment) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Plan, error)
	// RemoveAttachment succeeds whether or not the attachment is present.
	RemoveAttachment(ctx context.Context, appointmentID, attachmentID uuid.UUID) (*Plan, error)
}

// AppointmentStore is the part of the booking store plans read and mirror into.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	MirrorPlan(ctx context.Context, id uuid.UUID, m booking.ClinicalMirror) error
}

// LabFanout keeps the lab request for an appointment in line with its plan.
type LabFanout interface {
	UpsertFromPlan(ctx context.Context, o LabOrder) error
}

// PharmacyFanout keeps the pharmacy order for an appointment in line with its plan.
type PharmacyFanout interface {
	UpsertFromPlan(ctx context.Context, o PharmacyOrder) error
}
