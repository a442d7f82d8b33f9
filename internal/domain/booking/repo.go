package booking

import (
	"context"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	// Create fails with ErrSlotConflict when another active appointment
	// already holds the same doctor, date and time.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// FindActiveBySlot returns nil, nil when the slot is free.
	FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date Date, slot string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error
	Reschedule(ctx context.Context, id uuid.UUID, date Date, slot string) error
	MirrorPlan(ctx context.Context, id uuid.UUID, m ClinicalMirror) error
	AppendDocument(ctx context.Context, id uuid.UUID, doc Document) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}
