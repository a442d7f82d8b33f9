package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicdesk/clinicdesk/internal/domain/catalog"
	"github.com/clinicdesk/clinicdesk/internal/domain/identity"
	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

var (
	ErrSlotConflict        = apperr.New(apperr.ErrConflict, "this slot was just taken, please pick another time")
	ErrInvalidDate         = apperr.New(apperr.ErrValidation, "date must be a valid calendar date (YYYY-MM-DD)")
	ErrAppointmentNotFound = apperr.New(apperr.ErrNotFound, "appointment not found")
	ErrDoctorNotFound      = catalog.ErrDoctorNotFound
)

// ServiceCatalog looks up bookable services.
type ServiceCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Service, error)
}

// UserDirectory looks up the booking patient's display name.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	appts    AppointmentRepository
	doctors  catalog.DoctorResolver
	services ServiceCatalog
	users    UserDirectory
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func NewService(appts AppointmentRepository, doctors catalog.DoctorResolver, services ServiceCatalog,
	users UserDirectory, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		appts:    appts,
		doctors:  doctors,
		services: services,
		users:    users,
		metrics:  metrics,
		tracer:   telemetry.Tracer("booking"),
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// BookSlot creates a pending appointment for the calling patient. The
// application-level slot check gives a clean error in the common case; the
// active-slot index decides concurrent attempts.
func (s *Service) BookSlot(ctx context.Context, p auth.Principal, req BookRequest) (appt *Appointment, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "booking.BookSlot",
		attribute.String("doctor.identifier", req.DoctorIdentifier),
		attribute.String("slot.date", req.Date),
		attribute.String("slot.time", req.Time))
	defer func() {
		s.metrics.ObserveBooking(bookingOutcome(err))
		telemetry.EndSpan(span, err)
	}()

	if !p.Is(auth.RolePatient) {
		return nil, apperr.Forbidden("only patients can book appointments")
	}
	req.Time = strings.TrimSpace(req.Time)
	if strings.TrimSpace(req.DoctorIdentifier) == "" || strings.TrimSpace(req.Date) == "" || req.Time == "" {
		return nil, apperr.Invalid("please fill required fields: doctor, date and time")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if req.Amount != nil && *req.Amount < 0 {
		return nil, apperr.Invalid("amount must not be negative")
	}

	doctor, err := s.doctors.Resolve(ctx, req.DoctorIdentifier)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("doctor.id", doctor.ID.String()))

	existing, err := s.appts.FindActiveBySlot(ctx, doctor.ID, date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if existing != nil {
		return nil, ErrSlotConflict
	}

	appt = &Appointment{
		PatientID:     p.UserID,
		DoctorID:      doctor.ID,
		DoctorUserID:  doctor.UserID,
		DoctorName:    doctor.Name,
		ServiceID:     req.ServiceID,
		ServiceName:   req.ServiceName,
		Amount:        doctor.ConsultationFee,
		Date:          date,
		Time:          req.Time,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Notes:         req.Notes,
	}

	if req.ServiceID != nil {
		svc, err := s.services.GetByID(ctx, *req.ServiceID)
		if err != nil {
			return nil, err
		}
		if appt.ServiceName == "" {
			appt.ServiceName = svc.Name
		}
		appt.Amount = svc.Price
	}
	if req.Amount != nil {
		appt.Amount = *req.Amount
	}

	if s.users != nil {
		u, err := s.users.GetUser(ctx, p.UserID)
		switch {
		case err == nil:
			appt.PatientName = u.Name
		case errors.Is(err, identity.ErrUserNotFound):
			s.logger.Warn().Str("patient_id", p.UserID.String()).Msg("booking patient has no user record")
		default:
			return nil, fmt.Errorf("look up patient: %w", err)
		}
	}

	if err := s.appts.Create(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("date", date.String()).
		Str("time", appt.Time).
		Msg("slot booked")
	return appt, nil
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}

// CancelAppointment frees the slot. The owning doctor, the patient and
// reception may cancel; cancelling twice is a no-op.
func (s *Service) CancelAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canCancel(p, a) {
		return nil, apperr.Forbidden("you cannot cancel this appointment")
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	if err := s.appts.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	a.Status = StatusCancelled
	s.logger.Info().Str("appointment_id", id.String()).Str("by", string(p.Role)).Msg("appointment cancelled")
	return a, nil
}

func canCancel(p auth.Principal, a *Appointment) bool {
	switch {
	case p.Is(auth.RoleReception):
		return true
	case p.Role == auth.RoleDoctor:
		return a.DoctorUserID == p.UserID
	case p.Role == auth.RolePatient:
		return a.PatientID == p.UserID
	}
	return false
}

// RescheduleAppointment moves an active appointment to another slot of the
// same doctor under the same conflict rules as BookSlot.
func (s *Service) RescheduleAppointment(ctx context.Context, p auth.Principal, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	if !p.Is(auth.RoleReception) {
		return nil, apperr.Forbidden("only reception can reschedule appointments")
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	slot := strings.TrimSpace(req.Time)
	if slot == "" {
		return nil, apperr.Invalid("time is required")
	}

	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Active() {
		return nil, apperr.Invalid("a cancelled appointment cannot be rescheduled")
	}
	if a.Date.Equal(date.Time) && a.Time == slot {
		return a, nil
	}

	existing, err := s.appts.FindActiveBySlot(ctx, a.DoctorID, date, slot)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if existing != nil && existing.ID != a.ID {
		return nil, ErrSlotConflict
	}
	if err := s.appts.Reschedule(ctx, id, date, slot); err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
	a.Date = date
	a.Time = slot
	return a, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status string) (*Appointment, error) {
	if !p.Is(auth.RoleReception) {
		return nil, apperr.Forbidden("only reception can record appointment payments")
	}
	if !validPaymentStatuses[status] {
		return nil, apperr.Newf(apperr.ErrValidation, "invalid payment status %q", status)
	}
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.appts.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	a.PaymentStatus = status
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(p, a) {
		return nil, apperr.Forbidden("you cannot view this appointment")
	}
	return a, nil
}

// CanView reports whether p may read a. Patients and doctors see only their
// own appointments; the fulfillment roles and reception see all of them.
func CanView(p auth.Principal, a *Appointment) bool {
	switch {
	case p.Is(auth.RoleReception, auth.RoleLab, auth.RolePharmacy):
		return true
	case p.Role == auth.RoleDoctor:
		return a.DoctorUserID == p.UserID
	case p.Role == auth.RolePatient:
		return a.PatientID == p.UserID
	}
	return false
}

func (s *Service) ListAppointments(ctx context.Context, p auth.Principal, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	switch {
	case p.Is(auth.RoleReception):
	case p.Role == auth.RoleDoctor:
		f.DoctorUserID = &p.UserID
	case p.Role == auth.RolePatient:
		f.PatientID = &p.UserID
	default:
		return nil, 0, apperr.Forbidden("you cannot list appointments")
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, apperr.Newf(apperr.ErrValidation, "invalid status %q", f.Status)
	}
	return s.appts.List(ctx, f, limit, offset)
}
