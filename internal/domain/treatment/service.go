package treatment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicdesk/clinicdesk/internal/domain/booking"
	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

var ErrPlanNotFound = apperr.New(apperr.ErrNotFound, "treatment plan not found")

type Service struct {
	plans    PlanRepository
	appts    AppointmentStore
	files    blobstore.Store
	tx       db.TxRunner
	lab      LabFanout
	pharmacy PharmacyFanout
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func NewService(plans PlanRepository, appts AppointmentStore, files blobstore.Store, tx db.TxRunner,
	lab LabFanout, pharmacy PharmacyFanout, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		plans:    plans,
		appts:    appts,
		files:    files,
		tx:       tx,
		lab:      lab,
		pharmacy: pharmacy,
		metrics:  metrics,
		tracer:   telemetry.Tracer("treatment"),
		logger:   logger.With().Str("component", "treatment").Logger(),
	}
}

func ownsAppointment(p auth.Principal, a *booking.Appointment) bool {
	return p.Role == auth.RoleDoctor && a.DoctorUserID == p.UserID
}

// SavePlan records the doctor's plan for an appointment. The plan upsert,
// the appointment mirror and the status change commit together; the lab and
// pharmacy records are derived afterwards and their failures do not fail the
// save.
func (s *Service) SavePlan(ctx context.Context, p auth.Principal, req SaveRequest) (plan *Plan, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "treatment.SavePlan",
		attribute.String("appointment.id", req.AppointmentID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	if req.Status != "" && !booking.ValidStatus(req.Status) {
		return nil, apperr.Newf(apperr.ErrValidation, "invalid status %q", req.Status)
	}

	appt, err := s.appts.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !ownsAppointment(p, appt) {
		return nil, apperr.Forbidden("only the appointment's doctor can save its treatment plan")
	}

	log := s.logger.With().Str("appointment_id", appt.ID.String()).Logger()

	var added []Attachment
	if req.Attachment != nil {
		att, err := s.storeAttachment(ctx, appt.ID, req.Attachment)
		if err != nil {
			return nil, err
		}
		added = append(added, *att)
	}

	labTests, err := ParseStringList(req.LabTestsRaw)
	if err != nil {
		log.Warn().Err(err).Str("field", "lab_tests").Msg("unparseable plan field treated as empty")
	}
	dietPlan, err := ParseStringList(req.DietPlanRaw)
	if err != nil {
		log.Warn().Err(err).Str("field", "diet_plan").Msg("unparseable plan field treated as empty")
	}
	medications, err := ParseMedications(req.MedicationsRaw)
	if err != nil {
		log.Warn().Err(err).Str("field", "medications").Msg("unparseable plan field treated as empty")
	}

	plan = &Plan{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Diagnosis:     req.Diagnosis,
		Prescription:  req.Prescription,
		LabTests:      labTests,
		DietPlan:      dietPlan,
		Medications:   medications,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.plans.Save(ctx, plan, added); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		mirror := booking.ClinicalMirror{
			Diagnosis:    plan.Diagnosis,
			Prescription: plan.Prescription,
			LabTests:     plan.LabTests,
			DietPlan:     plan.DietPlan,
			Medications:  plan.Medications,
			Status:       req.Status,
		}
		if err := s.appts.MirrorPlan(ctx, appt.ID, mirror); err != nil {
			return fmt.Errorf("mirror plan onto appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fanOut(ctx, log, appt, req.LabID, labTests, medications)

	log.Info().Int("version", plan.Version).Int("attachments", len(plan.Attachments)).Msg("treatment plan saved")
	return plan, nil
}

func (s *Service) storeAttachment(ctx context.Context, appointmentID uuid.UUID, up *Upload) (*Attachment, error) {
	obj, err := s.files.Put(ctx, blobstore.File{Name: up.FileName, Content: up.Content},
		"treatment-plans/"+appointmentID.String())
	s.metrics.ObserveUpload("plan_attachment", err)
	switch {
	case errors.Is(err, blobstore.ErrMissingFileName), errors.Is(err, blobstore.ErrFileTooLarge):
		return nil, apperr.Invalid(err.Error())
	case err != nil:
		return nil, apperr.Wrap(apperr.ErrStorage, "could not store the attachment", err)
	}
	return &Attachment{
		ID:         uuid.New(),
		URL:        obj.URL,
		StorageID:  obj.StorageID,
		FileName:   up.FileName,
		UploadedAt: time.Now().UTC(),
	}, nil
}

func (s *Service) fanOut(ctx context.Context, log zerolog.Logger, appt *booking.Appointment,
	labID *uuid.UUID, labTests []string, medications []booking.Medication) {
	if len(labTests) > 0 && s.lab != nil {
		err := s.lab.UpsertFromPlan(ctx, LabOrder{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			LabID:         labID,
			TestNames:     labTests,
		})
		if err != nil {
			s.metrics.ObserveFanoutFailure("lab")
			log.Error().Err(err).Str("target", "lab").Msg("lab request fan-out failed")
		}
	}
	if len(medications) > 0 && s.pharmacy != nil {
		err := s.pharmacy.UpsertFromPlan(ctx, PharmacyOrder{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			Items:         medications,
		})
		if err != nil {
			s.metrics.ObserveFanoutFailure("pharmacy")
			log.Error().Err(err).Str("target", "pharmacy").Msg("pharmacy order fan-out failed")
		}
	}
}

// DeletePlanFile drops one attachment from the plan. Deleting an attachment
// that is already gone returns the plan unchanged. The stored file is kept.
func (s *Service) DeletePlanFile(ctx context.Context, p auth.Principal, appointmentID, fileID uuid.UUID) (*Plan, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !ownsAppointment(p, appt) {
		return nil, apperr.Forbidden("only the appointment's doctor can edit its treatment plan")
	}
	plan, err := s.plans.RemoveAttachment(ctx, appointmentID, fileID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Str("file_id", fileID.String()).
		Msg("plan attachment removed")
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, p auth.Principal, appointmentID uuid.UUID) (*Plan, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !booking.CanView(p, appt) {
		return nil, apperr.Forbidden("you cannot view this treatment plan")
	}
	return s.plans.GetByAppointment(ctx, appointmentID)
}
