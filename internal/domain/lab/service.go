package lab

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
	"github.com/clinicdesk/clinicdesk/internal/domain/identity"
	"github.com/clinicdesk/clinicdesk/internal/domain/treatment"
	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/telemetry"
)

var (
	ErrRequestNotFound       = apperr.New(apperr.ErrNotFound, "lab request not found")
	ErrPaymentRequired       = apperr.New(apperr.ErrPaymentRequired, "mark payment as received before uploading the report")
	ErrReportAlreadyUploaded = apperr.New(apperr.ErrConflict, "the report for this request has already been uploaded")
)

// AppointmentDocuments appends a document to an appointment.
type AppointmentDocuments interface {
	AppendDocument(ctx context.Context, id uuid.UUID, doc booking.Document) error
}

// UserDirectory checks that an assigned lab is a lab account.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	requests RequestRepository
	appts    AppointmentDocuments
	users    UserDirectory
	files    blobstore.Store
	tx       db.TxRunner
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func NewService(requests RequestRepository, appts AppointmentDocuments, users UserDirectory,
	files blobstore.Store, tx db.TxRunner, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		requests: requests,
		appts:    appts,
		users:    users,
		files:    files,
		tx:       tx,
		metrics:  metrics,
		tracer:   telemetry.Tracer("lab"),
		logger:   logger.With().Str("component", "lab").Logger(),
	}
}

// UpsertFromPlan creates the appointment's lab request, or replaces the test
// names of the existing one, leaving payment and report state alone.
func (s *Service) UpsertFromPlan(ctx context.Context, o treatment.LabOrder) error {
	labID := o.LabID
	if labID != nil && s.users != nil {
		u, err := s.users.GetUser(ctx, *labID)
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			s.logger.Warn().
				Str("appointment_id", o.AppointmentID.String()).
				Str("lab_id", labID.String()).
				Msg("ignoring lab assignment to an unknown account")
			labID = nil
		case err != nil:
			return fmt.Errorf("look up assigned lab %s: %w", labID, err)
		case u.Role != auth.RoleLab:
			s.logger.Warn().
				Str("appointment_id", o.AppointmentID.String()).
				Str("lab_id", labID.String()).
				Str("role", string(u.Role)).
				Msg("ignoring lab assignment to a non-lab account")
			labID = nil
		}
	}
	lr := &Request{
		AppointmentID: o.AppointmentID,
		PatientID:     o.PatientID,
		DoctorID:      o.DoctorID,
		LabID:         labID,
		TestNames:     o.TestNames,
		TestStatus:    TestPending,
		ReportStatus:  ReportPending,
		PaymentStatus: PaymentPending,
		PaymentMode:   ModeNone,
	}
	if err := s.requests.UpsertFromPlan(ctx, lr); err != nil {
		return fmt.Errorf("upsert lab request: %w", err)
	}
	s.logger.Debug().Str("lab_request_id", lr.ID.String()).Strs("tests", lr.TestNames).Msg("lab request synced from plan")
	return nil
}

// visible reports whether p may act on lr. Labs see requests assigned to
// them and unassigned ones.
func visible(p auth.Principal, lr *Request) bool {
	switch {
	case p.Is(auth.RoleReception):
		return true
	case p.Role == auth.RoleLab:
		return lr.LabID == nil || *lr.LabID == p.UserID
	}
	return false
}

func (s *Service) load(ctx context.Context, p auth.Principal, id uuid.UUID) (*Request, error) {
	lr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(p, lr) {
		return nil, apperr.Forbidden("this lab request belongs to another lab")
	}
	return lr, nil
}

// UpdatePayment records payment. Any transition between the statuses is allowed.
func (s *Service) UpdatePayment(ctx context.Context, p auth.Principal, id uuid.UUID, u PaymentUpdate) (*Request, error) {
	if !validPaymentStatuses[u.PaymentStatus] {
		return nil, apperr.Newf(apperr.ErrValidation, "invalid payment status %q", u.PaymentStatus)
	}
	if !validPaymentModes[u.PaymentMode] {
		return nil, apperr.Newf(apperr.ErrValidation, "invalid payment mode %q", u.PaymentMode)
	}
	if u.Amount < 0 {
		return nil, apperr.Invalid("amount must not be negative")
	}
	if _, err := s.load(ctx, p, id); err != nil {
		return nil, err
	}
	if err := s.requests.UpdatePayment(ctx, id, u); err != nil {
		return nil, fmt.Errorf("update lab payment: %w", err)
	}
	s.metrics.ObserveFulfillment("lab", "payment_"+u.PaymentStatus)
	return s.requests.GetByID(ctx, id)
}

// UploadReport stores the report of a paid request, marks it done and adds it
// to the appointment's documents. Payment is checked on read and again by the
// conditional update, so a concurrent payment reversal wins.
func (s *Service) UploadReport(ctx context.Context, p auth.Principal, id uuid.UUID, up Upload) (lr *Request, err error) {
	ctx, span := telemetry.StartSpan(ctx, s.tracer, "lab.UploadReport", attribute.String("lab_request.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	if p.Role != auth.RoleLab && p.Role != auth.RoleAdmin {
		return nil, apperr.Forbidden("only labs can upload reports")
	}
	lr, err = s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if lr.PaymentStatus != PaymentPaid {
		return nil, ErrPaymentRequired
	}

	obj, err := s.files.Put(ctx, blobstore.File{Name: up.FileName, Content: up.Content},
		"lab-reports/"+lr.AppointmentID.String())
	s.metrics.ObserveUpload("lab_report", err)
	switch {
	case errors.Is(err, blobstore.ErrMissingFileName), errors.Is(err, blobstore.ErrFileTooLarge):
		return nil, apperr.Invalid(err.Error())
	case err != nil:
		return nil, apperr.Wrap(apperr.ErrStorage, "could not store the report", err)
	}

	now := time.Now().UTC()
	ref := FileRef{URL: obj.URL, StorageID: obj.StorageID, FileName: up.FileName, UploadedAt: now}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		updated, err := s.requests.AttachReport(ctx, id, ref)
		if err != nil {
			return err
		}
		lr = updated
		return s.appts.AppendDocument(ctx, lr.AppointmentID, booking.Document{
			URL:        obj.URL,
			StorageID:  obj.StorageID,
			Name:       "Lab Report: " + up.FileName,
			UploadedAt: now,
			Type:       booking.DocumentTypeLabReport,
		})
	})
	if err != nil {
		if errors.Is(err, ErrPaymentRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("attach lab report: %w", err)
	}

	s.metrics.ObserveFulfillment("lab", "report_uploaded")
	s.logger.Info().
		Str("lab_request_id", id.String()).
		Str("appointment_id", lr.AppointmentID.String()).
		Str("storage_id", obj.StorageID).
		Msg("lab report uploaded")
	return lr, nil
}

// UpdateTestStatus lets the lab mark work as started. DONE is reached only
// through UploadReport.
func (s *Service) UpdateTestStatus(ctx context.Context, p auth.Principal, id uuid.UUID, status string) (*Request, error) {
	if status != TestPending && status != TestInProgress {
		return nil, apperr.Newf(apperr.ErrValidation, "test status must be %s or %s", TestPending, TestInProgress)
	}
	if p.Role != auth.RoleLab && p.Role != auth.RoleAdmin {
		return nil, apperr.Forbidden("only labs can update test progress")
	}
	lr, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if lr.TestStatus == TestDone {
		return nil, ErrReportAlreadyUploaded
	}
	if err := s.requests.UpdateTestStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.metrics.ObserveFulfillment("lab", "test_"+status)
	lr.TestStatus = status
	return lr, nil
}

func (s *Service) GetRequest(ctx context.Context, p auth.Principal, id uuid.UUID) (*Request, error) {
	return s.load(ctx, p, id)
}

func (s *Service) ListRequests(ctx context.Context, p auth.Principal, f ListFilter, limit, offset int) ([]*Request, int, error) {
	switch {
	case p.Is(auth.RoleReception):
	case p.Role == auth.RoleLab:
		f.LabID = &p.UserID
	default:
		return nil, 0, apperr.Forbidden("you cannot list lab requests")
	}
	return s.requests.List(ctx, f, limit, offset)
}
