package lab

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

var requestColumns = []string{"id", "appointment_id", "patient_id", "doctor_id", "lab_id", "test_names",
	"test_status", "report_status", "payment_status", "payment_mode", "amount", "report_file", "notes",
	"created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func requestRow(id, apptID uuid.UUID, tests []string, payment string, ref *FileRef) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(requestColumns).AddRow(id, apptID, uuid.New(), uuid.New(), (*uuid.UUID)(nil), tests,
		TestPending, ReportPending, payment, ModeNone, 0.0, ref, "", now, now)
}

func TestRequestRepoPG_UpsertFromPlan(t *testing.T) {
	mock := newMockPool(t)
	id, apptID := uuid.New(), uuid.New()
	lr := &Request{AppointmentID: apptID, TestNames: []string{"CBC"}, TestStatus: TestPending,
		ReportStatus: ReportPending, PaymentStatus: PaymentPending, PaymentMode: ModeNone}

	mock.ExpectQuery(`ON CONFLICT \(appointment_id\) DO UPDATE SET\s+test_names = EXCLUDED.test_names`).
		WithArgs(pgxmock.AnyArg(), apptID, lr.PatientID, lr.DoctorID, lr.LabID, []string{"CBC"},
			TestPending, ReportPending, PaymentPending, ModeNone, 0.0, "").
		WillReturnRows(requestRow(id, apptID, []string{"CBC"}, PaymentPaid, nil))

	require.NoError(t, NewRequestRepoPG(mock).UpsertFromPlan(context.Background(), lr))
	assert.Equal(t, id, lr.ID)
	// The stored payment wins over the defaults sent with the insert.
	assert.Equal(t, PaymentPaid, lr.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepoPG_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM lab_request WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := NewRequestRepoPG(mock).GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRequestRepoPG_UpdatePayment_NotFound(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE lab_request SET payment_status").
		WithArgs(id, PaymentPaid, ModeCard, 300.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewRequestRepoPG(mock).UpdatePayment(context.Background(), id,
		PaymentUpdate{PaymentStatus: PaymentPaid, PaymentMode: ModeCard, Amount: 300})
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRequestRepoPG_UpdateTestStatus_AfterReport(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE lab_request SET test_status").
		WithArgs(id, TestInProgress).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewRequestRepoPG(mock).UpdateTestStatus(context.Background(), id, TestInProgress)
	assert.ErrorIs(t, err, ErrReportAlreadyUploaded)
}

func TestRequestRepoPG_AttachReport(t *testing.T) {
	mock := newMockPool(t)
	id, apptID := uuid.New(), uuid.New()
	ref := FileRef{URL: "https://files.test/r.pdf", StorageID: "lab-reports/r.pdf", FileName: "r.pdf"}

	mock.ExpectQuery(`UPDATE lab_request SET report_file = \$2.+payment_status = 'PAID'`).
		WithArgs(id, ref).
		WillReturnRows(requestRow(id, apptID, []string{"CBC"}, PaymentPaid, &ref))

	lr, err := NewRequestRepoPG(mock).AttachReport(context.Background(), id, ref)
	require.NoError(t, err)
	require.NotNil(t, lr.ReportFile)
	assert.Equal(t, "r.pdf", lr.ReportFile.FileName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepoPG_AttachReport_Unpaid(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectQuery("UPDATE lab_request SET report_file").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewRequestRepoPG(mock).AttachReport(context.Background(), id, FileRef{FileName: "r.pdf"})
	assert.ErrorIs(t, err, ErrPaymentRequired)
}

func TestRequestRepoPG_List_LabScope(t *testing.T) {
	mock := newMockPool(t)
	labID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lab_request WHERE 1=1 AND \(lab_id = \$1 OR lab_id IS NULL\) AND test_status = \$2`).
		WithArgs(labID, TestPending).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(labID, TestPending, 20, 0).
		WillReturnRows(requestRow(uuid.New(), uuid.New(), []string{"CBC"}, PaymentPending, nil))

	items, total, err := NewRequestRepoPG(mock).List(context.Background(),
		ListFilter{LabID: &labID, TestStatus: TestPending}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
