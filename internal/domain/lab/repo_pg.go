package lab

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

type requestRepoPG struct{ fallback db.Querier }

func NewRequestRepoPG(q db.Querier) RequestRepository { return &requestRepoPG{fallback: q} }

func (r *requestRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

const requestCols = `id, appointment_id, patient_id, doctor_id, lab_id, test_names, test_status,
	report_status, payment_status, payment_mode, amount, report_file, notes, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var lr Request
	err := row.Scan(&lr.ID, &lr.AppointmentID, &lr.PatientID, &lr.DoctorID, &lr.LabID, &lr.TestNames,
		&lr.TestStatus, &lr.ReportStatus, &lr.PaymentStatus, &lr.PaymentMode, &lr.Amount, &lr.ReportFile,
		&lr.Notes, &lr.CreatedAt, &lr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

func (r *requestRepoPG) UpsertFromPlan(ctx context.Context, lr *Request) error {
	saved, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_request (id, appointment_id, patient_id, doctor_id, lab_id, test_names,
			test_status, report_status, payment_status, payment_mode, amount, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (appointment_id) DO UPDATE SET
			test_names = EXCLUDED.test_names,
			updated_at = NOW()
		RETURNING `+requestCols,
		uuid.New(), lr.AppointmentID, lr.PatientID, lr.DoctorID, lr.LabID, lr.TestNames,
		lr.TestStatus, lr.ReportStatus, lr.PaymentStatus, lr.PaymentMode, lr.Amount, lr.Notes))
	if err != nil {
		return err
	}
	*lr = *saved
	return nil
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM lab_request WHERE id = $1`, id))
}

func (r *requestRepoPG) UpdatePayment(ctx context.Context, id uuid.UUID, u PaymentUpdate) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_request SET payment_status = $2, payment_mode = $3, amount = $4, updated_at = NOW()
		WHERE id = $1`, id, u.PaymentStatus, u.PaymentMode, u.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (r *requestRepoPG) UpdateTestStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_request SET test_status = $2, updated_at = NOW()
		WHERE id = $1 AND test_status <> 'DONE'`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReportAlreadyUploaded
	}
	return nil
}

func (r *requestRepoPG) AttachReport(ctx context.Context, id uuid.UUID, ref FileRef) (*Request, error) {
	lr, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		UPDATE lab_request SET report_file = $2, report_status = 'UPLOADED', test_status = 'DONE',
			updated_at = NOW()
		WHERE id = $1 AND payment_status = 'PAID'
		RETURNING `+requestCols, id, ref))
	if errors.Is(err, ErrRequestNotFound) {
		return nil, ErrPaymentRequired
	}
	return lr, err
}

func (r *requestRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Request, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.LabID != nil {
		where += fmt.Sprintf(` AND (lab_id = $%d OR lab_id IS NULL)`, idx)
		args = append(args, *f.LabID)
		idx++
	}
	if f.TestStatus != "" {
		where += fmt.Sprintf(` AND test_status = $%d`, idx)
		args = append(args, f.TestStatus)
		idx++
	}
	if f.PaymentStatus != "" {
		where += fmt.Sprintf(` AND payment_status = $%d`, idx)
		args = append(args, f.PaymentStatus)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_request`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + requestCols + ` FROM lab_request` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		lr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lr)
	}
	return items, total, rows.Err()
}
