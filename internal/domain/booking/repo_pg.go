package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

// ActiveSlotIndex is the partial unique index that keeps one active
// appointment per doctor, date and time.
const ActiveSlotIndex = "appointment_active_slot_idx"

type appointmentRepoPG struct{ fallback db.Querier }

func NewAppointmentRepoPG(q db.Querier) AppointmentRepository {
	return &appointmentRepoPG{fallback: q}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

const apptCols = `id, patient_id, patient_name, doctor_id, doctor_user_id, doctor_name,
	service_id, service_name, amount, appointment_date, time_slot, status, payment_status,
	notes, diagnosis, prescription, lab_tests, diet_plan, medications, documents,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.DoctorID, &a.DoctorUserID, &a.DoctorName,
		&a.ServiceID, &a.ServiceName, &a.Amount, &a.Date, &a.Time, &a.Status, &a.PaymentStatus,
		&a.Notes, &a.Diagnosis, &a.Prescription, &a.LabTests, &a.DietPlan, &a.Medications, &a.Documents,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.LabTests = nonNil(a.LabTests)
	a.DietPlan = nonNil(a.DietPlan)
	a.Medications = nonNil(a.Medications)
	a.Documents = nonNil(a.Documents)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, patient_name, doctor_id, doctor_user_id, doctor_name,
			service_id, service_name, amount, appointment_date, time_slot, status, payment_status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.PatientName, a.DoctorID, a.DoctorUserID, a.DoctorName,
		a.ServiceID, a.ServiceName, a.Amount, a.Date, a.Time, a.Status, a.PaymentStatus, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, ActiveSlotIndex) {
		return ErrSlotConflict
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) FindActiveBySlot(ctx context.Context, doctorID uuid.UUID, date Date, slot string) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND appointment_date = $2 AND time_slot = $3 AND status <> 'cancelled'
		LIMIT 1`, doctorID, date, slot))
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, nil
	}
	return a, err
}

// exec runs an UPDATE and reports ErrAppointmentNotFound when no row matched.
func (r *appointmentRepoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.exec(ctx, `UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *appointmentRepoPG) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.exec(ctx, `UPDATE appointment SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *appointmentRepoPG) Reschedule(ctx context.Context, id uuid.UUID, date Date, slot string) error {
	err := r.exec(ctx, `
		UPDATE appointment SET appointment_date = $2, time_slot = $3, updated_at = NOW()
		WHERE id = $1`, id, date, slot)
	if db.IsUniqueViolation(err, ActiveSlotIndex) {
		return ErrSlotConflict
	}
	return err
}

func (r *appointmentRepoPG) MirrorPlan(ctx context.Context, id uuid.UUID, m ClinicalMirror) error {
	return r.exec(ctx, `
		UPDATE appointment SET diagnosis = $2, prescription = $3, lab_tests = $4, diet_plan = $5,
			medications = $6, status = COALESCE(NULLIF($7, ''), status), updated_at = NOW()
		WHERE id = $1`,
		id, m.Diagnosis, m.Prescription, nonNil(m.LabTests), nonNil(m.DietPlan), nonNil(m.Medications), m.Status)
}

func (r *appointmentRepoPG) AppendDocument(ctx context.Context, id uuid.UUID, doc Document) error {
	data, err := json.Marshal([]Document{doc})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return r.exec(ctx, `
		UPDATE appointment SET documents = documents || $2::jsonb, updated_at = NOW()
		WHERE id = $1`, id, data)
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorUserID != nil {
		where += fmt.Sprintf(` AND doctor_user_id = $%d`, idx)
		args = append(args, *f.DoctorUserID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Date != nil {
		where += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		args = append(args, *f.Date)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY appointment_date DESC, time_slot DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
