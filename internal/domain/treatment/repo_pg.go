package treatment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

type planRepoPG struct{ fallback db.Querier }

func NewPlanRepoPG(q db.Querier) PlanRepository { return &planRepoPG{fallback: q} }

func (r *planRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

const planCols = `id, appointment_id, patient_id, doctor_id, diagnosis, prescription,
	lab_tests, diet_plan, medications, attachments, version, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.AppointmentID, &p.PatientID, &p.DoctorID, &p.Diagnosis, &p.Prescription,
		&p.LabTests, &p.DietPlan, &p.Medications, &p.Attachments, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *planRepoPG) Save(ctx context.Context, p *Plan, added []Attachment) error {
	if added == nil {
		added = []Attachment{}
	}
	addedJSON, err := json.Marshal(added)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	saved, err := scanPlan(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatment_plan (id, appointment_id, patient_id, doctor_id, diagnosis, prescription,
			lab_tests, diet_plan, medications, attachments, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,1)
		ON CONFLICT (appointment_id) DO UPDATE SET
			diagnosis = EXCLUDED.diagnosis,
			prescription = EXCLUDED.prescription,
			lab_tests = EXCLUDED.lab_tests,
			diet_plan = EXCLUDED.diet_plan,
			medications = EXCLUDED.medications,
			attachments = treatment_plan.attachments || EXCLUDED.attachments,
			version = treatment_plan.version + 1,
			updated_at = NOW()
		RETURNING `+planCols,
		uuid.New(), p.AppointmentID, p.PatientID, p.DoctorID, p.Diagnosis, p.Prescription,
		p.LabTests, p.DietPlan, p.Medications, addedJSON))
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

func (r *planRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Plan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+planCols+` FROM treatment_plan WHERE appointment_id = $1`, appointmentID))
}

func (r *planRepoPG) RemoveAttachment(ctx context.Context, appointmentID, attachmentID uuid.UUID) (*Plan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx, `
		UPDATE treatment_plan SET
			attachments = COALESCE(
				(SELECT jsonb_agg(e.a ORDER BY e.ord)
				 FROM jsonb_array_elements(attachments) WITH ORDINALITY AS e(a, ord)
				 WHERE e.a->>'id' <> $2),
				'[]'::jsonb),
			updated_at = NOW()
		WHERE appointment_id = $1
		RETURNING `+planCols, appointmentID, attachmentID.String()))
}
