package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
)

// =========== Doctor Repository ===========

type doctorRepoPG struct{ fallback db.Querier }

func NewDoctorRepoPG(q db.Querier) DoctorRepository { return &doctorRepoPG{fallback: q} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

const doctorCols = `id, user_id, legacy_id, name, specialty, consultation_fee,
	availability, service_tags, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.LegacyID, &d.Name, &d.Specialty, &d.ConsultationFee,
		&d.Availability, &d.ServiceTags, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE user_id = $1`, userID))
}

func (r *doctorRepoPG) GetByLegacyID(ctx context.Context, legacyID string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE legacy_id = $1`, legacyID))
}

// =========== Service Repository ===========

type serviceRepoPG struct{ fallback db.Querier }

func NewServiceRepoPG(q db.Querier) ServiceRepository { return &serviceRepoPG{fallback: q} }

func (r *serviceRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.fallback
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	var s Service
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, price, created_at FROM service WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Price, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
