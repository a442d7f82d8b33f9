package catalog

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	GetByLegacyID(ctx context.Context, legacyID string) (*Doctor, error)
}

type ServiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
}
