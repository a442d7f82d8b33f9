package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
)

var (
	ErrDoctorNotFound  = apperr.New(apperr.ErrNotFound, "doctor not found")
	ErrServiceNotFound = apperr.New(apperr.ErrNotFound, "service not found")
)

// DoctorResolver turns the identifier a client sent into a doctor record.
type DoctorResolver interface {
	Resolve(ctx context.Context, identifier string) (*Doctor, error)
}

// Strategy is one way of looking a doctor up. ok is false when the
// identifier cannot be used by this strategy at all.
type Strategy struct {
	Name   string
	Lookup func(ctx context.Context, identifier string) (d *Doctor, ok bool, err error)
}

// StrategyResolver tries its strategies in order and returns the first match.
type StrategyResolver struct {
	strategies []Strategy
}

// NewResolver looks doctors up by record id, then by owning user id, then by
// legacy id.
func NewResolver(doctors DoctorRepository) *StrategyResolver {
	return NewStrategyResolver(
		Strategy{Name: "record_id", Lookup: byUUID(doctors.GetByID)},
		Strategy{Name: "user_id", Lookup: byUUID(doctors.GetByUserID)},
		Strategy{Name: "legacy_id", Lookup: func(ctx context.Context, ident string) (*Doctor, bool, error) {
			d, err := doctors.GetByLegacyID(ctx, ident)
			return d, true, err
		}},
	)
}

func NewStrategyResolver(strategies ...Strategy) *StrategyResolver {
	return &StrategyResolver{strategies: strategies}
}

func byUUID(get func(context.Context, uuid.UUID) (*Doctor, error)) func(context.Context, string) (*Doctor, bool, error) {
	return func(ctx context.Context, ident string) (*Doctor, bool, error) {
		id, err := uuid.Parse(ident)
		if err != nil {
			return nil, false, nil
		}
		d, err := get(ctx, id)
		return d, true, err
	}
}

func (r *StrategyResolver) Resolve(ctx context.Context, identifier string) (*Doctor, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperr.Invalid("doctor is required")
	}
	for _, s := range r.strategies {
		d, ok, err := s.Lookup(ctx, identifier)
		if !ok || errors.Is(err, ErrDoctorNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve doctor by %s: %w", s.Name, err)
		}
		if d != nil {
			return d, nil
		}
	}
	return nil, ErrDoctorNotFound
}
