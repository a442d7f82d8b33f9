package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
)

type mockDoctorRepo struct {
	doctors []*Doctor
	calls   []string
	failOn  string
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.calls = append(m.calls, "id")
	if m.failOn == "id" {
		return nil, errors.New("connection refused")
	}
	for _, d := range m.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *mockDoctorRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Doctor, error) {
	m.calls = append(m.calls, "user")
	for _, d := range m.doctors {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *mockDoctorRepo) GetByLegacyID(_ context.Context, legacyID string) (*Doctor, error) {
	m.calls = append(m.calls, "legacy")
	for _, d := range m.doctors {
		if d.LegacyID != nil && *d.LegacyID == legacyID {
			return d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func strPtr(s string) *string { return &s }

func TestResolver_RecordIDWins(t *testing.T) {
	shared := uuid.New()
	byRecord := &Doctor{ID: shared, UserID: uuid.New(), Name: "Dr. Record"}
	byUser := &Doctor{ID: uuid.New(), UserID: shared, Name: "Dr. User"}
	repo := &mockDoctorRepo{doctors: []*Doctor{byUser, byRecord}}

	d, err := NewResolver(repo).Resolve(context.Background(), shared.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "Dr. Record" {
		t.Errorf("expected record id match first, got %s", d.Name)
	}
	if len(repo.calls) != 1 {
		t.Errorf("expected resolution to stop after first match, calls=%v", repo.calls)
	}
}

func TestResolver_FallsBackToUserID(t *testing.T) {
	d := &Doctor{ID: uuid.New(), UserID: uuid.New(), Name: "Dr. Owner"}
	repo := &mockDoctorRepo{doctors: []*Doctor{d}}

	got, err := NewResolver(repo).Resolve(context.Background(), d.UserID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != d.ID {
		t.Errorf("expected %s, got %s", d.ID, got.ID)
	}
	if len(repo.calls) != 2 || repo.calls[1] != "user" {
		t.Errorf("unexpected lookup order %v", repo.calls)
	}
}

func TestResolver_LegacyIDSkipsUUIDStrategies(t *testing.T) {
	d := &Doctor{ID: uuid.New(), UserID: uuid.New(), LegacyID: strPtr("D1"), Name: "Dr. Legacy"}
	repo := &mockDoctorRepo{doctors: []*Doctor{d}}

	got, err := NewResolver(repo).Resolve(context.Background(), "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != d.ID {
		t.Errorf("expected legacy match")
	}
	if len(repo.calls) != 1 || repo.calls[0] != "legacy" {
		t.Errorf("expected only the legacy lookup for a non-uuid identifier, got %v", repo.calls)
	}
}

func TestResolver_NotFound(t *testing.T) {
	repo := &mockDoctorRepo{}
	_, err := NewResolver(repo).Resolve(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
	if len(repo.calls) != 3 {
		t.Errorf("expected all three strategies tried, got %v", repo.calls)
	}
}

func TestResolver_EmptyIdentifier(t *testing.T) {
	_, err := NewResolver(&mockDoctorRepo{}).Resolve(context.Background(), "  ")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestResolver_StoreErrorStops(t *testing.T) {
	repo := &mockDoctorRepo{failOn: "id"}
	_, err := NewResolver(repo).Resolve(context.Background(), uuid.NewString())
	if err == nil || errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(repo.calls) != 1 {
		t.Errorf("expected resolution to stop on a store error, calls=%v", repo.calls)
	}
}
