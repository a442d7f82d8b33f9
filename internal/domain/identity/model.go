package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

// User is one login. A user row carries exactly one role, so each principal
// has at most one credential.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email" validate:"required,email"`
	Name      string    `db:"name" json:"name" validate:"required"`
	Role      auth.Role `db:"role" json:"role" validate:"required"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Principal returns the authenticated identity for u.
func (u *User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Role: u.Role}
}
