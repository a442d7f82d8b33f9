package catalog

import (
	"time"

	"github.com/google/uuid"
)

// WeeklySlot lists the slot labels a doctor offers on one weekday. It is
// shown to patients when picking a time and is not enforced at booking.
type WeeklySlot struct {
	Weekday string   `json:"weekday"`
	Times   []string `json:"times"`
}

type Doctor struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	UserID          uuid.UUID    `db:"user_id" json:"user_id"`
	LegacyID        *string      `db:"legacy_id" json:"legacy_id,omitempty"`
	Name            string       `db:"name" json:"name"`
	Specialty       string       `db:"specialty" json:"specialty"`
	ConsultationFee float64      `db:"consultation_fee" json:"consultation_fee"`
	Availability    []WeeklySlot `db:"availability" json:"availability"`
	ServiceTags     []string     `db:"service_tags" json:"service_tags"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// Service is a bookable offering with its list price.
type Service struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     float64   `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
