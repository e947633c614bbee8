package models

import (
	"strings"
	"time"
)

// Plane is an aircraft registered by an owner. Tail numbers are unique per owner.
type Plane struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	OwnerID      uint      `gorm:"not null;uniqueIndex:idx_plane_owner_tail" json:"owner_id"`
	TailNumber   string    `gorm:"size:20;not null;uniqueIndex:idx_plane_owner_tail" json:"tail_number" validate:"required,max=20"`
	Model        *string   `gorm:"size:100" json:"model,omitempty" validate:"omitempty,max=100"`
	Manufacturer *string   `gorm:"size:100" json:"manufacturer,omitempty" validate:"omitempty,max=100"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeTailNumber trims and upper-cases a registration so "n123ab " and
// "N123AB" collide on the per-owner unique index.
func NormalizeTailNumber(tail string) string {
	return strings.ToUpper(strings.TrimSpace(tail))
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
