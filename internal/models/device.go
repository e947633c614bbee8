package models

import (
	"time"
)

// DeviceState is derived from the owner and plane references.
type DeviceState string

const (
	StateOrphan   DeviceState = "orphan"
	StateOwned    DeviceState = "owned"
	StateAssigned DeviceState = "assigned"
)

// Device is a telemetry unit. The token reported by the hardware is the
// primary key; owner and plane are both optional.
type Device struct {
	Token      string     `gorm:"primaryKey;size:64" json:"token"`
	OwnerID    *uint      `gorm:"index" json:"owner_id,omitempty"`
	PlaneID    *uint      `gorm:"index" json:"plane_id,omitempty"`
	Name       *string    `gorm:"size:100" json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`

	Plane *Plane `gorm:"foreignKey:PlaneID;constraint:OnDelete:SET NULL" json:"plane,omitempty"`
}

func (d *Device) State() DeviceState {
	switch {
	case d.OwnerID == nil:
		return StateOrphan
	case d.PlaneID == nil:
		return StateOwned
	default:
		return StateAssigned
	}
}

// OwnedBy reports whether the device belongs to userID.
func (d *Device) OwnedBy(userID uint) bool {
	return d.OwnerID != nil && *d.OwnerID == userID
}

// DisplayName returns the name if set.
func (d *Device) DisplayName() (string, bool) {
	if d.Name == nil || *d.Name == "" {
		return "", false
	}
	return *d.Name, true
}

// ShortToken renders a truncated token for places where the device has no name.
func ShortToken(token string) string {
	const n = 8
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
