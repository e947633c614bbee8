package models

import (
	"time"
)

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

func (s SessionStatus) Valid() bool {
	return s == SessionOpen || s == SessionClosed
}

// Session is one engine-on to engine-off interval reported by a device.
// RunSeconds only grows while the session is open and is final once closed.
type Session struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	DeviceToken  string        `gorm:"size:64;not null;index:idx_session_device_start" json:"device_token"`
	SessionStart time.Time     `gorm:"not null;index:idx_session_device_start" json:"session_start"`
	RunSeconds   int64         `gorm:"not null;default:0" json:"run_seconds"`
	LastUpdate   *time.Time    `json:"last_update,omitempty"`
	Status       SessionStatus `gorm:"size:10;not null;default:open;index" json:"status"`
	MessageID    string        `gorm:"size:64;uniqueIndex;not null" json:"message_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`

	Device Device `gorm:"foreignKey:DeviceToken;references:Token" json:"-"`
}

func (s *Session) IsOpen() bool {
	return s.Status == SessionOpen
}

func (s *Session) IsClosed() bool {
	return s.Status == SessionClosed
}

// ReportReceipt remembers an accepted telemetry message so a replay of any
// earlier message id is recognised, not only the latest one on the session.
type ReportReceipt struct {
	MessageID   string    `gorm:"primaryKey;size:64" json:"message_id"`
	DeviceToken string    `gorm:"size:64;not null;index" json:"device_token"`
	SessionID   uint      `gorm:"index" json:"session_id"`
	ReportedAt  time.Time `gorm:"not null" json:"reported_at"`
	CreatedAt   time.Time `json:"created_at"`
}
