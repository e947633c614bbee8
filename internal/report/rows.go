// Package report renders session data for tables, dashboards and CSV export.
package report

import (
	"time"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/stats"
)

const (
	UnassignedPlane = "Unassigned"
	UnknownPlane    = "Unknown plane"
)

// Filter narrows the session set before anything is aggregated or exported.
type Filter struct {
	DeviceToken string               `json:"device_token,omitempty"`
	Status      models.SessionStatus `json:"status,omitempty"`
}

func (f Filter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return apperrors.Validation("invalid status filter", "status must be one of [open closed]")
	}
	return nil
}

func (f Filter) Match(s models.Session) bool {
	if f.DeviceToken != "" && s.DeviceToken != f.DeviceToken {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

func (f Filter) Apply(sessions []models.Session) []models.Session {
	out := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Directory resolves device tokens and plane ids. Lookups return ok=false
// when the reference does not resolve; callers choose the fallback.
type Directory struct {
	devices map[string]models.Device
	planes  map[uint]models.Plane
}

func NewDirectory(devices []models.Device, planes []models.Plane) Directory {
	d := Directory{
		devices: make(map[string]models.Device, len(devices)),
		planes:  make(map[uint]models.Plane, len(planes)),
	}
	for _, dev := range devices {
		d.devices[dev.Token] = dev
		if dev.Plane != nil {
			d.planes[dev.Plane.ID] = *dev.Plane
		}
	}
	for _, p := range planes {
		d.planes[p.ID] = p
	}
	return d
}

func (d Directory) Device(token string) (models.Device, bool) {
	dev, ok := d.devices[token]
	return dev, ok
}

func (d Directory) Plane(id uint) (models.Plane, bool) {
	p, ok := d.planes[id]
	return p, ok
}

// DeviceLabel is the device name, or the truncated token when the device is
// unknown or unnamed.
func (d Directory) DeviceLabel(token string) string {
	if dev, ok := d.Device(token); ok {
		if name, ok := dev.DisplayName(); ok {
			return name
		}
	}
	return models.ShortToken(token)
}

// PlaneLabel is the tail number of the plane the device is currently on.
func (d Directory) PlaneLabel(token string) string {
	dev, ok := d.Device(token)
	if !ok || dev.PlaneID == nil {
		return UnassignedPlane
	}
	if p, ok := d.Plane(*dev.PlaneID); ok {
		return p.TailNumber
	}
	return UnknownPlane
}

// Row is one session with its cross references resolved.
type Row struct {
	SessionID    uint                 `json:"session_id"`
	DeviceToken  string               `json:"device_token"`
	Device       string               `json:"device"`
	Plane        string               `json:"plane"`
	SessionStart time.Time            `json:"session_start"`
	RunSeconds   int64                `json:"run_seconds"`
	Duration     string               `json:"duration"`
	Hobbs        string               `json:"hobbs"`
	Status       models.SessionStatus `json:"status"`
	LastUpdate   *time.Time           `json:"last_update,omitempty"`
}

func BuildRows(sessions []models.Session, dir Directory) []Row {
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, Row{
			SessionID:    s.ID,
			DeviceToken:  s.DeviceToken,
			Device:       dir.DeviceLabel(s.DeviceToken),
			Plane:        dir.PlaneLabel(s.DeviceToken),
			SessionStart: s.SessionStart,
			RunSeconds:   s.RunSeconds,
			Duration:     stats.FormatHM(s.RunSeconds),
			Hobbs:        stats.Hobbs(s.RunSeconds),
			Status:       s.Status,
			LastUpdate:   s.LastUpdate,
		})
	}
	return rows
}
