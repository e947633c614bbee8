package fleet

import (
	"context"
	"time"

	"github.com/safespacehub/plane-tracker-site/internal/models"
)

// PlaneStore persists planes.
type PlaneStore interface {
	List(ctx context.Context, ownerID uint) ([]models.Plane, error)
	ListAll(ctx context.Context) ([]models.Plane, error)
	Get(ctx context.Context, id uint) (*models.Plane, error)
	Create(ctx context.Context, plane *models.Plane) error
	Update(ctx context.Context, plane *models.Plane) error
	Delete(ctx context.Context, id uint) error
}

// DeviceStore persists devices. Save writes owner, plane and name exactly as
// given, clearing references that are nil.
type DeviceStore interface {
	List(ctx context.Context, ownerID uint, withPlane bool) ([]models.Device, error)
	ListAll(ctx context.Context, withPlane bool) ([]models.Device, error)
	Get(ctx context.Context, token string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) error
	Save(ctx context.Context, device *models.Device) error
	Touch(ctx context.Context, token string, seen time.Time) error
	UnassignPlane(ctx context.Context, planeID uint) (int64, error)
	Delete(ctx context.Context, token string) error
}

// SessionStore persists sessions. Lists are ordered newest first.
type SessionStore interface {
	ListByDevice(ctx context.Context, token string) ([]models.Session, error)
	ListByDevices(ctx context.Context, tokens []string, status models.SessionStatus, limit int) ([]models.Session, error)
	ListAll(ctx context.Context, status models.SessionStatus, limit int) ([]models.Session, error)
	Get(ctx context.Context, id uint) (*models.Session, error)
	FindByStart(ctx context.Context, token string, start time.Time) (*models.Session, error)
	MessageSeen(ctx context.Context, messageID string) (bool, error)
	AddReceipt(ctx context.Context, receipt *models.ReportReceipt) error
	Create(ctx context.Context, session *models.Session) error
	Save(ctx context.Context, session *models.Session) error
	DeleteByDevice(ctx context.Context, token string) (int64, error)
}

// Transactor runs fn in one transaction; stores called with the ctx passed to
// fn take part in it.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
