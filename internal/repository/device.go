package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// List returns the devices owned by ownerID. withPlane preloads the plane.
func (r *DeviceRepository) List(ctx context.Context, ownerID uint, withPlane bool) ([]models.Device, error) {
	q := conn(ctx, r.db).Where("owner_id = ?", ownerID)
	return r.find(q, withPlane)
}

// ListAll returns every device, orphans included.
func (r *DeviceRepository) ListAll(ctx context.Context, withPlane bool) ([]models.Device, error) {
	return r.find(conn(ctx, r.db), withPlane)
}

func (r *DeviceRepository) find(q *gorm.DB, withPlane bool) ([]models.Device, error) {
	if withPlane {
		q = q.Preload("Plane")
	}
	var devices []models.Device
	if err := q.Order("created_at ASC").Order("token ASC").Find(&devices).Error; err != nil {
		return nil, translate(err, "device", "list devices")
	}
	return devices, nil
}

func (r *DeviceRepository) Get(ctx context.Context, token string) (*models.Device, error) {
	var device models.Device
	if err := conn(ctx, r.db).Where("token = ?", token).First(&device).Error; err != nil {
		return nil, translate(err, "device", "get device")
	}
	return &device, nil
}

func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	if err := conn(ctx, r.db).Omit(clause.Associations).Create(device).Error; err != nil {
		return translate(err, "device", "create device")
	}
	return nil
}

// Save writes owner, plane and name as they are on device, nil included.
func (r *DeviceRepository) Save(ctx context.Context, device *models.Device) error {
	result := conn(ctx, r.db).Model(device).Omit(clause.Associations).
		Select("owner_id", "plane_id", "name", "updated_at").
		Updates(device)
	if result.Error != nil {
		return translate(result.Error, "device", "update device")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("device")
	}
	return nil
}

// Touch records that the device reported at seen.
func (r *DeviceRepository) Touch(ctx context.Context, token string, seen time.Time) error {
	err := conn(ctx, r.db).Model(&models.Device{}).
		Where("token = ?", token).
		Update("last_seen_at", seen).Error
	return translate(err, "device", "update device")
}

// UnassignPlane detaches every device from planeID and reports how many moved.
func (r *DeviceRepository) UnassignPlane(ctx context.Context, planeID uint) (int64, error) {
	result := conn(ctx, r.db).Model(&models.Device{}).
		Where("plane_id = ?", planeID).
		Updates(map[string]interface{}{"plane_id": nil, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, translate(result.Error, "device", "unassign plane")
	}
	return result.RowsAffected, nil
}

func (r *DeviceRepository) Delete(ctx context.Context, token string) error {
	result := conn(ctx, r.db).Where("token = ?", token).Delete(&models.Device{})
	if result.Error != nil {
		return translate(result.Error, "device", "delete device")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("device")
	}
	return nil
}
