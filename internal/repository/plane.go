package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

type PlaneRepository struct {
	db *gorm.DB
}

func NewPlaneRepository(db *gorm.DB) *PlaneRepository {
	return &PlaneRepository{db: db}
}

// List returns the planes of one owner ordered by tail number.
func (r *PlaneRepository) List(ctx context.Context, ownerID uint) ([]models.Plane, error) {
	var planes []models.Plane
	err := conn(ctx, r.db).Where("owner_id = ?", ownerID).Order("tail_number ASC").Find(&planes).Error
	if err != nil {
		return nil, translate(err, "plane", "list planes")
	}
	return planes, nil
}

func (r *PlaneRepository) ListAll(ctx context.Context) ([]models.Plane, error) {
	var planes []models.Plane
	if err := conn(ctx, r.db).Order("tail_number ASC").Find(&planes).Error; err != nil {
		return nil, translate(err, "plane", "list planes")
	}
	return planes, nil
}

func (r *PlaneRepository) Get(ctx context.Context, id uint) (*models.Plane, error) {
	var plane models.Plane
	if err := conn(ctx, r.db).First(&plane, id).Error; err != nil {
		return nil, translate(err, "plane", "get plane")
	}
	return &plane, nil
}

func (r *PlaneRepository) Create(ctx context.Context, plane *models.Plane) error {
	if err := conn(ctx, r.db).Omit(clause.Associations).Create(plane).Error; err != nil {
		return r.writeError(err, "create plane")
	}
	return nil
}

func (r *PlaneRepository) Update(ctx context.Context, plane *models.Plane) error {
	result := conn(ctx, r.db).Model(plane).Select("tail_number", "model", "manufacturer", "updated_at").Updates(plane)
	if result.Error != nil {
		return r.writeError(result.Error, "update plane")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("plane")
	}
	return nil
}

func (r *PlaneRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&models.Plane{}, id)
	if result.Error != nil {
		return translate(result.Error, "plane", "delete plane")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("plane")
	}
	return nil
}

func (r *PlaneRepository) writeError(err error, op string) error {
	if isDuplicate(err) {
		return apperrors.Validation("tail number already registered")
	}
	return translate(err, "plane", op)
}
