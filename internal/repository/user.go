package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

// UserRepository stores local accounts and answers admin lookups for the
// access gate.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user. The first account ever created becomes an admin.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	tx := conn(ctx, r.db)

	var count int64
	if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
		return translate(err, "user", "count users")
	}
	if count == 0 {
		user.Role = models.RoleAdmin
	} else if user.Role == "" {
		user.Role = models.RoleUser
	}

	if err := tx.Create(user).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.Validation("email already registered")
		}
		return translate(err, "user", "create user")
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, id).Error; err != nil {
		return nil, translate(err, "user", "get user")
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "user", "get user")
	}
	return &user, nil
}

// IsAdmin reports whether userID holds the admin role. An unknown user is
// not an admin.
func (r *UserRepository) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ? AND role = ?", userID, models.RoleAdmin).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "user", "admin lookup")
	}
	return count > 0, nil
}

// List returns accounts ordered by id.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "user", "count users")
	}

	q := conn(ctx, r.db).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, 0, translate(err, "user", "list users")
	}
	return users, total, nil
}
