package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
)

// translate maps a gorm error onto the application error kinds.
func translate(err error, what, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(what)
	default:
		return apperrors.Gateway(op, err)
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
