package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ListByDevice returns every session of one device, newest first.
func (r *SessionRepository) ListByDevice(ctx context.Context, token string) ([]models.Session, error) {
	return r.find(conn(ctx, r.db).Where("device_token = ?", token), "", 0)
}

// ListByDevices returns sessions of the given devices, newest first. An empty
// token list yields no sessions. status "" matches any; limit <= 0 is unbounded.
func (r *SessionRepository) ListByDevices(ctx context.Context, tokens []string, status models.SessionStatus, limit int) ([]models.Session, error) {
	if len(tokens) == 0 {
		return []models.Session{}, nil
	}
	return r.find(conn(ctx, r.db).Where("device_token IN ?", tokens), status, limit)
}

// ListAll returns sessions of every device, orphans included.
func (r *SessionRepository) ListAll(ctx context.Context, status models.SessionStatus, limit int) ([]models.Session, error) {
	return r.find(conn(ctx, r.db), status, limit)
}

func (r *SessionRepository) find(q *gorm.DB, status models.SessionStatus, limit int) ([]models.Session, error) {
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []models.Session
	if err := q.Order("session_start DESC").Order("id DESC").Find(&sessions).Error; err != nil {
		return nil, translate(err, "session", "list sessions")
	}
	return sessions, nil
}

func (r *SessionRepository) Get(ctx context.Context, id uint) (*models.Session, error) {
	var session models.Session
	if err := conn(ctx, r.db).First(&session, id).Error; err != nil {
		return nil, translate(err, "session", "get session")
	}
	return &session, nil
}

// FindByStart returns the session a device opened at start.
func (r *SessionRepository) FindByStart(ctx context.Context, token string, start time.Time) (*models.Session, error) {
	var session models.Session
	err := conn(ctx, r.db).
		Where("device_token = ? AND session_start = ?", token, start).
		Order("id ASC").
		First(&session).Error
	if err != nil {
		return nil, translate(err, "session", "find session")
	}
	return &session, nil
}

// MessageSeen reports whether a report with messageID was already accepted.
func (r *SessionRepository) MessageSeen(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.ReportReceipt{}).Where("message_id = ?", messageID).Count(&count).Error
	if err != nil {
		return false, translate(err, "report receipt", "check message id")
	}
	return count > 0, nil
}

// AddReceipt stores an accepted message id.
func (r *SessionRepository) AddReceipt(ctx context.Context, receipt *models.ReportReceipt) error {
	if err := conn(ctx, r.db).Create(receipt).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.Validation("duplicate message id")
		}
		return translate(err, "report receipt", "store receipt")
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := conn(ctx, r.db).Omit(clause.Associations).Create(session).Error; err != nil {
		if isDuplicate(err) {
			return apperrors.Validation("duplicate message id")
		}
		return translate(err, "session", "create session")
	}
	return nil
}

// Save writes the mutable fields of a session.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	result := conn(ctx, r.db).Model(session).Omit(clause.Associations).
		Select("run_seconds", "last_update", "status", "message_id", "updated_at").
		Updates(session)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return apperrors.Validation("duplicate message id")
		}
		return translate(result.Error, "session", "update session")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("session")
	}
	return nil
}

// DeleteByDevice removes every session of a device.
func (r *SessionRepository) DeleteByDevice(ctx context.Context, token string) (int64, error) {
	result := conn(ctx, r.db).Where("device_token = ?", token).Delete(&models.Session{})
	if result.Error != nil {
		return 0, translate(result.Error, "session", "delete sessions")
	}
	return result.RowsAffected, nil
}
