package fleet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

// Report is one telemetry message from a device about a session.
type Report struct {
	DeviceToken  string               `json:"device_token" validate:"required,max=64"`
	MessageID    string               `json:"message_id" validate:"required,max=64"`
	SessionStart time.Time            `json:"session_start" validate:"required"`
	RunSeconds   int64                `json:"run_seconds" validate:"min=0"`
	Status       models.SessionStatus `json:"status" validate:"omitempty,oneof=open closed"`
	ReportedAt   time.Time            `json:"reported_at"`
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeClosed    Outcome = "closed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFrozen    Outcome = "frozen"
)

type RecordResult struct {
	Outcome       Outcome         `json:"outcome"`
	DeviceCreated bool            `json:"device_created"`
	Session       *models.Session `json:"session,omitempty"`
}

func (r RecordResult) Duplicate() bool {
	return r.Outcome == OutcomeDuplicate
}

// Ledger records device reports into sessions. Replays of a message id are
// ignored, run seconds never go backwards and a closed session is final.
type Ledger struct {
	devices  DeviceStore
	sessions SessionStore
	tx       Transactor
	log      *slog.Logger
	now      func() time.Time
}

func NewLedger(devices DeviceStore, sessions SessionStore, tx Transactor, log *slog.Logger) *Ledger {
	return &Ledger{devices: devices, sessions: sessions, tx: tx, log: log, now: time.Now}
}

func (l *Ledger) Record(ctx context.Context, rep Report) (RecordResult, error) {
	if err := models.Validate(rep); err != nil {
		return RecordResult{}, err
	}
	if rep.Status == "" {
		rep.Status = models.SessionOpen
	}
	if rep.ReportedAt.IsZero() {
		rep.ReportedAt = l.now()
	}
	rep.SessionStart = rep.SessionStart.UTC()
	rep.ReportedAt = rep.ReportedAt.UTC()

	var result RecordResult
	err := l.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		seen, err := l.sessions.MessageSeen(ctx, rep.MessageID)
		if err != nil {
			return err
		}
		if seen {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		created, err := l.ensureDevice(ctx, rep)
		if err != nil {
			return err
		}
		result.DeviceCreated = created

		if err := l.apply(ctx, rep, &result); err != nil {
			return err
		}
		return l.sessions.AddReceipt(ctx, &models.ReportReceipt{
			MessageID:   rep.MessageID,
			DeviceToken: rep.DeviceToken,
			SessionID:   result.Session.ID,
			ReportedAt:  rep.ReportedAt,
		})
	})
	if err != nil {
		l.log.Error("failed to record report", "device", models.ShortToken(rep.DeviceToken), "message_id", rep.MessageID, "error", err)
		return RecordResult{}, err
	}

	l.log.Debug("report recorded", "device", models.ShortToken(rep.DeviceToken), "message_id", rep.MessageID, "outcome", result.Outcome)
	return result, nil
}

// apply folds rep into its session. LastUpdate and the session's message id
// follow the newest report only, so late deliveries never move them back.
func (l *Ledger) apply(ctx context.Context, rep Report, result *RecordResult) error {
	session, err := l.sessions.FindByStart(ctx, rep.DeviceToken, rep.SessionStart)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		session = &models.Session{
			DeviceToken:  rep.DeviceToken,
			SessionStart: rep.SessionStart,
			RunSeconds:   rep.RunSeconds,
			LastUpdate:   &rep.ReportedAt,
			Status:       rep.Status,
			MessageID:    rep.MessageID,
		}
		if err := l.sessions.Create(ctx, session); err != nil {
			return err
		}
		result.Outcome, result.Session = OutcomeCreated, session
		return nil
	case err != nil:
		return err
	}

	if session.IsClosed() {
		result.Outcome, result.Session = OutcomeFrozen, session
		return nil
	}

	if rep.RunSeconds > session.RunSeconds {
		session.RunSeconds = rep.RunSeconds
	}
	if session.LastUpdate == nil || rep.ReportedAt.After(*session.LastUpdate) {
		session.LastUpdate = &rep.ReportedAt
		session.MessageID = rep.MessageID
	}
	result.Outcome = OutcomeUpdated
	if rep.Status == models.SessionClosed {
		session.Status = models.SessionClosed
		result.Outcome = OutcomeClosed
	}
	if err := l.sessions.Save(ctx, session); err != nil {
		return err
	}
	result.Session = session
	return nil
}

// ensureDevice creates an orphan on first contact and otherwise moves last
// seen forward.
func (l *Ledger) ensureDevice(ctx context.Context, rep Report) (bool, error) {
	device, err := l.devices.Get(ctx, rep.DeviceToken)
	if errors.Is(err, apperrors.ErrNotFound) {
		seen := rep.ReportedAt
		device := &models.Device{Token: rep.DeviceToken, LastSeenAt: &seen}
		if err := l.devices.Create(ctx, device); err != nil {
			return false, err
		}
		l.log.Info("new orphan device", "device", models.ShortToken(rep.DeviceToken))
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if device.LastSeenAt != nil && !rep.ReportedAt.After(*device.LastSeenAt) {
		return false, nil
	}
	return false, l.devices.Touch(ctx, rep.DeviceToken, rep.ReportedAt)
}
