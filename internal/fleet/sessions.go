package fleet

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/identity"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
	"github.com/safespacehub/plane-tracker-site/internal/report"
)

// SessionQuery selects sessions for listing, dashboards and export.
// AllDevices widens the scope to the whole fleet and requires admin.
type SessionQuery struct {
	Filter     report.Filter
	AllDevices bool
	Limit      int
}

type SessionService struct {
	devices     DeviceStore
	planes      PlaneStore
	sessions    SessionStore
	tx          Transactor
	gate        *policy.Gate
	log         *slog.Logger
	recentLimit int
	location    *time.Location
	now         func() time.Time
}

func NewSessionService(devices DeviceStore, planes PlaneStore, sessions SessionStore, tx Transactor, gate *policy.Gate, log *slog.Logger, recentLimit int, loc *time.Location) *SessionService {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionService{
		devices:     devices,
		planes:      planes,
		sessions:    sessions,
		tx:          tx,
		gate:        gate,
		log:         log,
		recentLimit: recentLimit,
		location:    loc,
		now:         time.Now,
	}
}

// List returns resolved session rows in scope, newest first.
func (s *SessionService) List(ctx context.Context, q SessionQuery) ([]report.Row, error) {
	ctx, actor, err := s.begin(ctx, q, policy.ReadSessions)
	if err != nil {
		return nil, err
	}
	sc, err := s.scope(ctx, actor, q)
	if err != nil {
		return nil, err
	}
	sessions, err := s.fetch(ctx, sc, q.Filter, q.Limit)
	if err != nil {
		return nil, err
	}
	return report.BuildRows(sessions, sc.directory()), nil
}

// Close ends an open session by hand. Closing a closed session changes nothing.
func (s *SessionService) Close(ctx context.Context, id uint) (*models.Session, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(actor, policy.CloseSession); err != nil {
		return nil, err
	}

	var (
		closed  *models.Session
		changed bool
	)
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		session, err := s.sessions.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.visibleSession(ctx, actor, session); err != nil {
			return err
		}

		closed = session
		if session.IsClosed() {
			return nil
		}

		now := s.now().UTC()
		session.Status = models.SessionClosed
		session.LastUpdate = &now
		changed = true
		return s.sessions.Save(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Info("session closed", "session_id", id, "user_id", actor.UserID, "run_seconds", closed.RunSeconds)
	}
	return closed, nil
}

// Dashboard aggregates the sessions in scope. A device whose sessions cannot
// be fetched is reported as a warning with empty stats.
func (s *SessionService) Dashboard(ctx context.Context, q SessionQuery) (report.Dashboard, error) {
	ctx, actor, err := s.begin(ctx, q, policy.ReadSessions)
	if err != nil {
		return report.Dashboard{}, err
	}
	sc, err := s.scope(ctx, actor, q)
	if err != nil {
		return report.Dashboard{}, err
	}

	fetched := make([]report.DeviceSessions, 0, len(sc.devices))
	for _, d := range sc.devices {
		if q.Filter.DeviceToken != "" && d.Token != q.Filter.DeviceToken {
			continue
		}
		sessions, err := s.sessions.ListByDevice(ctx, d.Token)
		if err != nil {
			s.log.Warn("failed to fetch device sessions", "device", models.ShortToken(d.Token), "error", err)
		}
		fetched = append(fetched, report.DeviceSessions{Device: d, Sessions: sessions, Err: err})
	}

	recent := s.recentLimit
	if q.Limit > 0 {
		recent = q.Limit
	}
	return report.BuildDashboard(q.Filter, fetched, sc.planes, recent, s.now().UTC()), nil
}

// Export writes the sessions in scope as CSV and returns the number of rows.
func (s *SessionService) Export(ctx context.Context, q SessionQuery, w io.Writer) (int, error) {
	ctx, actor, err := s.begin(ctx, q, policy.ExportSessions)
	if err != nil {
		return 0, err
	}
	sc, err := s.scope(ctx, actor, q)
	if err != nil {
		return 0, err
	}
	sessions, err := s.fetch(ctx, sc, q.Filter, q.Limit)
	if err != nil {
		return 0, err
	}

	n, err := report.WriteCSV(w, report.BuildRows(sessions, sc.directory()), s.location)
	if err != nil {
		return n, apperrors.Gateway("write export", err)
	}
	s.log.Info("sessions exported", "user_id", actor.UserID, "rows", n, "all_devices", q.AllDevices)
	return n, nil
}

// ExportFileName is the download name for an export made now.
func (s *SessionService) ExportFileName() string {
	return report.FileName(s.now().In(s.location))
}

func (s *SessionService) begin(ctx context.Context, q SessionQuery, c policy.Capability) (context.Context, identity.Actor, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return ctx, actor, err
	}
	if err := s.gate.Require(actor, c); err != nil {
		return ctx, actor, err
	}
	if q.AllDevices {
		if err := s.gate.Require(actor, policy.ListAllSessions); err != nil {
			return ctx, actor, err
		}
	}
	if err := q.Filter.Validate(); err != nil {
		return ctx, actor, err
	}
	return ctx, actor, nil
}

type scope struct {
	all     bool
	devices []models.Device
	planes  []models.Plane
}

func (sc scope) directory() report.Directory {
	return report.NewDirectory(sc.devices, sc.planes)
}

func (sc scope) tokens() []string {
	tokens := make([]string, 0, len(sc.devices))
	for _, d := range sc.devices {
		tokens = append(tokens, d.Token)
	}
	return tokens
}

func (sc scope) has(token string) bool {
	for _, d := range sc.devices {
		if d.Token == token {
			return true
		}
	}
	return false
}

// scope loads the devices and planes the query may see. A device filter that
// names a device outside the scope is NotFound.
func (s *SessionService) scope(ctx context.Context, actor identity.Actor, q SessionQuery) (scope, error) {
	sc := scope{all: q.AllDevices}
	var err error
	if q.AllDevices {
		if sc.devices, err = s.devices.ListAll(ctx, true); err != nil {
			return sc, err
		}
		if sc.planes, err = s.planes.ListAll(ctx); err != nil {
			return sc, err
		}
	} else {
		if sc.devices, err = s.devices.List(ctx, actor.UserID, true); err != nil {
			return sc, err
		}
		if sc.planes, err = s.planes.List(ctx, actor.UserID); err != nil {
			return sc, err
		}
	}

	if q.Filter.DeviceToken != "" && !sc.has(q.Filter.DeviceToken) {
		return sc, apperrors.NotFound("device")
	}
	return sc, nil
}

func (s *SessionService) fetch(ctx context.Context, sc scope, f report.Filter, limit int) ([]models.Session, error) {
	switch {
	case f.DeviceToken != "":
		return s.sessions.ListByDevices(ctx, []string{f.DeviceToken}, f.Status, limit)
	case sc.all:
		return s.sessions.ListAll(ctx, f.Status, limit)
	default:
		return s.sessions.ListByDevices(ctx, sc.tokens(), f.Status, limit)
	}
}

// visibleSession applies the owner check of the session's device.
func (s *SessionService) visibleSession(ctx context.Context, actor identity.Actor, session *models.Session) error {
	if actor.Admin {
		return nil
	}
	device, err := s.devices.Get(ctx, session.DeviceToken)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return apperrors.NotFound("session")
		}
		return err
	}
	return s.gate.Visible(actor, device.OwnerID, "session")
}
