package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/safespacehub/plane-tracker-site/internal/identity"
	"github.com/safespacehub/plane-tracker-site/internal/logger"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
	"github.com/safespacehub/plane-tracker-site/internal/repository"
)

var epoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	users    *repository.UserRepository
	planes   *repository.PlaneRepository
	devices  *repository.DeviceRepository
	sessions SessionStore
	tx       *repository.TransactionManager
	gate     *policy.Gate

	planeSvc   *PlaneService
	deviceSvc  *DeviceService
	sessionSvc *SessionService
	ledger     *Ledger

	admin, alice, bob models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewMemoryDatabase()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	e := &testEnv{
		users:    repository.NewUserRepository(db),
		planes:   repository.NewPlaneRepository(db),
		devices:  repository.NewDeviceRepository(db),
		sessions: repository.NewSessionRepository(db),
		tx:       repository.NewTransactionManager(db),
	}
	e.gate, err = policy.NewGate(e.users, logger.Discard())
	require.NoError(t, err)

	e.admin = e.createUser(t, "admin@example.com")
	e.alice = e.createUser(t, "alice@example.com")
	e.bob = e.createUser(t, "bob@example.com")
	require.True(t, e.admin.IsAdmin())

	e.wire()
	return e
}

// wire (re)builds the services, picking up a replaced session store.
func (e *testEnv) wire() {
	log := logger.Discard()
	e.planeSvc = NewPlaneService(e.planes, e.devices, e.tx, e.gate, log)
	e.deviceSvc = NewDeviceService(e.devices, e.planes, e.sessions, e.tx, e.gate, log)
	e.sessionSvc = NewSessionService(e.devices, e.planes, e.sessions, e.tx, e.gate, log, 10, time.UTC)
	e.sessionSvc.now = func() time.Time { return epoch.Add(24 * time.Hour) }
	e.ledger = NewLedger(e.devices, e.sessions, e.tx, log)
	e.ledger.now = func() time.Time { return epoch }
}

func (e *testEnv) createUser(t *testing.T, email string) models.User {
	t.Helper()
	u := models.User{Email: email}
	require.NoError(t, u.SetPassword("password"))
	require.NoError(t, e.users.Create(context.Background(), &u))
	return u
}

func as(u models.User) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{UserID: u.ID, Email: u.Email})
}

func (e *testEnv) plane(t *testing.T, owner models.User, tail string) *models.Plane {
	t.Helper()
	p, err := e.planeSvc.Create(as(owner), PlaneInput{TailNumber: tail})
	require.NoError(t, err)
	return p
}

// device creates an orphan and has the admin claim it for owner.
func (e *testEnv) device(t *testing.T, owner models.User, token string) *models.Device {
	t.Helper()
	require.NoError(t, e.devices.Create(context.Background(), &models.Device{Token: token}))
	d, err := e.deviceSvc.Claim(as(e.admin), token, owner.ID)
	require.NoError(t, err)
	return d
}

func (e *testEnv) session(t *testing.T, token, msg string, start time.Duration, seconds int64, status models.SessionStatus) {
	t.Helper()
	_, err := e.ledger.Record(context.Background(), Report{
		DeviceToken:  token,
		MessageID:    msg,
		SessionStart: epoch.Add(start),
		RunSeconds:   seconds,
		Status:       status,
	})
	require.NoError(t, err)
}

func uintPtr(v uint) *uint { return &v }
