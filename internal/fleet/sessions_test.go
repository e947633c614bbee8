package fleet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/report"
	"github.com/safespacehub/plane-tracker-site/internal/stats"
)

// flakySessions fails ListByDevice for one token.
type flakySessions struct {
	SessionStore
	broken string
}

func (f flakySessions) ListByDevice(ctx context.Context, token string) ([]models.Session, error) {
	if token == f.broken {
		return nil, apperrors.Gateway("list sessions", errors.New("connection reset"))
	}
	return f.SessionStore.ListByDevice(ctx, token)
}

func seedExample(t *testing.T, e *testEnv) *models.Plane {
	p := e.plane(t, e.alice, "N123AB")
	e.device(t, e.alice, "dev-alice-1")
	e.device(t, e.alice, "dev-alice-2")
	e.device(t, e.bob, "dev-bob-1")
	_, err := e.deviceSvc.AssignPlane(as(e.alice), "dev-alice-1", p.ID)
	require.NoError(t, err)

	e.session(t, "dev-alice-1", "a1", 0, 3600, models.SessionClosed)
	e.session(t, "dev-alice-1", "a2", time.Hour*3, 7200, models.SessionClosed)
	e.session(t, "dev-alice-2", "a3", time.Hour*6, 1800, models.SessionOpen)
	e.session(t, "dev-bob-1", "b1", time.Hour, 500, models.SessionClosed)
	return p
}

func TestSessionService_Dashboard(t *testing.T) {
	e := newTestEnv(t)
	p := seedExample(t, e)

	d, err := e.sessionSvc.Dashboard(as(e.alice), SessionQuery{})
	require.NoError(t, err)

	assert.Equal(t, 3, d.Summary.TotalSessions)
	assert.Equal(t, int64(12600), d.Summary.TotalFlightTime)
	assert.Equal(t, 1, d.Summary.ActiveSessions)
	assert.Equal(t, stats.Seconds(5400), d.Summary.AverageFlightTime)
	assert.Equal(t, stats.Seconds(7200), d.Summary.LongestFlight)
	assert.Equal(t, stats.Seconds(3600), d.Summary.ShortestFlight)
	assert.Equal(t, "3.50", d.TotalHobbs)
	assert.Empty(t, d.Warnings)

	require.Len(t, d.Planes, 1)
	assert.Equal(t, p.ID, d.Planes[0].PlaneID)
	assert.Equal(t, int64(10800), d.Planes[0].Stats.TotalFlightTime)

	require.Len(t, d.Recent, 3)
	assert.Equal(t, "dev-alic...", d.Recent[0].Device)
	assert.Equal(t, report.UnassignedPlane, d.Recent[0].Plane)
	assert.Equal(t, "N123AB", d.Recent[1].Plane)
}

func TestSessionService_DashboardWarnsOnDeviceFailure(t *testing.T) {
	e := newTestEnv(t)
	seedExample(t, e)
	e.sessions = flakySessions{SessionStore: e.sessions, broken: "dev-alice-2"}
	e.wire()

	d, err := e.sessionSvc.Dashboard(as(e.alice), SessionQuery{})
	require.NoError(t, err)

	require.Len(t, d.Warnings, 1)
	assert.Equal(t, 2, d.Summary.TotalSessions)
	require.Len(t, d.Devices, 2)
	for _, r := range d.Devices {
		if r.Token == "dev-alice-2" {
			assert.True(t, r.Unavailable)
			assert.Zero(t, r.Stats.TotalFlightTime)
		}
	}
}

func TestSessionService_Scope(t *testing.T) {
	e := newTestEnv(t)
	seedExample(t, e)

	rows, err := e.sessionSvc.List(as(e.bob), SessionQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "dev-bob-1", rows[0].DeviceToken)

	_, err = e.sessionSvc.List(as(e.bob), SessionQuery{Filter: report.Filter{DeviceToken: "dev-alice-1"}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "foreign device filter looks missing")

	_, err = e.sessionSvc.List(as(e.bob), SessionQuery{AllDevices: true})
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	_, err = e.sessionSvc.List(as(e.alice), SessionQuery{Filter: report.Filter{Status: "paused"}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	all, err := e.sessionSvc.List(as(e.admin), SessionQuery{AllDevices: true})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	closed, err := e.sessionSvc.List(as(e.alice), SessionQuery{Filter: report.Filter{Status: models.SessionClosed}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, int64(7200), closed[0].RunSeconds)
}

func TestSessionService_Export(t *testing.T) {
	e := newTestEnv(t)
	seedExample(t, e)

	var buf bytes.Buffer
	filter := report.Filter{DeviceToken: "dev-alice-1"}
	n, err := e.sessionSvc.Export(as(e.alice), SessionQuery{Filter: filter}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, n+1)

	// exported totals match the filtered dashboard
	d, err := e.sessionSvc.Dashboard(as(e.alice), SessionQuery{Filter: filter})
	require.NoError(t, err)
	var total int64
	for _, rec := range records[1:] {
		secs, err := stats.ParseHM(rec[3])
		require.NoError(t, err)
		total += secs
	}
	assert.Equal(t, d.Summary.TotalFlightTime, total)

	assert.Equal(t, "flight-sessions-2025-06-02.csv", e.sessionSvc.ExportFileName())
}

func TestSessionService_Close(t *testing.T) {
	e := newTestEnv(t)
	seedExample(t, e)
	ctx := context.Background()

	open, err := e.sessions.FindByStart(ctx, "dev-alice-2", epoch.Add(6*time.Hour))
	require.NoError(t, err)

	_, err = e.sessionSvc.Close(as(e.bob), open.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	closed, err := e.sessionSvc.Close(as(e.alice), open.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed())
	assert.Equal(t, int64(1800), closed.RunSeconds)

	again, err := e.sessionSvc.Close(as(e.alice), open.ID)
	require.NoError(t, err, "closing twice is a no-op")
	assert.True(t, again.IsClosed())

	_, err = e.sessionSvc.Close(as(e.alice), 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
