package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/stats"
)

var start = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func uintPtr(v uint) *uint { return &v }

func strPtr(s string) *string { return &s }

func fixtures() ([]models.Device, []models.Plane, []models.Session) {
	planes := []models.Plane{
		{ID: 10, OwnerID: 1, TailNumber: "N123AB"},
		{ID: 20, OwnerID: 1, TailNumber: "N999ZZ"},
	}
	devices := []models.Device{
		{Token: "tok-named-device-0001", OwnerID: uintPtr(1), PlaneID: uintPtr(10), Name: strPtr(`Left "wing" unit`)},
		{Token: "tok-unnamed-device-0002", OwnerID: uintPtr(1)},
	}
	updated := start.Add(2 * time.Hour)
	sessions := []models.Session{
		{ID: 1, DeviceToken: "tok-named-device-0001", SessionStart: start, RunSeconds: 3600, Status: models.SessionClosed, LastUpdate: &updated},
		{ID: 2, DeviceToken: "tok-named-device-0001", SessionStart: start.Add(time.Hour), RunSeconds: 7200, Status: models.SessionClosed},
		{ID: 3, DeviceToken: "tok-unnamed-device-0002", SessionStart: start.Add(2 * time.Hour), RunSeconds: 1800, Status: models.SessionOpen},
	}
	return devices, planes, sessions
}

func TestFilter(t *testing.T) {
	_, _, sessions := fixtures()

	assert.Len(t, Filter{}.Apply(sessions), 3)
	assert.Len(t, Filter{Status: models.SessionClosed}.Apply(sessions), 2)
	assert.Len(t, Filter{DeviceToken: "tok-unnamed-device-0002"}.Apply(sessions), 1)
	assert.Empty(t, Filter{DeviceToken: "tok-unnamed-device-0002", Status: models.SessionClosed}.Apply(sessions))

	assert.NoError(t, Filter{Status: models.SessionOpen}.Validate())
	assert.ErrorIs(t, Filter{Status: "paused"}.Validate(), apperrors.ErrValidation)
}

func TestBuildRows_ResolvesLabels(t *testing.T) {
	devices, planes, sessions := fixtures()
	sessions = append(sessions, models.Session{ID: 4, DeviceToken: "abcdefghijklmnop", SessionStart: start, Status: models.SessionClosed})

	rows := BuildRows(sessions, NewDirectory(devices, planes))

	require.Len(t, rows, 4)
	assert.Equal(t, `Left "wing" unit`, rows[0].Device)
	assert.Equal(t, "N123AB", rows[0].Plane)
	assert.Equal(t, "1h 0m", rows[0].Duration)
	assert.Equal(t, "1.00", rows[0].Hobbs)

	assert.Equal(t, "tok-unna...", rows[2].Device, "unnamed device falls back to short token")
	assert.Equal(t, UnassignedPlane, rows[2].Plane)

	assert.Equal(t, "abcdefgh...", rows[3].Device, "unknown device falls back to short token")
	assert.Equal(t, UnassignedPlane, rows[3].Plane)
}

func TestDirectory_UnknownPlane(t *testing.T) {
	dir := NewDirectory([]models.Device{{Token: "t", OwnerID: uintPtr(1), PlaneID: uintPtr(77)}}, nil)
	assert.Equal(t, UnknownPlane, dir.PlaneLabel("t"))
}

func TestWriteCSV(t *testing.T) {
	devices, planes, sessions := fixtures()
	rows := BuildRows(sessions, NewDirectory(devices, planes))

	var buf bytes.Buffer
	n, err := WriteCSV(&buf, rows, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, len(sessions), n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, len(sessions)+1)
	assert.Equal(t, `"Session Start","Device","Plane","Duration","Status","Last Update"`, lines[0])
	assert.Equal(t, `"2025-06-01 09:30:00","Left ""wing"" unit","N123AB","1h 0m","closed","2025-06-01 11:30:00"`, lines[1])
	assert.True(t, strings.HasSuffix(lines[2], `,""`), "missing last update is an empty quoted field")

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(sessions)+1)
	for i, rec := range records[1:] {
		secs, err := stats.ParseHM(rec[3])
		require.NoError(t, err)
		assert.Equal(t, sessions[i].RunSeconds/60*60, secs)
	}
}

func TestWriteCSV_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	rows := []Row{{SessionStart: start, Device: "d", Plane: UnassignedPlane, Duration: "0h 0m", Status: models.SessionOpen}}

	var buf bytes.Buffer
	_, err := WriteCSV(&buf, rows, loc)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"2025-06-01 11:30:00"`)
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, strings.Count(buf.String(), "\r\n"))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "flight-sessions-2025-06-01.csv", FileName(start))
}

func TestBuildDashboard(t *testing.T) {
	devices, planes, sessions := fixtures()
	broken := models.Device{Token: "tok-broken-device-0003", OwnerID: uintPtr(1), Name: strPtr("Spare")}

	fetched := []DeviceSessions{
		{Device: devices[0], Sessions: sessions[:2]},
		{Device: devices[1], Sessions: sessions[2:]},
		{Device: broken, Err: errors.New("connection reset")},
	}

	d := BuildDashboard(Filter{}, fetched, planes, 2, start)

	assert.Equal(t, 3, d.Summary.TotalSessions)
	assert.Equal(t, int64(12600), d.Summary.TotalFlightTime)
	assert.Equal(t, "3.50", d.TotalHobbs)
	assert.Equal(t, stats.Seconds(5400), d.Summary.AverageFlightTime)

	require.Len(t, d.Devices, 3)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "Spare")
	for _, r := range d.Devices {
		if r.Token == broken.Token {
			assert.True(t, r.Unavailable)
			assert.Zero(t, r.Stats.TotalSessions)
		}
	}

	require.Len(t, d.Planes, 2)
	assert.Equal(t, "N123AB", d.Planes[0].TailNumber)
	assert.Equal(t, 2, d.Planes[0].Stats.TotalSessions)
	assert.Equal(t, 0, d.Planes[1].Stats.TotalSessions)
	assert.False(t, d.Planes[1].Stats.LongestFlight.Valid)

	require.Len(t, d.Recent, 2)
	assert.Equal(t, uint(3), d.Recent[0].SessionID)
	assert.Equal(t, uint(2), d.Recent[1].SessionID)
}

func TestBuildDashboard_FilterAppliesBeforeAggregation(t *testing.T) {
	devices, planes, sessions := fixtures()
	fetched := []DeviceSessions{
		{Device: devices[0], Sessions: sessions[:2]},
		{Device: devices[1], Sessions: sessions[2:]},
	}

	d := BuildDashboard(Filter{Status: models.SessionOpen}, fetched, planes, 10, start)

	assert.Equal(t, 1, d.Summary.TotalSessions)
	assert.Equal(t, 1, d.Summary.ActiveSessions)
	assert.False(t, d.Summary.AverageFlightTime.Valid)
	assert.Len(t, d.Recent, 1)

	d = BuildDashboard(Filter{DeviceToken: devices[0].Token}, fetched, planes, 10, start)
	require.Len(t, d.Devices, 1)
	assert.Equal(t, int64(10800), d.Summary.TotalFlightTime)
}

func TestBuildDashboard_DeviceRollupsMatchByDevice(t *testing.T) {
	devices, planes, sessions := fixtures()
	fetched := []DeviceSessions{
		{Device: devices[0], Sessions: sessions[:2]},
		{Device: devices[1], Sessions: sessions[2:]},
	}

	d := BuildDashboard(Filter{}, fetched, planes, 10, start)
	want := stats.ByDevice(sessions)

	require.Len(t, d.Devices, 2)
	for _, r := range d.Devices {
		assert.Equal(t, want[r.Token], r.Stats, r.Token)
		assert.Equal(t, want[r.Token].TotalHobbs(), r.TotalHobbs)
	}

	named := want[devices[0].Token]
	assert.Equal(t, 2, named.TotalSessions)
	assert.Equal(t, stats.Seconds(5400), named.AverageFlightTime)

	empty := BuildDashboard(Filter{Status: models.SessionClosed}, fetched, planes, 10, start)
	for _, r := range empty.Devices {
		if r.Token == devices[1].Token {
			assert.Zero(t, r.Stats.TotalSessions, "device with no matching sessions gets an empty rollup")
			assert.False(t, r.Stats.AverageFlightTime.Valid)
		}
	}
}
