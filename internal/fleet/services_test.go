package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

func TestPlaneService_Create(t *testing.T) {
	e := newTestEnv(t)

	p, err := e.planeSvc.Create(as(e.alice), PlaneInput{TailNumber: " n123ab ", Model: "172S", Manufacturer: " "})
	require.NoError(t, err)
	assert.Equal(t, "N123AB", p.TailNumber)
	assert.Equal(t, e.alice.ID, p.OwnerID)
	require.NotNil(t, p.Model)
	assert.Nil(t, p.Manufacturer)

	t.Run("duplicate tail for same owner", func(t *testing.T) {
		_, err := e.planeSvc.Create(as(e.alice), PlaneInput{TailNumber: "N123AB"})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("same tail for another owner", func(t *testing.T) {
		_, err := e.planeSvc.Create(as(e.bob), PlaneInput{TailNumber: "N123AB"})
		assert.NoError(t, err)
	})

	t.Run("tail number required", func(t *testing.T) {
		_, err := e.planeSvc.Create(as(e.alice), PlaneInput{TailNumber: "   "})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Contains(t, appErr.Details, "tail_number is required")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := e.planeSvc.Create(context.Background(), PlaneInput{TailNumber: "N1"})
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})
}

func TestPlaneService_Visibility(t *testing.T) {
	e := newTestEnv(t)
	p := e.plane(t, e.alice, "N1")

	_, err := e.planeSvc.Get(as(e.bob), p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "foreign plane looks missing")

	_, err = e.planeSvc.Update(as(e.bob), p.ID, PlaneInput{TailNumber: "N2"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := e.planeSvc.Get(as(e.admin), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "N1", got.TailNumber)

	own, err := e.planeSvc.List(as(e.bob), false)
	require.NoError(t, err)
	assert.Empty(t, own)

	_, err = e.planeSvc.List(as(e.bob), true)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	all, err := e.planeSvc.List(as(e.admin), true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPlaneService_DeleteUnassignsDevices(t *testing.T) {
	e := newTestEnv(t)
	p := e.plane(t, e.alice, "N1")
	e.device(t, e.alice, "dev-1")
	e.device(t, e.alice, "dev-2")
	for _, token := range []string{"dev-1", "dev-2"} {
		_, err := e.deviceSvc.AssignPlane(as(e.alice), token, p.ID)
		require.NoError(t, err)
	}

	_, err := e.planeSvc.Delete(as(e.bob), p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	n, err := e.planeSvc.Delete(as(e.alice), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	devices, err := e.deviceSvc.List(as(e.alice), true)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	for _, d := range devices {
		assert.Equal(t, models.StateOwned, d.State())
		assert.Nil(t, d.Plane)
	}
}

func TestDeviceService_Listing(t *testing.T) {
	e := newTestEnv(t)
	e.device(t, e.alice, "dev-alice")
	e.device(t, e.bob, "dev-bob")
	require.NoError(t, e.devices.Create(context.Background(), &models.Device{Token: "dev-orphan"}))

	mine, err := e.deviceSvc.List(as(e.alice), false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "dev-alice", mine[0].Token)

	_, err = e.deviceSvc.ListAll(as(e.alice), false)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied, "bulk enumeration is admin only")

	all, err := e.deviceSvc.ListAll(as(e.admin), false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = e.deviceSvc.Get(as(e.alice), "dev-bob")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = e.deviceSvc.Get(as(e.alice), "dev-orphan")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeviceService_ClaimAndRelease(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.devices.Create(context.Background(), &models.Device{Token: "dev-1"}))

	_, err := e.deviceSvc.Claim(as(e.alice), "dev-1", e.alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	d, err := e.deviceSvc.Claim(as(e.admin), "dev-1", e.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateOwned, d.State())

	_, err = e.deviceSvc.Claim(as(e.admin), "dev-1", e.bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "already owned")

	_, err = e.deviceSvc.Claim(as(e.admin), "missing", e.bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = e.deviceSvc.Release(as(e.alice), "dev-1")
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	d, err = e.deviceSvc.Release(as(e.admin), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateOrphan, d.State())

	stored, err := e.devices.Get(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Nil(t, stored.OwnerID)
}

func TestDeviceService_AssignPlane(t *testing.T) {
	e := newTestEnv(t)
	alicePlane := e.plane(t, e.alice, "N1")
	bobPlane := e.plane(t, e.bob, "N2")
	e.device(t, e.alice, "dev-1")

	d, err := e.deviceSvc.AssignPlane(as(e.alice), "dev-1", alicePlane.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAssigned, d.State())
	require.NotNil(t, d.Plane)
	assert.Equal(t, "N1", d.Plane.TailNumber)

	t.Run("rename keeps the assigned plane on the result", func(t *testing.T) {
		d, err := e.deviceSvc.Rename(as(e.alice), "dev-1", "Left wing")
		require.NoError(t, err)
		require.NotNil(t, d.Plane)
		assert.Equal(t, "N1", d.Plane.TailNumber)
	})

	t.Run("owner cannot see a foreign plane", func(t *testing.T) {
		_, err := e.deviceSvc.AssignPlane(as(e.alice), "dev-1", bobPlane.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("cross owner link leaves device unchanged", func(t *testing.T) {
		_, err := e.deviceSvc.AssignPlane(as(e.admin), "dev-1", bobPlane.ID)
		assert.ErrorIs(t, err, apperrors.ErrOwnershipMismatch)

		stored, err := e.devices.Get(context.Background(), "dev-1")
		require.NoError(t, err)
		require.NotNil(t, stored.PlaneID)
		assert.Equal(t, alicePlane.ID, *stored.PlaneID)
	})

	t.Run("rename and unassign in one update", func(t *testing.T) {
		name := "Panel unit"
		d, err := e.deviceSvc.Update(as(e.alice), "dev-1", DeviceUpdate{Name: &name, ClearPlane: true})
		require.NoError(t, err)
		assert.Equal(t, models.StateOwned, d.State())

		stored, err := e.devices.Get(context.Background(), "dev-1")
		require.NoError(t, err)
		assert.Nil(t, stored.PlaneID)
		assert.Equal(t, "Panel unit", *stored.Name)
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		name := "Should not stick"
		_, err := e.deviceSvc.Update(as(e.admin), "dev-1", DeviceUpdate{Name: &name, PlaneID: &bobPlane.ID})
		assert.ErrorIs(t, err, apperrors.ErrOwnershipMismatch)

		stored, err := e.devices.Get(context.Background(), "dev-1")
		require.NoError(t, err)
		assert.Equal(t, "Panel unit", *stored.Name)
	})

	t.Run("orphan cannot be assigned", func(t *testing.T) {
		require.NoError(t, e.devices.Create(context.Background(), &models.Device{Token: "dev-orphan"}))
		_, err := e.deviceSvc.AssignPlane(as(e.admin), "dev-orphan", alicePlane.ID)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestDeviceService_DeleteRemovesSessions(t *testing.T) {
	e := newTestEnv(t)
	e.device(t, e.alice, "dev-1")
	e.session(t, "dev-1", "m1", 0, 600, models.SessionClosed)
	e.session(t, "dev-1", "m2", 2*time.Hour, 60, models.SessionOpen)

	assert.ErrorIs(t, e.deviceSvc.Delete(as(e.bob), "dev-1"), apperrors.ErrNotFound)

	require.NoError(t, e.deviceSvc.Delete(as(e.alice), "dev-1"))

	_, err := e.devices.Get(context.Background(), "dev-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	left, err := e.sessions.ListByDevice(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, left)
}
