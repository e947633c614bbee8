package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/identity"
	"github.com/safespacehub/plane-tracker-site/internal/logger"
)

type stubOracle struct {
	admins map[uint]bool
	err    error
	calls  int
}

func (s *stubOracle) IsAdmin(_ context.Context, userID uint) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.admins[userID], nil
}

func newGate(t *testing.T, oracle identity.Oracle) *Gate {
	g, err := NewGate(oracle, logger.Discard())
	require.NoError(t, err)
	return g
}

func uintPtr(v uint) *uint { return &v }

func TestGate_Resolve(t *testing.T) {
	oracle := &stubOracle{admins: map[uint]bool{1: true}}
	g := newGate(t, oracle)

	t.Run("no identity", func(t *testing.T) {
		_, _, err := g.Resolve(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("admin looked up once per context", func(t *testing.T) {
		oracle.calls = 0
		ctx := identity.WithActor(context.Background(), identity.Actor{UserID: 1})

		ctx, actor, err := g.Resolve(ctx)
		require.NoError(t, err)
		assert.True(t, actor.Admin)

		_, again, err := g.Resolve(ctx)
		require.NoError(t, err)
		assert.True(t, again.Admin)
		assert.Equal(t, 1, oracle.calls)
	})

	t.Run("oracle failure surfaces as gateway failure", func(t *testing.T) {
		failing := newGate(t, &stubOracle{err: errors.New("users table missing")})
		ctx := identity.WithActor(context.Background(), identity.Actor{UserID: 2})

		_, _, err := failing.Resolve(ctx)
		assert.ErrorIs(t, err, apperrors.ErrGatewayFailure)
		assert.Contains(t, err.Error(), "users table missing")
	})
}

func TestGate_Require(t *testing.T) {
	g := newGate(t, &stubOracle{})
	owner := identity.Actor{UserID: 2}.WithAdmin(false)
	admin := identity.Actor{UserID: 1}.WithAdmin(true)

	for _, c := range ownerCapabilities {
		assert.NoError(t, g.Require(owner, c), c.String())
		assert.NoError(t, g.Require(admin, c), c.String())
	}
	for _, c := range adminCapabilities {
		err := g.Require(owner, c)
		assert.ErrorIs(t, err, apperrors.ErrAccessDenied, c.String())
		assert.NoError(t, g.Require(admin, c), c.String())
	}
}

func TestGate_Visible(t *testing.T) {
	g := newGate(t, &stubOracle{})
	alice := identity.Actor{UserID: 1}.WithAdmin(false)
	admin := identity.Actor{UserID: 9}.WithAdmin(true)

	assert.NoError(t, g.Visible(alice, uintPtr(1), "device"))

	err := g.Visible(alice, uintPtr(2), "device")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrAccessDenied)

	assert.ErrorIs(t, g.Visible(alice, nil, "device"), apperrors.ErrNotFound)

	assert.NoError(t, g.Visible(admin, uintPtr(2), "device"))
	assert.NoError(t, g.Visible(admin, nil, "device"))
}
