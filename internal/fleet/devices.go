package fleet

import (
	"context"
	"log/slog"

	"github.com/safespacehub/plane-tracker-site/internal/identity"
	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
)

// DeviceUpdate is a partial edit of a device. Nil fields are left alone;
// ClearPlane unassigns the device.
type DeviceUpdate struct {
	Name       *string `json:"name"`
	PlaneID    *uint   `json:"plane_id"`
	ClearPlane bool    `json:"clear_plane"`
}

type DeviceService struct {
	devices  DeviceStore
	planes   PlaneStore
	sessions SessionStore
	tx       Transactor
	gate     *policy.Gate
	log      *slog.Logger
}

func NewDeviceService(devices DeviceStore, planes PlaneStore, sessions SessionStore, tx Transactor, gate *policy.Gate, log *slog.Logger) *DeviceService {
	return &DeviceService{devices: devices, planes: planes, sessions: sessions, tx: tx, gate: gate, log: log}
}

// List returns the actor's devices.
func (s *DeviceService) List(ctx context.Context, includePlane bool) ([]models.Device, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(actor, policy.ListOwnDevices); err != nil {
		return nil, err
	}
	return s.devices.List(ctx, actor.UserID, includePlane)
}

// ListAll returns every device in the system, orphans included.
func (s *DeviceService) ListAll(ctx context.Context, includePlane bool) ([]models.Device, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(actor, policy.ListAllDevices); err != nil {
		return nil, err
	}
	return s.devices.ListAll(ctx, includePlane)
}

func (s *DeviceService) Get(ctx context.Context, token string) (*models.Device, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	device, err := s.devices.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Visible(actor, device.OwnerID, "device"); err != nil {
		return nil, err
	}
	return device, nil
}

// Claim hands an orphan device to ownerID.
func (s *DeviceService) Claim(ctx context.Context, token string, ownerID uint) (*models.Device, error) {
	return s.transition(ctx, policy.ClaimDevice, token, func(context.Context, identity.Actor, models.Device) ([]Event, error) {
		return []Event{Claim(ownerID)}, nil
	})
}

// Release clears owner and plane, returning the device to orphan.
func (s *DeviceService) Release(ctx context.Context, token string) (*models.Device, error) {
	return s.transition(ctx, policy.ReleaseDevice, token, func(context.Context, identity.Actor, models.Device) ([]Event, error) {
		return []Event{ReleaseOwner()}, nil
	})
}

func (s *DeviceService) AssignPlane(ctx context.Context, token string, planeID uint) (*models.Device, error) {
	return s.Update(ctx, token, DeviceUpdate{PlaneID: &planeID})
}

func (s *DeviceService) Unassign(ctx context.Context, token string) (*models.Device, error) {
	return s.Update(ctx, token, DeviceUpdate{ClearPlane: true})
}

func (s *DeviceService) Rename(ctx context.Context, token, name string) (*models.Device, error) {
	return s.Update(ctx, token, DeviceUpdate{Name: &name})
}

// Update applies a rename and a plane change together; either both are
// written or neither is.
func (s *DeviceService) Update(ctx context.Context, token string, upd DeviceUpdate) (*models.Device, error) {
	return s.transition(ctx, policy.ManageDevice, token, func(ctx context.Context, actor identity.Actor, _ models.Device) ([]Event, error) {
		var events []Event
		if upd.Name != nil {
			events = append(events, Rename(*upd.Name))
		}
		switch {
		case upd.ClearPlane:
			events = append(events, UnassignPlane())
		case upd.PlaneID != nil:
			plane, err := s.planes.Get(ctx, *upd.PlaneID)
			if err != nil {
				return nil, err
			}
			if err := s.gate.Visible(actor, &plane.OwnerID, "plane"); err != nil {
				return nil, err
			}
			events = append(events, AssignPlane(plane))
		}
		return events, nil
	})
}

// Delete removes a device together with its sessions.
func (s *DeviceService) Delete(ctx context.Context, token string) error {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := s.gate.Require(actor, policy.ManageDevice); err != nil {
		return err
	}

	var removed int64
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		device, err := s.devices.Get(ctx, token)
		if err != nil {
			return err
		}
		if err := s.gate.Visible(actor, device.OwnerID, "device"); err != nil {
			return err
		}
		removed, err = s.sessions.DeleteByDevice(ctx, token)
		if err != nil {
			return err
		}
		return s.devices.Delete(ctx, token)
	})
	if err != nil {
		return err
	}

	s.log.Info("device deleted", "device", models.ShortToken(token), "user_id", actor.UserID, "sessions_removed", removed)
	return nil
}

type eventsFunc func(ctx context.Context, actor identity.Actor, current models.Device) ([]Event, error)

// transition loads a fresh snapshot of the device, runs it through the state
// machine and writes the result, all in one transaction.
func (s *DeviceService) transition(ctx context.Context, c policy.Capability, token string, build eventsFunc) (*models.Device, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(actor, c); err != nil {
		return nil, err
	}

	var (
		result models.Device
		from   models.DeviceState
		count  int
	)
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.devices.Get(ctx, token)
		if err != nil {
			return err
		}
		if err := s.gate.Visible(actor, current.OwnerID, "device"); err != nil {
			return err
		}

		events, err := build(ctx, actor, *current)
		if err != nil {
			return err
		}

		next := *current
		for _, ev := range events {
			if next, err = Apply(next, ev, actor); err != nil {
				return err
			}
		}
		if len(events) > 0 {
			if err := s.devices.Save(ctx, &next); err != nil {
				return err
			}
		}
		if next.PlaneID != nil && (next.Plane == nil || next.Plane.ID != *next.PlaneID) {
			if next.Plane, err = s.planes.Get(ctx, *next.PlaneID); err != nil {
				return err
			}
		}

		result, from, count = next, current.State(), len(events)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("device updated",
		"device", models.ShortToken(token),
		"user_id", actor.UserID,
		"from", from,
		"to", result.State(),
		"events", count,
	)
	return &result, nil
}
