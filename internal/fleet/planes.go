package fleet

import (
	"context"
	"log/slog"

	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/policy"
)

// PlaneInput is the editable part of a plane.
type PlaneInput struct {
	TailNumber   string `json:"tail_number"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
}

type PlaneService struct {
	planes  PlaneStore
	devices DeviceStore
	tx      Transactor
	gate    *policy.Gate
	log     *slog.Logger
}

func NewPlaneService(planes PlaneStore, devices DeviceStore, tx Transactor, gate *policy.Gate, log *slog.Logger) *PlaneService {
	return &PlaneService{planes: planes, devices: devices, tx: tx, gate: gate, log: log}
}

// List returns the actor's planes, or every plane when all is set (admin only).
func (s *PlaneService) List(ctx context.Context, all bool) ([]models.Plane, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if all {
		if err := s.gate.Require(actor, policy.ListAllPlanes); err != nil {
			return nil, err
		}
		return s.planes.ListAll(ctx)
	}
	if err := s.gate.Require(actor, policy.ManagePlanes); err != nil {
		return nil, err
	}
	return s.planes.List(ctx, actor.UserID)
}

func (s *PlaneService) Get(ctx context.Context, id uint) (*models.Plane, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	plane, err := s.planes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Visible(actor, &plane.OwnerID, "plane"); err != nil {
		return nil, err
	}
	return plane, nil
}

// Create registers a plane for the acting user. The tail number is trimmed
// and upper-cased; a duplicate for the same owner is a validation failure.
func (s *PlaneService) Create(ctx context.Context, in PlaneInput) (*models.Plane, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Require(actor, policy.ManagePlanes); err != nil {
		return nil, err
	}

	plane := &models.Plane{OwnerID: actor.UserID}
	applyPlaneInput(plane, in)
	if err := models.Validate(plane); err != nil {
		return nil, err
	}

	if err := s.planes.Create(ctx, plane); err != nil {
		return nil, err
	}
	s.log.Info("plane created", "plane_id", plane.ID, "tail_number", plane.TailNumber, "owner_id", plane.OwnerID)
	return plane, nil
}

func (s *PlaneService) Update(ctx context.Context, id uint, in PlaneInput) (*models.Plane, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var updated *models.Plane
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		plane, err := s.planes.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.Visible(actor, &plane.OwnerID, "plane"); err != nil {
			return err
		}

		applyPlaneInput(plane, in)
		if err := models.Validate(plane); err != nil {
			return err
		}
		if err := s.planes.Update(ctx, plane); err != nil {
			return err
		}
		updated = plane
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a plane. Devices assigned to it drop back to owned in the
// same transaction; the number of such devices is returned.
func (s *PlaneService) Delete(ctx context.Context, id uint) (int64, error) {
	ctx, actor, err := s.gate.Resolve(ctx)
	if err != nil {
		return 0, err
	}

	var unassigned int64
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		plane, err := s.planes.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.Visible(actor, &plane.OwnerID, "plane"); err != nil {
			return err
		}

		unassigned, err = s.devices.UnassignPlane(ctx, plane.ID)
		if err != nil {
			return err
		}
		return s.planes.Delete(ctx, plane.ID)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("plane deleted", "plane_id", id, "user_id", actor.UserID, "devices_unassigned", unassigned)
	return unassigned, nil
}

func applyPlaneInput(plane *models.Plane, in PlaneInput) {
	plane.TailNumber = models.NormalizeTailNumber(in.TailNumber)
	plane.Model = models.OptionalString(in.Model)
	plane.Manufacturer = models.OptionalString(in.Manufacturer)
}
