// Package fleet holds the device assignment state machine and the services
// that drive planes, devices and sessions through the access gate.
package fleet

import (
	"fmt"
	"strings"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/identity"
	"github.com/safespacehub/plane-tracker-site/internal/models"
)

type EventKind string

const (
	EventClaim         EventKind = "claim"
	EventAssignPlane   EventKind = "assign_plane"
	EventUnassignPlane EventKind = "unassign_plane"
	EventReleaseOwner  EventKind = "release_owner"
	EventRename        EventKind = "rename"
)

// Event is one requested transition of a device.
type Event struct {
	Kind    EventKind
	OwnerID uint
	Plane   *models.Plane
	Name    string
}

func Claim(ownerID uint) Event { return Event{Kind: EventClaim, OwnerID: ownerID} }

func AssignPlane(plane *models.Plane) Event { return Event{Kind: EventAssignPlane, Plane: plane} }

func UnassignPlane() Event { return Event{Kind: EventUnassignPlane} }

func ReleaseOwner() Event { return Event{Kind: EventReleaseOwner} }

// Rename sets the display name; an empty name clears it.
func Rename(name string) Event { return Event{Kind: EventRename, Name: name} }

// Apply computes the device that results from ev performed by actor. It does
// not touch storage; on error the input device is returned unchanged.
func Apply(device models.Device, ev Event, actor identity.Actor) (models.Device, error) {
	next := device

	switch ev.Kind {
	case EventClaim:
		if !actor.Admin {
			return device, apperrors.AccessDenied("claiming a device requires administrator access")
		}
		if device.OwnerID != nil {
			return device, apperrors.Validation("device already owned")
		}
		if ev.OwnerID == 0 {
			return device, apperrors.Validation("owner is required")
		}
		owner := ev.OwnerID
		next.OwnerID = &owner
		next.PlaneID = nil

	case EventAssignPlane:
		if err := ownerOrAdmin(device, actor); err != nil {
			return device, err
		}
		if ev.Plane == nil || ev.Plane.ID == 0 {
			return device, apperrors.Validation("plane is required")
		}
		if device.OwnerID == nil {
			return device, apperrors.Validation("device has no owner", "an orphan device cannot be assigned to a plane")
		}
		if ev.Plane.OwnerID != *device.OwnerID {
			return device, apperrors.OwnershipMismatch(fmt.Sprintf("plane %s belongs to a different owner than the device", ev.Plane.TailNumber))
		}
		plane := *ev.Plane
		next.PlaneID = &plane.ID
		next.Plane = &plane

	case EventUnassignPlane:
		if err := ownerOrAdmin(device, actor); err != nil {
			return device, err
		}
		next.PlaneID = nil
		next.Plane = nil

	case EventReleaseOwner:
		if !actor.Admin {
			return device, apperrors.AccessDenied("releasing a device requires administrator access")
		}
		next.OwnerID = nil
		next.PlaneID = nil
		next.Plane = nil

	case EventRename:
		if err := ownerOrAdmin(device, actor); err != nil {
			return device, err
		}
		next.Name = models.OptionalString(ev.Name)
		if next.Name != nil && len(*next.Name) > 100 {
			return device, apperrors.Validation("validation failed", "name must be at most 100 characters")
		}

	default:
		return device, apperrors.Validation(fmt.Sprintf("unknown device event %q", strings.TrimSpace(string(ev.Kind))))
	}

	return next, nil
}

// ownerOrAdmin hides foreign devices behind NotFound.
func ownerOrAdmin(device models.Device, actor identity.Actor) error {
	if actor.Admin || device.OwnedBy(actor.UserID) {
		return nil
	}
	return apperrors.NotFound("device")
}
