// Package policy is the single access gate every fleet operation passes
// through. Ownership decides visibility; admin-only capabilities are checked
// against a casbin policy.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/safespacehub/plane-tracker-site/internal/apperrors"
	"github.com/safespacehub/plane-tracker-site/internal/identity"
)

const (
	roleAdmin = "admin"
	roleOwner = "owner"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Capability is a resource/action pair checked against the policy.
type Capability struct {
	Resource string
	Action   string
}

func (c Capability) String() string {
	return c.Resource + ":" + c.Action
}

var (
	ListOwnDevices  = Capability{"devices", "list"}
	ManageDevice    = Capability{"devices", "update"}
	ListAllDevices  = Capability{"devices", "list_all"}
	ClaimDevice     = Capability{"devices", "claim"}
	ReleaseDevice   = Capability{"devices", "release"}
	ManagePlanes    = Capability{"planes", "manage"}
	ListAllPlanes   = Capability{"planes", "list_all"}
	ReadSessions    = Capability{"sessions", "read"}
	CloseSession    = Capability{"sessions", "close"}
	ListAllSessions = Capability{"sessions", "list_all"}
	ListUsers       = Capability{"users", "list"}
	ExportSessions  = Capability{"sessions", "export"}
)

var ownerCapabilities = []Capability{
	ListOwnDevices, ManageDevice, ManagePlanes, ReadSessions, CloseSession, ExportSessions,
}

var adminCapabilities = []Capability{
	ListAllDevices, ClaimDevice, ReleaseDevice, ListAllPlanes, ListAllSessions, ListUsers,
}

type Gate struct {
	oracle   identity.Oracle
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
	log      *slog.Logger
}

func NewGate(oracle identity.Oracle, log *slog.Logger) (*Gate, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy enforcer: %w", err)
	}

	for _, c := range ownerCapabilities {
		if _, err := enforcer.AddPolicy(roleOwner, c.Resource, c.Action); err != nil {
			return nil, fmt.Errorf("failed to add policy %s: %w", c, err)
		}
	}
	for _, c := range adminCapabilities {
		if _, err := enforcer.AddPolicy(roleAdmin, c.Resource, c.Action); err != nil {
			return nil, fmt.Errorf("failed to add policy %s: %w", c, err)
		}
	}
	// Admins hold every owner capability as well.
	if _, err := enforcer.AddGroupingPolicy(roleAdmin, roleOwner); err != nil {
		return nil, fmt.Errorf("failed to add admin role inheritance: %w", err)
	}

	return &Gate{oracle: oracle, enforcer: enforcer, log: log}, nil
}

// Resolve returns the acting identity for ctx with its admin flag looked up.
// The lookup happens once; the returned context carries the resolved actor so
// later calls reuse it.
func (g *Gate) Resolve(ctx context.Context) (context.Context, identity.Actor, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok || actor.UserID == 0 {
		return ctx, identity.Actor{}, apperrors.Unauthenticated("no active identity")
	}
	if actor.Resolved() {
		return ctx, actor, nil
	}

	admin, err := g.oracle.IsAdmin(ctx, actor.UserID)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return ctx, identity.Actor{}, err
		}
		return ctx, identity.Actor{}, apperrors.Gateway("admin lookup", err)
	}

	actor = actor.WithAdmin(admin)
	return identity.WithActor(ctx, actor), actor, nil
}

// Require checks a capability for the actor. Failing an admin-only capability
// yields AccessDenied.
func (g *Gate) Require(actor identity.Actor, c Capability) error {
	role := roleOwner
	if actor.Admin {
		role = roleAdmin
	}

	g.mu.RLock()
	allowed, err := g.enforcer.Enforce(role, c.Resource, c.Action)
	g.mu.RUnlock()
	if err != nil {
		g.log.Error("policy check failed", "error", err, "user_id", actor.UserID, "capability", c.String())
		return fmt.Errorf("policy check failed: %w", err)
	}
	if !allowed {
		g.log.Warn("access denied", "user_id", actor.UserID, "capability", c.String())
		return apperrors.AccessDenied(fmt.Sprintf("%s requires administrator access", c))
	}
	return nil
}

// CanAccess reports whether the actor may see or mutate an entity owned by ownerID.
func (g *Gate) CanAccess(actor identity.Actor, ownerID *uint) bool {
	if actor.Admin {
		return true
	}
	return ownerID != nil && *ownerID == actor.UserID
}

// Visible returns NotFound for entities the actor may not see, so a foreign
// entity is indistinguishable from a missing one.
func (g *Gate) Visible(actor identity.Actor, ownerID *uint, what string) error {
	if g.CanAccess(actor, ownerID) {
		return nil
	}
	return apperrors.NotFound(what)
}
