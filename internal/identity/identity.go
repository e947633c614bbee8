// Package identity carries the acting user through a request as an explicit
// context value.
package identity

import (
	"context"
)

// Actor is the authenticated identity performing an operation. Admin is
// filled in by the policy gate, never by the token.
type Actor struct {
	UserID   uint
	Email    string
	Admin    bool
	resolved bool
}

// Resolved reports whether the admin flag has been looked up for this actor.
func (a Actor) Resolved() bool {
	return a.resolved
}

// WithAdmin returns a copy of the actor carrying the looked-up admin flag.
func (a Actor) WithAdmin(admin bool) Actor {
	a.Admin = admin
	a.resolved = true
	return a
}

// Oracle answers the out-of-band "is this user an administrator" question.
type Oracle interface {
	IsAdmin(ctx context.Context, userID uint) (bool, error)
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
