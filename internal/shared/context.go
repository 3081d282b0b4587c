package shared

import (
	"context"

	"github.com/google/uuid"
)

// SystemUserID identifies work performed by schedulers rather than people.
const SystemUserID int64 = 0

// Actor is the authenticated caller, resolved upstream, scoped to one tenant.
type Actor struct {
	TenantID uuid.UUID
	UserID   int64
}

// Valid reports whether the actor carries a tenant and a user.
func (a Actor) Valid() bool {
	return a.TenantID != uuid.Nil && a.UserID > 0
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
