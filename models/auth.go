package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT claims. TenantID scopes every read and write of the bearer.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email,omitempty"`

	jwt.RegisteredClaims
}

// Actor identifies who performs a mutation and in which tenant.
type Actor struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
