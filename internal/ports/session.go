package ports

import (
	"context"
	"errors"
	"time"

	"agritrace/internal/domain/lot"
)

var ErrInvalidSession = errors.New("invalid session")

type Actor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email,omitempty"`
	Wallet      string   `json:"wallet,omitempty"`
	Role        lot.Role `json:"role"`
}

type SessionIssuer interface {
	Issue(ctx context.Context, actor Actor) (token string, expiresAt time.Time, err error)
	Resolve(ctx context.Context, token string) (Actor, error)
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the signed-in actor, or false for anonymous callers.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
