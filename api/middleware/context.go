package middleware

import (
	"context"
	"net/http"
	"time"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type contextKey string

const (
	ctxActor   contextKey = "actor"
	ctxSession contextKey = "session"
)

// Session identifies the access token behind the request.
type Session struct {
	TokenID   string
	ExpiresAt time.Time
}

// SessionFromContext returns the token the caller authenticated with.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	session, ok := ctx.Value(ctxSession).(Session)
	return session, ok
}

func withSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, ctxSession, session)
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	if ctx == nil {
		return types.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(types.Actor)
	return actor, ok
}

// RequireActor returns the caller of r or an unauthorized error.
func RequireActor(r *http.Request) (types.Actor, error) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return actor, nil
}

// RequireVendor returns the caller's vendor id or a forbidden error.
func RequireVendor(r *http.Request) (types.Actor, error) {
	actor, err := RequireActor(r)
	if err != nil {
		return actor, err
	}
	if actor.VendorID == nil {
		return actor, pkgerrors.New(pkgerrors.CodeForbidden, "vendor role required")
	}
	return actor, nil
}

// WithActor injects the caller into the context for downstream handlers.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func userIDFromContext(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.UserID.String()
}
