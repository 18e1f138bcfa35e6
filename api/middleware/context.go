package middleware

import (
	"context"

	"github.com/successplus/membership-backend/pkg/auth"
)

type contextKey string

const (
	ctxIdentity contextKey = "identity"
	ctxRole     contextKey = "actor_role"
)

// IdentityFromContext returns the authenticated caller, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*auth.Identity); ok {
		return v
	}
	return nil
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithIdentity injects the caller into the context.
func WithIdentity(ctx context.Context, identity *auth.Identity, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxIdentity, identity)
	return context.WithValue(ctx, ctxRole, role)
}
