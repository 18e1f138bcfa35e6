package middleware

import (
	"net/http"
	"strings"

	pkgAuth "github.com/successplus/membership-backend/pkg/auth"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/logger"
)

// OptionalAuth seeds the context with the bearer token's identity when one is
// present and valid. Requests without a usable token continue anonymously, so
// premium checks downstream deny them.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "reason", err.Error()), "ignoring invalid access token")
				}
				next.ServeHTTP(w, r)
				return
			}

			identity := claims.Identity()
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), identity, string(claims.Role))
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    identity.UserID.String(),
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
