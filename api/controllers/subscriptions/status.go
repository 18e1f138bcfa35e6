package subscriptions

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/successplus/membership-backend/api/middleware"
	"github.com/successplus/membership-backend/api/responses"
	subsvc "github.com/successplus/membership-backend/internal/subscriptions"
	"github.com/successplus/membership-backend/pkg/auth"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
)

// StatusResolver resolves the effective subscription for a user.
type StatusResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (subsvc.Status, error)
}

type statusResponse struct {
	User         *auth.Identity `json:"user"`
	Subscription subsvc.Status  `json:"subscription"`
}

// Status returns the caller's effective subscription. Anonymous callers get a
// 401 that still carries the free-tier payload.
func Status(resolver StatusResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription resolver unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if identity == nil {
			responses.WriteJSON(w, http.StatusUnauthorized, statusResponse{Subscription: subsvc.FreeStatus()})
			return
		}

		// Resolve degrades to the free status on failure and logs the cause.
		status, _ := resolver.Resolve(r.Context(), identity.UserID)
		responses.WriteJSON(w, http.StatusOK, statusResponse{User: identity, Subscription: status})
	}
}
