package entitlements

import (
	"context"
	"net/http"
	"strings"

	"github.com/successplus/membership-backend/api/middleware"
	"github.com/successplus/membership-backend/api/responses"
	"github.com/successplus/membership-backend/api/validators"
	entsvc "github.com/successplus/membership-backend/internal/entitlements"
	"github.com/successplus/membership-backend/internal/tiers"
	"github.com/successplus/membership-backend/pkg/auth"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
)

// Gate answers content access questions for a caller.
type Gate interface {
	CanAccess(ctx context.Context, user *auth.Identity, req entsvc.Requirement) bool
	CanAccessMagazine(ctx context.Context, user *auth.Identity) bool
}

type decisionResponse struct {
	Allowed bool `json:"allowed"`
}

// Check evaluates ?premium=&required_tier= for the caller. Anonymous callers
// are evaluated too and only pass free content.
func Check(gate Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement gate unavailable"))
			return
		}

		req, err := requirementFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		allowed := gate.CanAccess(r.Context(), middleware.IdentityFromContext(r.Context()), req)
		responses.WriteJSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
	}
}

// Magazine applies the magazine policy for the caller.
func Magazine(gate Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlement gate unavailable"))
			return
		}
		allowed := gate.CanAccessMagazine(r.Context(), middleware.IdentityFromContext(r.Context()))
		responses.WriteJSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
	}
}

func requirementFromQuery(r *http.Request) (entsvc.Requirement, error) {
	var req entsvc.Requirement

	premium, err := validators.ParseQueryBool(r, "premium", false)
	if err != nil {
		return req, err
	}
	req.IsPremium = premium

	if raw := strings.TrimSpace(r.URL.Query().Get("required_tier")); raw != "" {
		if !tiers.Known(raw) {
			return req, pkgerrors.New(pkgerrors.CodeValidation, "unknown tier").
				WithDetails(map[string]any{"required_tier": raw})
		}
		req.RequiredTier = raw
	}
	return req, nil
}
