// Package entitlements decides whether a caller may see a piece of content.
// Every uncertain path denies premium access.
package entitlements

import (
	"context"

	"github.com/google/uuid"

	"github.com/successplus/membership-backend/internal/subscriptions"
	"github.com/successplus/membership-backend/internal/tiers"
	"github.com/successplus/membership-backend/pkg/auth"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
)

// Requirement is the access descriptor attached to a content item.
type Requirement struct {
	IsPremium    bool   `json:"is_premium"`
	RequiredTier string `json:"required_tier,omitempty"`
}

type statusResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (subscriptions.Status, error)
}

type EvaluatorParams struct {
	Resolver statusResolver
	Metrics  *metrics.EntitlementMetrics
	Logger   *logger.Logger
}

type Evaluator struct {
	resolver statusResolver
	metrics  *metrics.EntitlementMetrics
	logg     *logger.Logger
}

func NewEvaluator(params EvaluatorParams) (*Evaluator, error) {
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription resolver required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Evaluator{
		resolver: params.Resolver,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// CanAccess allows free content to anyone and premium content only to a
// resolved active subscriber whose tier meets the requirement.
func (e *Evaluator) CanAccess(ctx context.Context, user *auth.Identity, req Requirement) bool {
	allowed := e.canAccess(ctx, user, req)
	e.metrics.Observe(metrics.GateContent, allowed)
	return allowed
}

func (e *Evaluator) canAccess(ctx context.Context, user *auth.Identity, req Requirement) bool {
	if !req.IsPremium {
		return true
	}
	status, ok := e.activeStatus(ctx, user)
	if !ok {
		return false
	}
	return tiers.Satisfies(status.Tier, req.RequiredTier)
}

// CanAccessMagazine applies the magazine policy: INSIDER only, whatever the
// article itself declares.
func (e *Evaluator) CanAccessMagazine(ctx context.Context, user *auth.Identity) bool {
	allowed := false
	if status, ok := e.activeStatus(ctx, user); ok {
		allowed = tiers.LevelOf(status.Tier) >= tiers.LevelInsider
	}
	e.metrics.Observe(metrics.GateMagazine, allowed)
	return allowed
}

func (e *Evaluator) activeStatus(ctx context.Context, user *auth.Identity) (subscriptions.Status, bool) {
	if user == nil || user.UserID == uuid.Nil {
		return subscriptions.Status{}, false
	}
	status, err := e.resolver.Resolve(ctx, user.UserID)
	if err != nil {
		e.logg.Warn(e.logg.WithUserID(ctx, user.UserID.String()), "entitlement denied: subscription could not be resolved")
		return subscriptions.Status{}, false
	}
	if !status.HasActiveSubscription {
		return subscriptions.Status{}, false
	}
	return status, true
}
