package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/pkg/db/models"
	"github.com/successplus/membership-backend/pkg/logger"
)

const (
	PeriodEndJobName = "period-end-sweep"
	// PeriodEndEventType tags audit entries written by the sweep.
	PeriodEndEventType = "period_end_expired"

	defaultPeriodEndLimit = 200
	defaultPeriodEndGrace = 24 * time.Hour
)

type lapsedLister interface {
	ListLapsedDeferred(ctx context.Context, before time.Time, limit int) ([]models.Subscription, error)
}

type reconciler interface {
	Apply(ctx context.Context, ev reconcile.Event) (reconcile.Result, error)
}

type PeriodEndJobParams struct {
	Logger        *logger.Logger
	Subscriptions lapsedLister
	Reconciler    reconciler
	// Grace delays finalization past current_period_end so a late provider
	// renewal or cancellation event wins.
	Grace time.Duration
	Limit int
	Now   func() time.Time
}

// NewPeriodEndJob finalizes deferred cancellations whose paid period has
// ended without a closing provider event.
func NewPeriodEndJob(params PeriodEndJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	grace := params.Grace
	if grace < 0 {
		grace = defaultPeriodEndGrace
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPeriodEndLimit
	}
	return &periodEndJob{
		logg:  params.Logger,
		subs:  params.Subscriptions,
		svc:   params.Reconciler,
		grace: grace,
		limit: limit,
		now:   now,
	}, nil
}

type periodEndJob struct {
	logg  *logger.Logger
	subs  lapsedLister
	svc   reconciler
	grace time.Duration
	limit int
	now   func() time.Time
}

func (j *periodEndJob) Name() string { return PeriodEndJobName }

func (j *periodEndJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	candidates, err := j.subs.ListLapsedDeferred(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list lapsed subscriptions: %w", err)
	}

	var errs error
	expired := 0
	for i := range candidates {
		sub := &candidates[i]
		subCtx := j.logg.WithProviderEvent(ctx, sub.Provider.String(), sub.ProviderSubscriptionID)
		res, err := j.svc.Apply(subCtx, expiryEvent(sub))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", sub.ProviderSubscriptionID, err))
			continue
		}
		if res.Outcome == reconcile.OutcomeApplied {
			expired++
		}
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"expired":    expired,
		"cutoff":     cutoff,
	})
	j.logg.Info(reportCtx, "period end sweep complete")
	return errs
}

func expiryEvent(sub *models.Subscription) reconcile.Event {
	return reconcile.Event{
		ID:             PeriodEndEventType + ":" + sub.ProviderSubscriptionID,
		Type:           PeriodEndEventType,
		Kind:           reconcile.KindCancelled,
		Provider:       sub.Provider,
		SubscriptionID: sub.ProviderSubscriptionID,
	}
}
