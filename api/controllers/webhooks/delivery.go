package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/successplus/membership-backend/api/responses"
	"github.com/successplus/membership-backend/internal/reconcile"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
)

// VerificationHeader is set on responses for deliveries accepted without a
// signature check.
const VerificationHeader = "X-Webhook-Verification"

// Reconciler applies provider-neutral billing events.
type Reconciler interface {
	Apply(ctx context.Context, ev reconcile.Event) (reconcile.Result, error)
}

// DeliveryGuard dedupes redeliveries. A nil guard disables dedupe.
type DeliveryGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// readBody reads the raw body, bounded by limit.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload too large")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	return payload, nil
}

// seen consults the guard. Guard failures are logged and treated as unseen so
// a Redis outage never blocks reconciliation.
func seen(ctx context.Context, guard DeliveryGuard, logg *logger.Logger, deliveryID string) bool {
	if guard == nil || deliveryID == "" {
		return false
	}
	dup, err := guard.CheckAndMark(ctx, deliveryID)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "webhook dedupe unavailable", err)
		}
		return false
	}
	return dup
}

// dispatch applies ev, writes the response and reports the metric outcome.
// A failed apply releases dedupeKey so the provider's retry is processed.
func dispatch(ctx context.Context, w http.ResponseWriter, svc Reconciler, guard DeliveryGuard, logg *logger.Logger, dedupeKey string, ev reconcile.Event) string {
	res, err := svc.Apply(ctx, ev)
	if err != nil {
		if guard != nil && dedupeKey != "" {
			if delErr := guard.Delete(ctx, dedupeKey); delErr != nil && logg != nil {
				logg.Error(ctx, "release webhook dedupe key", delErr)
			}
		}
		responses.WriteError(ctx, logg, w, err)
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return metrics.OutcomeMalformed
		}
		return metrics.OutcomeFailed
	}

	responses.WriteAck(w)
	if res.Outcome == reconcile.OutcomeApplied {
		return metrics.OutcomeProcessed
	}
	return metrics.OutcomeIgnored
}
