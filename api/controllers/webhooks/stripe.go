package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/successplus/membership-backend/api/responses"
	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
)

const stripeSignatureHeader = "Stripe-Signature"

type stripeVerifier interface {
	HasSigningSecret() bool
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

type stripeTranslator interface {
	Translate(ctx context.Context, event *stripe.Event) (reconcile.Event, bool, error)
}

// StripeWebhook ingests Stripe subscription and invoice events.
func StripeWebhook(maxBodyBytes int64, client stripeVerifier, translator stripeTranslator, svc Reconciler, guard DeliveryGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	provider := enums.ProviderStripe.String()

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "provider", provider)
		}
		outcome := metrics.OutcomeFailed
		defer func() {
			m.IncDelivery(provider, outcome)
			m.ObserveDuration(provider, time.Since(start))
		}()

		if svc == nil || client == nil || translator == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook unavailable"))
			return
		}

		payload, err := readBody(w, r, maxBodyBytes)
		if err != nil {
			outcome = metrics.OutcomeMalformed
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event stripe.Event
		if client.HasSigningSecret() {
			sigHeader := r.Header.Get(stripeSignatureHeader)
			if sigHeader == "" {
				outcome = metrics.OutcomeRejected
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
				return
			}
			event, err = client.ConstructEvent(payload, sigHeader)
			if err != nil {
				outcome = metrics.OutcomeRejected
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid webhook signature"))
				return
			}
		} else {
			w.Header().Set(VerificationHeader, "skipped")
			m.IncUnverified(provider)
			if logg != nil {
				logg.Warn(ctx, "stripe signing secret not configured; accepting unverified delivery")
			}
			if err := json.Unmarshal(payload, &event); err != nil {
				outcome = metrics.OutcomeMalformed
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid json payload"))
				return
			}
		}

		ev, tracked, err := translator.Translate(ctx, &event)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				outcome = metrics.OutcomeMalformed
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !tracked {
			outcome = metrics.OutcomeIgnored
			if logg != nil {
				logg.Info(logg.WithField(ctx, "event_type", string(event.Type)), "ignoring untracked stripe event")
			}
			responses.WriteAck(w)
			return
		}

		if seen(ctx, guard, logg, ev.ID) {
			outcome = metrics.OutcomeDuplicate
			responses.WriteAck(w)
			return
		}

		outcome = dispatch(ctx, w, svc, guard, logg, ev.ID, ev)
	}
}
