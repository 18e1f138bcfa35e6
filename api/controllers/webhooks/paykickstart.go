package webhooks

import (
	"net/http"
	"strings"
	"time"

	"github.com/successplus/membership-backend/api/responses"
	paykickstartwebhook "github.com/successplus/membership-backend/internal/webhooks/paykickstart"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
)

// PaykickstartWebhook ingests affiliate-provider deliveries.
func PaykickstartWebhook(cfg config.WebhooksConfig, svc Reconciler, guard DeliveryGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	provider := enums.ProviderPaykickstart.String()
	secret := strings.TrimSpace(cfg.PaykickstartSecret)

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

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := readBody(w, r, cfg.MaxBodyBytes)
		if err != nil {
			outcome = metrics.OutcomeMalformed
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if secret == "" {
			w.Header().Set(VerificationHeader, "skipped")
			m.IncUnverified(provider)
			if logg != nil {
				logg.Warn(ctx, "paykickstart webhook secret not configured; accepting unverified delivery")
			}
		} else if !paykickstartwebhook.VerifySignature(secret, payload, r.Header.Get(paykickstartwebhook.SignatureHeader)) {
			outcome = metrics.OutcomeRejected
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		env, err := paykickstartwebhook.Decode(payload)
		if err != nil {
			outcome = metrics.OutcomeMalformed
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ev := env.ToEvent()
		dedupeKey := paykickstartwebhook.DedupeKey(env, payload)
		if seen(ctx, guard, logg, dedupeKey) {
			outcome = metrics.OutcomeDuplicate
			if logg != nil {
				logg.Info(logg.WithField(ctx, "dedupe_key", dedupeKey), "duplicate paykickstart delivery")
			}
			responses.WriteAck(w)
			return
		}

		outcome = dispatch(ctx, w, svc, guard, logg, dedupeKey, ev)
	}
}
