package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/successplus/membership-backend/api/controllers"
	entitlementcontrollers "github.com/successplus/membership-backend/api/controllers/entitlements"
	subscriptioncontrollers "github.com/successplus/membership-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/successplus/membership-backend/api/controllers/webhooks"
	"github.com/successplus/membership-backend/api/middleware"
	"github.com/successplus/membership-backend/api/responses"
	stripewebhook "github.com/successplus/membership-backend/internal/webhooks/stripe"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
	"github.com/successplus/membership-backend/pkg/stripe"
)

// Deps carries everything the router wires into handlers. Optional
// collaborators may be nil.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	Readiness []controllers.Dependency

	Resolver    subscriptioncontrollers.StatusResolver
	Gate        entitlementcontrollers.Gate
	Reconciler  webhookcontrollers.Reconciler
	Activity    controllers.ActivityLister
	Stripe      *stripe.Client
	Translator  *stripewebhook.Translator
	PKGuard     webhookcontrollers.DeliveryGuard
	StripeGuard webhookcontrollers.DeliveryGuard

	WebhookMetrics *metrics.WebhookMetrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeMethodNotAllowed, "method %s not allowed", r.Method))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness...))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/ping", controllers.PublicPing())
	})

	stripeHandler := webhookcontrollers.StripeWebhook(cfg.Webhooks.MaxBodyBytes, nil, nil, deps.Reconciler, deps.StripeGuard, deps.WebhookMetrics, logg)
	if deps.Stripe != nil && deps.Translator != nil {
		stripeHandler = webhookcontrollers.StripeWebhook(cfg.Webhooks.MaxBodyBytes, deps.Stripe, deps.Translator, deps.Reconciler, deps.StripeGuard, deps.WebhookMetrics, logg)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/"+enums.ProviderPaykickstart.String(), webhookcontrollers.PaykickstartWebhook(cfg.Webhooks, deps.Reconciler, deps.PKGuard, deps.WebhookMetrics, logg))
		r.Post("/"+enums.ProviderStripe.String(), stripeHandler)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))

		r.Get("/subscription/status", subscriptioncontrollers.Status(deps.Resolver, logg))
		r.Route("/entitlements", func(r chi.Router) {
			r.Get("/check", entitlementcontrollers.Check(deps.Gate, logg))
			r.Get("/magazine", entitlementcontrollers.Magazine(deps.Gate, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))
			r.Get("/users/{userId}/activity", controllers.AdminUserActivity(deps.Activity, logg))
		})
	})

	return r
}
