package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/successplus/membership-backend/api/responses"
	"github.com/successplus/membership-backend/pkg/config"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
	"github.com/successplus/membership-backend/pkg/logger"
)

const envHeader = "X-SuccessPlus-Env"

// Pinger is any dependency with a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names a readiness probe. Nil pingers are skipped, which is how
// optional backends such as Redis are left out.
type Dependency struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		var errs error
		for _, dep := range deps {
			if dep.Pinger == nil {
				continue
			}
			if err := dep.Pinger.Ping(ctx); err != nil {
				checks[dep.Name] = "down"
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", dep.Name, err))
				continue
			}
			checks[dep.Name] = "ok"
		}

		if errs != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
