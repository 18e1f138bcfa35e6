package webhooks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/internal/webhooks"
	"github.com/successplus/membership-backend/pkg/metrics"
)

type fakeReconciler struct {
	mu     sync.Mutex
	events []reconcile.Event
	result reconcile.Result
	err    error
}

func (f *fakeReconciler) Apply(_ context.Context, ev reconcile.Event) (reconcile.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.err != nil {
		return reconcile.Result{}, f.err
	}
	if f.result.Outcome == "" {
		return reconcile.Result{Outcome: reconcile.OutcomeApplied, SubscriptionID: ev.SubscriptionID}, nil
	}
	return f.result, nil
}

func (f *fakeReconciler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func newGuard(t *testing.T, scope string) *webhooks.IdempotencyGuard {
	t.Helper()
	guard, err := webhooks.NewIdempotencyGuard(&memoryStore{keys: map[string]struct{}{}}, time.Hour, scope)
	require.NoError(t, err)
	return guard
}

func newMetrics() (*metrics.WebhookMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.NewWebhookMetrics(reg), reg
}

// deliveries returns webhook_deliveries_total for the label pair.
func deliveries(t *testing.T, reg *prometheus.Registry, provider, outcome string) float64 {
	t.Helper()
	return counterValue(t, reg, "webhook_deliveries_total", map[string]string{"provider": provider, "outcome": outcome})
}

// totalDeliveries sums webhook_deliveries_total across outcomes for provider.
func totalDeliveries(t *testing.T, reg *prometheus.Registry, provider string) float64 {
	t.Helper()
	return counterValue(t, reg, "webhook_deliveries_total", map[string]string{"provider": provider})
}

func unverified(t *testing.T, reg *prometheus.Registry, provider string) float64 {
	t.Helper()
	return counterValue(t, reg, "webhook_unverified_deliveries_total", map[string]string{"provider": provider})
}

// counterValue sums the series of name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			matched := true
			for k, v := range want {
				if labels[k] != v {
					matched = false
					break
				}
			}
			if matched {
				sum += metric.GetCounter().GetValue()
			}
		}
	}
	return sum
}
