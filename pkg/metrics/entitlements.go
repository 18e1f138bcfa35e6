package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	GateContent  = "content"
	GateMagazine = "magazine"
)

// EntitlementMetrics counts access decisions.
type EntitlementMetrics struct {
	decisions *prometheus.CounterVec
}

func NewEntitlementMetrics(reg prometheus.Registerer) *EntitlementMetrics {
	if reg == nil {
		return &EntitlementMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_decisions_total",
		Help: "Entitlement decisions by gate and outcome.",
	}, []string{"gate", "outcome"})
	reg.MustRegister(decisions)
	return &EntitlementMetrics{decisions: decisions}
}

// Observe records an allow or deny decision for gate.
func (e *EntitlementMetrics) Observe(gate string, allowed bool) {
	if e == nil || e.decisions == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	e.decisions.WithLabelValues(normalizeLabel(gate), outcome).Inc()
}
