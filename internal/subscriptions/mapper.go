package subscriptions

import (
	"strings"

	"github.com/successplus/membership-backend/pkg/enums"
)

// statusByProviderValue maps every provider status spelling we have seen to the
// canonical status. Anything absent maps to INACTIVE.
var statusByProviderValue = map[string]enums.SubscriptionStatus{
	"active":             enums.SubscriptionStatusActive,
	"trialing":           enums.SubscriptionStatusTrialing,
	"trial":              enums.SubscriptionStatusTrialing,
	"in_trial":           enums.SubscriptionStatusTrialing,
	"past_due":           enums.SubscriptionStatusPastDue,
	"pastdue":            enums.SubscriptionStatusPastDue,
	"unpaid":             enums.SubscriptionStatusPastDue,
	"failed":             enums.SubscriptionStatusPastDue,
	"canceled":           enums.SubscriptionStatusCanceled,
	"cancelled":          enums.SubscriptionStatusCanceled,
	"incomplete_expired": enums.SubscriptionStatusCanceled,
	"inactive":           enums.SubscriptionStatusInactive,
	"expired":            enums.SubscriptionStatusInactive,
	"paused":             enums.SubscriptionStatusInactive,
	"incomplete":         enums.SubscriptionStatusInactive,
	"pending":            enums.SubscriptionStatusInactive,
}

var billingCycleByProviderValue = map[string]enums.BillingCycle{
	"month":     enums.BillingCycleMonthly,
	"monthly":   enums.BillingCycleMonthly,
	"1 month":   enums.BillingCycleMonthly,
	"year":      enums.BillingCycleAnnual,
	"yearly":    enums.BillingCycleAnnual,
	"annual":    enums.BillingCycleAnnual,
	"annually":  enums.BillingCycleAnnual,
	"12 months": enums.BillingCycleAnnual,
}

// MapStatus converts a provider status string into the canonical status.
func MapStatus(raw string) enums.SubscriptionStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if status, ok := statusByProviderValue[key]; ok {
		return status
	}
	return enums.SubscriptionStatusInactive
}

// MapBillingCycle converts a provider interval string; unknown values are monthly.
func MapBillingCycle(raw string) enums.BillingCycle {
	key := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if cycle, ok := billingCycleByProviderValue[key]; ok {
		return cycle
	}
	return enums.BillingCycleMonthly
}
