package subscriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/successplus/membership-backend/pkg/enums"
)

func TestMapStatus_Table(t *testing.T) {
	cases := []struct {
		value string
		want  enums.SubscriptionStatus
	}{
		{value: "active", want: enums.SubscriptionStatusActive},
		{value: "ACTIVE", want: enums.SubscriptionStatusActive},
		{value: "trialing", want: enums.SubscriptionStatusTrialing},
		{value: "trial", want: enums.SubscriptionStatusTrialing},
		{value: "in_trial", want: enums.SubscriptionStatusTrialing},
		{value: "past_due", want: enums.SubscriptionStatusPastDue},
		{value: "PAST-DUE", want: enums.SubscriptionStatusPastDue},
		{value: "pastdue", want: enums.SubscriptionStatusPastDue},
		{value: "unpaid", want: enums.SubscriptionStatusPastDue},
		{value: "failed", want: enums.SubscriptionStatusPastDue},
		{value: "canceled", want: enums.SubscriptionStatusCanceled},
		{value: "cancelled", want: enums.SubscriptionStatusCanceled},
		{value: "incomplete_expired", want: enums.SubscriptionStatusCanceled},
		{value: "inactive", want: enums.SubscriptionStatusInactive},
		{value: "expired", want: enums.SubscriptionStatusInactive},
		{value: "paused", want: enums.SubscriptionStatusInactive},
		{value: "incomplete", want: enums.SubscriptionStatusInactive},
		{value: "pending", want: enums.SubscriptionStatusInactive},
		{value: "", want: enums.SubscriptionStatusInactive},
		{value: "brand_new_status", want: enums.SubscriptionStatusInactive},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			assert.Equal(t, tc.want, MapStatus(tc.value))
		})
	}
}

func TestMapBillingCycle_Table(t *testing.T) {
	cases := map[string]enums.BillingCycle{
		"month":       enums.BillingCycleMonthly,
		"Monthly":     enums.BillingCycleMonthly,
		"1  month":    enums.BillingCycleMonthly,
		"year":        enums.BillingCycleAnnual,
		"YEARLY":      enums.BillingCycleAnnual,
		"annual":      enums.BillingCycleAnnual,
		"annually":    enums.BillingCycleAnnual,
		"12 months":   enums.BillingCycleAnnual,
		"":            enums.BillingCycleMonthly,
		"fortnightly": enums.BillingCycleMonthly,
	}
	for raw, want := range cases {
		assert.Equal(t, want, MapBillingCycle(raw), raw)
	}
}
