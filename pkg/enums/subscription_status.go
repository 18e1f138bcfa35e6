package enums

import "fmt"

// SubscriptionStatus is the canonical, provider-independent subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusTrialing SubscriptionStatus = "TRIALING"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusInactive SubscriptionStatus = "INACTIVE"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
	SubscriptionStatusInactive,
}

// EntitlingSubscriptionStatuses are the states that grant paid access.
var EntitlingSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsEntitling reports whether the status grants paid access.
func (s SubscriptionStatus) IsEntitling() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
