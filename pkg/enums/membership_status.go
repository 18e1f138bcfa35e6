package enums

import "fmt"

// MembershipStatus is the member-level flag mirrored from subscription state.
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "Active"
	MembershipStatusInactive MembershipStatus = "Inactive"
)

var validMembershipStatuses = []MembershipStatus{
	MembershipStatusActive,
	MembershipStatusInactive,
}

// String implements fmt.Stringer.
func (m MembershipStatus) String() string {
	return string(m)
}

// IsValid reports whether the value matches a known MembershipStatus.
func (m MembershipStatus) IsValid() bool {
	for _, candidate := range validMembershipStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// MembershipStatusFor mirrors a subscription status onto the member flag.
func MembershipStatusFor(status SubscriptionStatus) MembershipStatus {
	if status.IsEntitling() {
		return MembershipStatusActive
	}
	return MembershipStatusInactive
}

// ParseMembershipStatus converts raw input into a MembershipStatus.
func ParseMembershipStatus(value string) (MembershipStatus, error) {
	for _, candidate := range validMembershipStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership status %q", value)
}
