package enums

// ActivityAction names an audited subscription lifecycle transition.
type ActivityAction string

const (
	ActivitySubscriptionCreated   ActivityAction = "SUBSCRIPTION_CREATED"
	ActivitySubscriptionUpdated   ActivityAction = "SUBSCRIPTION_UPDATED"
	ActivitySubscriptionCancelled ActivityAction = "SUBSCRIPTION_CANCELLED"
	ActivityPaymentFailed         ActivityAction = "PAYMENT_FAILED"
	ActivityPaymentSucceeded      ActivityAction = "PAYMENT_SUCCEEDED"
)

// String implements fmt.Stringer.
func (a ActivityAction) String() string {
	return string(a)
}
