package reconcile

import "strings"

// Kind is one of the five reconciliation transitions.
type Kind string

const (
	KindCreated          Kind = "created"
	KindUpdated          Kind = "updated"
	KindCancelled        Kind = "cancelled"
	KindPaymentFailed    Kind = "payment_failed"
	KindPaymentSucceeded Kind = "payment_succeeded"
)

// kindBySynonym maps every historical provider event spelling to its kind.
var kindBySynonym = map[string]Kind{
	"subscription_created":          KindCreated,
	"subscription.created":          KindCreated,
	"customer.subscription.created": KindCreated,

	"subscription_updated":          KindUpdated,
	"subscription.updated":          KindUpdated,
	"customer.subscription.updated": KindUpdated,

	"subscription_cancelled":        KindCancelled,
	"subscription_canceled":         KindCancelled,
	"subscription.cancelled":        KindCancelled,
	"subscription.canceled":         KindCancelled,
	"customer.subscription.deleted": KindCancelled,

	"payment_failed":              KindPaymentFailed,
	"subscription_payment_failed": KindPaymentFailed,
	"invoice.payment_failed":      KindPaymentFailed,
	"payment.failed":              KindPaymentFailed,

	"payment_succeeded":              KindPaymentSucceeded,
	"subscription_payment_succeeded": KindPaymentSucceeded,
	"invoice.payment_succeeded":      KindPaymentSucceeded,
	"invoice.paid":                   KindPaymentSucceeded,
	"payment.succeeded":              KindPaymentSucceeded,
	"subscription_payment":           KindPaymentSucceeded,
}

// ParseKind normalizes a provider event type. ok is false for unknown types,
// which callers acknowledge and ignore.
func ParseKind(raw string) (Kind, bool) {
	kind, ok := kindBySynonym[strings.ToLower(strings.TrimSpace(raw))]
	return kind, ok
}
