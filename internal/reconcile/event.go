package reconcile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
)

// Event is a provider-neutral billing event. Optional fields left nil or empty
// keep the stored value.
type Event struct {
	// ID is the delivery id assigned by the provider, used for dedupe and logs.
	ID       string
	Type     string
	Kind     Kind
	Provider enums.Provider

	SubscriptionID string
	CustomerID     string

	Email     string
	FirstName string
	LastName  string

	ProductName  string
	Status       string
	BillingCycle string

	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	// CancelAtPeriodEnd is nil when the delivery did not report the flag.
	CancelAtPeriodEnd *bool

	TotalSpent    *decimal.Decimal
	LifetimeValue *decimal.Decimal
}

// Validate checks the fields the event's kind depends on.
func (e Event) Validate() error {
	if !e.Provider.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown provider %q", e.Provider)
	}
	if strings.TrimSpace(e.SubscriptionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	if e.Kind == KindCreated && strings.TrimSpace(e.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payer email is required for created events")
	}
	return nil
}

// DefersCancel reports whether the event asks to cancel at period end.
// Cancellations that omit the flag are immediate.
func (e Event) DefersCancel() bool {
	return e.CancelAtPeriodEnd != nil && *e.CancelAtPeriodEnd
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// UTC returns t in UTC, or nil.
func UTC(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
