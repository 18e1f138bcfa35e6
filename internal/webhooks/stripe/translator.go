package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
)

// CustomerLookup resolves customers that an event does not expand.
type CustomerLookup interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// Translator maps verified Stripe events onto reconciliation events.
type Translator struct {
	customers CustomerLookup
}

// NewTranslator accepts a nil lookup; created events then need the email in
// the payload.
func NewTranslator(customers CustomerLookup) *Translator {
	return &Translator{customers: customers}
}

// Translate returns ok=false for event types the ledger does not track.
func (t *Translator) Translate(ctx context.Context, event *stripe.Event) (reconcile.Event, bool, error) {
	if event == nil || event.Data == nil {
		return reconcile.Event{}, false, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	kind, ok := reconcile.ParseKind(string(event.Type))
	if !ok {
		return reconcile.Event{}, false, nil
	}

	out := reconcile.Event{
		ID:       event.ID,
		Type:     string(event.Type),
		Kind:     kind,
		Provider: enums.ProviderStripe,
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return reconcile.Event{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		fromSubscription(&out, &sub)
		if event.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			// Stripe only deletes once access has ended.
			out.CancelAtPeriodEnd = reconcile.Bool(false)
		}
		if kind == reconcile.KindCreated && out.Email == "" && out.CustomerID != "" && t.customers != nil {
			email, err := t.customers.CustomerEmail(ctx, out.CustomerID)
			if err != nil {
				return reconcile.Event{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup stripe customer")
			}
			out.Email = email
		}
	default:
		out.SubscriptionID = invoiceSubscriptionID(event)
		out.CustomerID = event.GetObjectValue("customer")
	}

	return out, true, nil
}

func fromSubscription(out *reconcile.Event, sub *stripe.Subscription) {
	out.SubscriptionID = sub.ID
	out.Status = string(sub.Status)
	out.CancelAtPeriodEnd = reconcile.Bool(sub.CancelAtPeriodEnd)

	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
		out.Email = sub.Customer.Email
		if sub.Customer.Name != "" && out.FirstName == "" {
			out.FirstName, out.LastName = splitName(sub.Customer.Name)
		}
	}
	if out.Email == "" {
		out.Email = strings.TrimSpace(sub.Metadata["email"])
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		out.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
		if price := item.Price; price != nil {
			if price.Product != nil && price.Product.Name != "" {
				out.ProductName = price.Product.Name
			} else if price.Nickname != "" {
				out.ProductName = price.Nickname
			}
			if price.Recurring != nil {
				out.BillingCycle = string(price.Recurring.Interval)
			}
		}
	}
	if out.ProductName == "" {
		out.ProductName = strings.TrimSpace(sub.Metadata["tier"])
	}
}

// invoiceSubscriptionID reads the subscription id from either invoice layout
// Stripe has shipped.
func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("subscription"); id != "" {
		return id
	}
	parent, _ := event.Data.Object["parent"].(map[string]interface{})
	details, _ := parent["subscription_details"].(map[string]interface{})
	id, _ := details["subscription"].(string)
	return id
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func unixPtr(secs int64) *time.Time {
	if secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}
