// Package paykickstartwebhook decodes and verifies affiliate-provider deliveries.
package paykickstartwebhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/pkg/enums"
	pkgerrors "github.com/successplus/membership-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Envelope is the delivery body. Older integrations send the kind in "event".
type Envelope struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  Data   `json:"data"`
}

// Data is the subscription snapshot carried by every delivery.
type Data struct {
	SubscriptionID     string           `json:"subscription_id" validate:"required"`
	CustomerID         string           `json:"customer_id"`
	Email              string           `json:"email" validate:"omitempty,email"`
	FirstName          string           `json:"first_name"`
	LastName           string           `json:"last_name"`
	ProductName        string           `json:"product_name"`
	Status             string           `json:"status"`
	BillingCycle       string           `json:"billing_cycle"`
	CurrentPeriodStart *Timestamp       `json:"current_period_start"`
	CurrentPeriodEnd   *Timestamp       `json:"current_period_end"`
	CancelAtPeriodEnd  *bool            `json:"cancel_at_period_end"`
	TotalSpent         *decimal.Decimal `json:"total_spent"`
	LifetimeValue      *decimal.Decimal `json:"lifetime_value"`
}

// EventType returns the delivery's type, falling back to the legacy field.
func (e Envelope) EventType() string {
	if t := strings.TrimSpace(e.Type); t != "" {
		return t
	}
	return strings.TrimSpace(e.Event)
}

// DeliveryID is the provider's event id, or empty when the delivery has none.
func (e Envelope) DeliveryID() string {
	return strings.TrimSpace(e.ID)
}

// DedupeKey keys the redelivery guard. Deliveries without an id are keyed by
// a digest of the verified body, so only byte-identical redeliveries collapse.
func DedupeKey(env Envelope, body []byte) string {
	if id := env.DeliveryID(); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Decode parses and validates a raw body. Unknown types decode fine; only
// known kinds are held to the field rules.
func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid json payload")
	}
	if env.EventType() == "" {
		return Envelope{}, pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}
	if _, known := reconcile.ParseKind(env.EventType()); !known {
		return env, nil
	}
	if err := validate.Struct(env.Data); err != nil {
		return Envelope{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event data").
			WithDetails(fieldErrors(err))
	}
	return env, nil
}

// ToEvent converts the envelope into a reconciliation event.
func (e Envelope) ToEvent() reconcile.Event {
	return reconcile.Event{
		ID:                 e.DeliveryID(),
		Type:               e.EventType(),
		Provider:           enums.ProviderPaykickstart,
		SubscriptionID:     strings.TrimSpace(e.Data.SubscriptionID),
		CustomerID:         strings.TrimSpace(e.Data.CustomerID),
		Email:              strings.TrimSpace(e.Data.Email),
		FirstName:          e.Data.FirstName,
		LastName:           e.Data.LastName,
		ProductName:        e.Data.ProductName,
		Status:             e.Data.Status,
		BillingCycle:       e.Data.BillingCycle,
		CurrentPeriodStart: e.Data.CurrentPeriodStart.Time(),
		CurrentPeriodEnd:   e.Data.CurrentPeriodEnd.Time(),
		CancelAtPeriodEnd:  e.Data.CancelAtPeriodEnd,
		TotalSpent:         e.Data.TotalSpent,
		LifetimeValue:      e.Data.LifetimeValue,
	}
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// Timestamp accepts RFC3339 strings, "2006-01-02 15:04:05" strings and unix seconds.
type Timestamp struct {
	at time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func (t *Timestamp) UnmarshalJSON(raw []byte) error {
	s := strings.TrimSpace(string(raw))
	if s == "null" || s == `""` {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.at = time.Unix(secs, 0).UTC()
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.at = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// Time returns the wrapped time, or nil when unset.
func (t *Timestamp) Time() *time.Time {
	if t == nil || t.at.IsZero() {
		return nil
	}
	v := t.at
	return &v
}
