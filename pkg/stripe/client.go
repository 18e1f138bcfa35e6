package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errAPIUnavailable   = errors.New("stripe api key not configured")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client verifies Stripe webhooks and, when an API key is configured, looks up
// customers the event payload does not expand.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient validates the Stripe settings. The API key is optional; the
// signing secret may only be empty outside production.
func NewClient(ctx context.Context, cfg config.StripeConfig, requireSecret bool, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" && requireSecret {
		return nil, errSecretRequired
	}

	var api *stripe.Client
	if apiKey := strings.TrimSpace(cfg.APIKey); apiKey != "" {
		if err := validateAPIKey(env, apiKey); err != nil {
			return nil, err
		}
		api = stripe.NewClient(apiKey)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s, api lookups %t)", env, api != nil))
	}

	return &Client{
		api:           api,
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// HasSigningSecret reports whether signatures can be verified.
func (c *Client) HasSigningSecret() bool {
	return c != nil && c.signingSecret != ""
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
// Events pinned to another API version are accepted.
func (c *Client) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	if !c.HasSigningSecret() {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CustomerEmail fetches the email on a Stripe customer.
func (c *Client) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	if c == nil || c.api == nil {
		return "", errAPIUnavailable
	}
	customer, err := c.api.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return "", fmt.Errorf("retrieve stripe customer %s: %w", customerID, err)
	}
	return customer.Email, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
